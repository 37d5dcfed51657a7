package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

type csvWriter struct{}

func (csvWriter) Format() string { return FormatCSV }

func (csvWriter) Write(dir, stem string, tables []Table) ([]Result, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	var results []Result
	for _, t := range tables {
		if len(t.Rows) == 0 {
			continue
		}
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeCSVFile(path, t); err != nil {
			return nil, err
		}
		results = append(results, Result{Table: t.Name, Path: path, Rows: len(t.Rows)})
	}
	return results, nil
}

func writeCSVFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	w := csv.NewWriter(f)
	werr := w.Write(t.Header)
	for _, row := range t.Rows {
		if werr != nil {
			break
		}
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		werr = w.Write(record)
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}

	cerr := f.Close()
	if werr != nil {
		return eris.Wrapf(werr, "export: write %s", path)
	}
	return eris.Wrapf(cerr, "export: close %s", path)
}
