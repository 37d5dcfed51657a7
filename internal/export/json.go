package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

type jsonWriter struct{}

func (jsonWriter) Format() string { return FormatJSON }

func (jsonWriter) Write(dir, stem string, tables []Table) ([]Result, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	var results []Result
	for _, t := range tables {
		if len(t.Rows) == 0 {
			continue
		}
		path := filepath.Join(dir, t.Name+".json")
		if err := writeJSONFile(path, t); err != nil {
			return nil, err
		}
		results = append(results, Result{Table: t.Name, Path: path, Rows: len(t.Rows)})
	}
	return results, nil
}

// writeJSONFile renders the table as an array of objects keyed by the
// header, the shape downstream notebooks expect.
func writeJSONFile(path string, t Table) error {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Header))
		for i, name := range t.Header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", t.Name)
	}
	data = append(data, '\n')
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "export: write %s", path)
}
