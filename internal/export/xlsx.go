package export

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

type xlsxWriter struct{}

func (xlsxWriter) Format() string { return FormatXLSX }

// Write bundles every non-empty table into one workbook named after the
// stem, one sheet per table.
func (xlsxWriter) Write(dir, stem string, tables []Table) ([]Result, error) {
	var keep []Table
	for _, t := range tables {
		if len(t.Rows) > 0 {
			keep = append(keep, t)
		}
	}
	if len(keep) == 0 {
		return nil, nil
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, stem+".xlsx")
	f := xlsx.NewFile()
	var results []Result
	for _, t := range keep {
		sheet, err := f.AddSheet(sheetName(t.Name))
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %s", t.Name)
		}
		header := sheet.AddRow()
		for _, h := range t.Header {
			header.AddCell().SetString(h)
		}
		for _, row := range t.Rows {
			r := sheet.AddRow()
			for _, cell := range row {
				r.AddCell().SetString(cellString(cell))
			}
		}
		results = append(results, Result{Table: t.Name, Path: path, Rows: len(t.Rows)})
	}
	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save %s", path)
	}
	return results, nil
}

// Excel refuses sheet names longer than 31 characters.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
