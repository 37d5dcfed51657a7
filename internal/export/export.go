// Package export renders entity collections into operator-facing files.
// The pipeline hands over flat tables and stays format-agnostic; one
// Writer exists per format (CSV, JSON, XLSX), chosen by name.
package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Supported format names. "excel" is accepted as an alias for xlsx.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Table is one named collection ready to render: a file stem for the
// per-file formats, a sheet name inside the workbook for XLSX. Cells are
// typed so JSON keeps numbers and nulls; the text formats render them
// through cellString.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Result reports where one table landed.
type Result struct {
	Table string
	Path  string
	Rows  int
}

// Writer renders tables under a directory. Empty tables are skipped
// rather than written as header-only files, so a Result exists only for
// files that carry data. stem names the output for formats that bundle
// every table into one file.
type Writer interface {
	Format() string
	Write(dir, stem string, tables []Table) ([]Result, error)
}

// NewWriter returns the writer for a format name.
func NewWriter(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return csvWriter{}, nil
	case FormatJSON:
		return jsonWriter{}, nil
	case FormatXLSX, "excel":
		return xlsxWriter{}, nil
	}
	return nil, eris.Errorf("export: unknown format %q", format)
}

// Formats lists the supported format names for flag validation.
func Formats() []string {
	return []string{FormatCSV, FormatJSON, FormatXLSX}
}

func ensureDir(dir string) error {
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "export: create %s", dir)
}

// cellString renders one cell for the text formats. Times are RFC3339
// UTC and nil renders empty.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
