package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"partnermap/internal/domain/partner"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Table is a header row plus data rows, values trimmed.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Supported reports whether a file name has an extension Read understands.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".tsv", ".txt", ".xlsx":
		return true
	}
	return false
}

// Read parses r according to the extension of fileName.
func Read(fileName string, r io.Reader) (Table, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".tsv", ".txt":
		return ReadDelimited(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// RawRows resolves every data row through the header aliases.
func (t Table) RawRows(aliases partner.ColumnAliases) []partner.RawRow {
	rows := make([]partner.RawRow, 0, len(t.Rows))
	for _, values := range t.Rows {
		rows = append(rows, partner.RowFromRecord(t.Headers, values, aliases))
	}
	return rows
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
