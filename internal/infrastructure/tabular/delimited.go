package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"partnermap/internal/errs"
)

const utf8BOM = "\ufeff"

// ReadDelimited parses comma, semicolon or tab separated text with a header
// row. The delimiter is picked from the header line. Rows may be ragged.
func ReadDelimited(r io.Reader) (Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Table{}, errs.Wrap(err, "read delimited text")
	}
	text := strings.TrimPrefix(string(raw), utf8BOM)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return Table{Headers: []string{}, Rows: [][]string{}}, nil
	}
	if err != nil {
		return Table{}, errs.Wrap(err, "read header row")
	}

	table := Table{Headers: trimAll(headers), Rows: [][]string{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, errs.Wrap(err, "read data row")
		}
		table.Rows = append(table.Rows, trimAll(record))
	}
	return table, nil
}

func sniffDelimiter(text string) rune {
	header := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		header = text[:idx]
	}

	best, bestCount := ',', strings.Count(header, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(header, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
