package tabular

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"

	"partnermap/internal/errs"
)

// ReadXLSX reads the first worksheet; its first row is the header.
func ReadXLSX(r io.Reader) (Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, errs.Wrap(err, "open xlsx")
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("xlsx has no worksheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return Table{}, errs.Wrapf(err, "read rows of sheet %q", sheets[0])
	}
	if len(rows) == 0 {
		return Table{Headers: []string{}, Rows: [][]string{}}, nil
	}

	table := Table{Headers: trimAll(rows[0]), Rows: [][]string{}}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		table.Rows = append(table.Rows, trimAll(row))
	}
	return table, nil
}
