package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet describes one worksheet of tabular data. Row values keep their Go
// types so numeric cells stay numeric in the workbook.
type Sheet struct {
	Title  string
	Header []string
	Rows   [][]interface{}
}

// Workbook builds an xlsx file from the given sheets. The first sheet
// replaces the default one so the file never carries an empty "Sheet1".
func Workbook(sheets []Sheet) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("new style: %w", err)
	}

	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}

		for col, h := range s.Header {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		if len(s.Header) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(s.Header), 1)
			_ = f.SetCellStyle(name, "A1", end, bold)
			_ = f.AutoFilter(name, "A1:"+end, nil)
		}

		for r, row := range s.Rows {
			for c, val := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+2)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}

		autoWidth(f, name, s)
	}

	return f, nil
}

// autoWidth sizes columns from the header and the first rows.
func autoWidth(f *excelize.File, name string, s Sheet) {
	sample := len(s.Rows)
	if sample > 50 {
		sample = 50
	}
	for c := 1; c <= len(s.Header); c++ {
		max := len(s.Header[c-1])
		for r := 0; r < sample; r++ {
			if c-1 < len(s.Rows[r]) {
				if l := len(fmt.Sprint(s.Rows[r][c-1])); l > max {
					max = l
				}
			}
		}
		w := float64(max) * 0.9
		if w < 12 {
			w = 12
		}
		if w > 40 {
			w = 40
		}
		col, _ := excelize.ColumnNumberToName(c)
		_ = f.SetColWidth(name, col, col, w)
	}
}
