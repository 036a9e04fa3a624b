package output

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

const defaultSheet = "Sheet1"

// XLSX is the primary table format.
type XLSX struct {
	Schema catalog.Schema
	Sheet  string
}

// Ext implements Codec.
func (XLSX) Ext() string { return ExtXLSX }

// Encode renders a single-sheet workbook with a header row and sized columns.
// Ids are written as numbers so spreadsheet sorting behaves.
func (x XLSX) Encode(records []catalog.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := x.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}

	header := x.Schema.Header()
	if err := f.SetSheetRow(sheet, "A1", toCells(header)); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	for i, rec := range records {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell ref: %w", err)
		}
		row := make([]any, 0, len(header))
		row = append(row, rec.ID)
		for _, v := range x.Schema.Row(rec) {
			row = append(row, v)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", rec.ID, err)
		}
	}
	for i, w := range x.Schema.Widths() {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the first sheet of a workbook.
func (x XLSX) Decode(data []byte) (Decoded, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Decoded{}, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Decoded{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	return decodeRows(x.Schema, rows), nil
}

func toCells(values []string) *[]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &out
}
