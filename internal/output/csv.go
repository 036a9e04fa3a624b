package output

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV is the plain-text mirror of the table. A UTF-8 BOM is written so that
// spreadsheet programs detect the encoding.
type CSV struct {
	Schema catalog.Schema
}

// Ext implements Codec.
func (CSV) Ext() string { return ExtCSV }

// Encode writes the header and one row per record.
func (c CSV) Encode(records []catalog.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(c.Schema.Header()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := append([]string{strconv.Itoa(rec.ID)}, c.Schema.Row(rec)...)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a CSV table, skipping a leading BOM.
func (c CSV) Decode(data []byte) (Decoded, error) {
	br := bufio.NewReader(bytes.NewReader(data))
	if first, _ := br.Peek(len(utf8BOM)); bytes.Equal(first, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return Decoded{}, fmt.Errorf("skip bom: %w", err)
		}
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return Decoded{}, fmt.Errorf("read csv: %w", err)
	}
	return decodeRows(c.Schema, rows), nil
}
