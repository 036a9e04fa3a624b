package output

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Codec encodes and decodes the record table in one file format.
type Codec interface {
	Ext() string
	Encode(records []catalog.Record) ([]byte, error)
	Decode(data []byte) (Decoded, error)
}

// Decoded is the result of reading a persisted table.
type Decoded struct {
	Records []catalog.Record
	// Dropped counts rows skipped because the id did not parse.
	Dropped int
}

// decodeRows maps raw rows (header first) onto records using the schema.
func decodeRows(schema catalog.Schema, rows [][]string) Decoded {
	if len(rows) == 0 {
		return Decoded{}
	}
	layout := schema.Resolve(rows[0])
	var out Decoded
	if layout.ID < 0 {
		out.Dropped = len(rows) - 1
		return out
	}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		id, ok := parseID(cell(row, layout.ID))
		if !ok {
			out.Dropped++
			continue
		}
		rec := catalog.Record{
			ID:     id,
			URL:    cell(row, layout.URL),
			Fields: make(map[string]string, len(schema.Columns)),
		}
		for _, c := range schema.Columns {
			rec.Fields[c.Key] = cell(row, layout.Fields[c.Key])
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// parseID accepts integers and integral floats ("12", "12.0") as spreadsheets
// may render either.
func parseID(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if id, err := strconv.Atoi(raw); err == nil {
		return id, id > 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), f > 0
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
