package catalog

import "strings"

// Header names for the id and url columns that bracket every schema.
const (
	IDHeader  = "ID"
	URLHeader = "URL"
)

var (
	idAliases  = []string{"ID", "id", "編號"}
	urlAliases = []string{"URL", "url", "網址", "link"}
)

// Column describes one payload column of the output table.
type Column struct {
	Key     string
	Header  string
	Aliases []string
	Width   float64
}

// Schema is the ordered list of payload columns between ID and URL.
type Schema struct {
	Columns []Column
}

// ProductSchema is the column layout for strategy product pages.
var ProductSchema = Schema{Columns: []Column{
	{Key: "name", Header: "Name", Aliases: []string{"名稱", "title"}, Width: 50},
	{Key: "author", Header: "Author", Aliases: []string{"老師", "teacher"}, Width: 18},
	{Key: "net_profit", Header: "Net Profit", Aliases: []string{"淨利", "profit"}, Width: 14},
	{Key: "win_rate", Header: "Win Rate", Aliases: []string{"勝率", "winrate"}, Width: 10},
	{Key: "risk_reward", Header: "Risk Reward", Aliases: []string{"風報比", "rr"}, Width: 10},
	{Key: "tags", Header: "Tags", Aliases: []string{"標籤"}, Width: 35},
}}

// Header returns the persisted header row: ID, payload headers, URL.
func (s Schema) Header() []string {
	out := make([]string, 0, len(s.Columns)+2)
	out = append(out, IDHeader)
	for _, c := range s.Columns {
		out = append(out, c.Header)
	}
	return append(out, URLHeader)
}

// Row renders a record in header order. The id is returned separately so
// encoders can keep it numeric.
func (s Schema) Row(rec Record) []string {
	out := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		out = append(out, rec.Field(c.Key))
	}
	return append(out, rec.URL)
}

// Widths returns column widths in header order.
func (s Schema) Widths() []float64 {
	out := make([]float64, 0, len(s.Columns)+2)
	out = append(out, 8)
	for _, c := range s.Columns {
		w := c.Width
		if w <= 0 {
			w = 12
		}
		out = append(out, w)
	}
	return append(out, 70)
}

// Layout maps a header row onto column positions.
type Layout struct {
	ID     int
	URL    int
	Fields map[string]int
}

// Resolve matches header cells against the schema, accepting current headers,
// keys, and historical aliases. Missing columns resolve to -1.
func (s Schema) Resolve(header []string) Layout {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = normalizeHeader(h)
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}
	lookup := func(names ...string) int {
		for _, n := range names {
			if i, ok := index[normalizeHeader(n)]; ok {
				return i
			}
		}
		return -1
	}
	layout := Layout{
		ID:     lookup(idAliases...),
		URL:    lookup(urlAliases...),
		Fields: make(map[string]int, len(s.Columns)),
	}
	for _, c := range s.Columns {
		names := append([]string{c.Header, c.Key}, c.Aliases...)
		layout.Fields[c.Key] = lookup(names...)
	}
	return layout
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
