package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableUpsertKeepsOneRecordPerID(t *testing.T) {
	t.Parallel()

	table := NewTable()
	require.True(t, table.Upsert(Record{ID: 3, URL: "a"}))
	require.False(t, table.Upsert(Record{ID: 3, URL: "b"}))
	require.False(t, table.Upsert(Record{ID: 0, URL: "zero"}))
	require.False(t, table.Upsert(Record{ID: -4}))

	require.Equal(t, 1, table.Len())
	rec, ok := table.Get(3)
	require.True(t, ok)
	require.Equal(t, "b", rec.URL, "last write wins")
}

func TestNormalizeSortsAndDeduplicates(t *testing.T) {
	t.Parallel()

	got := Normalize([]Record{
		{ID: 9, URL: "nine"},
		{ID: 2, URL: "two"},
		{ID: 9, URL: "nine-again"},
		{ID: 5, URL: "five"},
	})

	ids := make([]int, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []int{2, 5, 9}, ids)
	require.Equal(t, "nine-again", got[2].URL)
}

func TestTableMaxID(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, NewTable().MaxID())
	require.Equal(t, 40, NewTable(Record{ID: 7}, Record{ID: 40}, Record{ID: 12}).MaxID())
}

func TestParseItemURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantID   int
		wantTmpl string
		wantErr  bool
	}{
		{
			name:     "product page",
			raw:      "https://mcsm.example.com.tw/product/info/17",
			wantID:   17,
			wantTmpl: "https://mcsm.example.com.tw/product/info/{id}",
		},
		{
			name:     "trailing slash",
			raw:      "https://example.com/item/5/",
			wantID:   5,
			wantTmpl: "https://example.com/item/{id}",
		},
		{
			name:     "id at root",
			raw:      "http://example.com:8080/42",
			wantID:   42,
			wantTmpl: "http://example.com:8080/{id}",
		},
		{name: "non numeric tail", raw: "https://example.com/product/info/abc", wantErr: true},
		{name: "root url", raw: "https://example.com/", wantErr: true},
		{name: "zero id", raw: "https://example.com/item/0", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseItemURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidStartURL))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, got.StartID)
			require.Equal(t, tt.wantTmpl, got.Template)
		})
	}
}

func TestTargetURL(t *testing.T) {
	t.Parallel()

	target := Target{StartID: 1, Template: "https://example.com/product/info/{id}"}
	require.Equal(t, "https://example.com/product/info/1234", target.URL(1234))
}

func TestNormalizeInput(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", NormalizeInput("   "))
	require.Equal(t, "https://example.com/a/1", NormalizeInput(" example.com/a/1 "))
	require.Equal(t, "http://example.com", NormalizeInput("http://example.com"))
	require.Equal(t, "HTTPS://example.com", NormalizeInput("HTTPS://example.com"))
}

func TestSchemaResolveAcceptsHistoricalHeaders(t *testing.T) {
	t.Parallel()

	header := []string{"\ufeffID", "名稱", "老師", "淨利", "勝率", "風報比", "標籤", "網址"}
	layout := ProductSchema.Resolve(header)

	require.Equal(t, 0, layout.ID)
	require.Equal(t, 7, layout.URL)
	require.Equal(t, 1, layout.Fields["name"])
	require.Equal(t, 6, layout.Fields["tags"])
}

func TestSchemaResolveMissingColumns(t *testing.T) {
	t.Parallel()

	layout := ProductSchema.Resolve([]string{"ID", "Name"})
	require.Equal(t, 0, layout.ID)
	require.Equal(t, -1, layout.URL)
	require.Equal(t, 1, layout.Fields["name"])
	require.Equal(t, -1, layout.Fields["author"])
}

func TestSchemaHeaderAndRow(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"ID", "Name", "Author", "Net Profit", "Win Rate", "Risk Reward", "Tags", "URL"},
		ProductSchema.Header(),
	)
	rec := Record{ID: 1, URL: "u", Fields: map[string]string{"name": " Alpha ", "tags": "TX"}}
	require.Equal(t, []string{"Alpha", "", "", "", "", "TX", "u"}, ProductSchema.Row(rec))
	require.Len(t, ProductSchema.Widths(), len(ProductSchema.Header()))
}

func TestProbeStatusString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "found", StatusFound.String())
	require.Equal(t, "not_found", NotFound().Status.String())
	require.Equal(t, "fetch_error", FetchFailed(errors.New("x")).Status.String())
}
