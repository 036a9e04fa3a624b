package catalog

import "sort"

// Table holds at most one record per id. Records are only ever added or
// replaced, never removed.
type Table struct {
	records map[int]Record
}

// NewTable builds a table from the given records, last write wins.
func NewTable(records ...Record) *Table {
	t := &Table{records: make(map[int]Record, len(records))}
	for _, rec := range records {
		t.Upsert(rec)
	}
	return t
}

// Upsert stores rec and reports whether its id was new. Records with a
// non-positive id are ignored.
func (t *Table) Upsert(rec Record) bool {
	if rec.ID <= 0 {
		return false
	}
	_, existed := t.records[rec.ID]
	t.records[rec.ID] = rec
	return !existed
}

// Has reports whether a record exists for id.
func (t *Table) Has(id int) bool {
	_, ok := t.records[id]
	return ok
}

// Get returns the record stored for id.
func (t *Table) Get(id int) (Record, bool) {
	rec, ok := t.records[id]
	return rec, ok
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// MaxID returns the largest id in the table, or 0 when empty.
func (t *Table) MaxID() int {
	maxID := 0
	for id := range t.records {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// Sorted returns a copy of all records ordered by ascending id.
func (t *Table) Sorted() []Record {
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Normalize de-duplicates records by id (last write wins), drops invalid ids,
// and sorts ascending.
func Normalize(records []Record) []Record {
	return NewTable(records...).Sorted()
}
