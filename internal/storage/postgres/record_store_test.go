package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestMirrorUpsertsRecords(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", func() time.Time { return fixedNow })
	require.NoError(t, err)
	require.Equal(t, "postgres", store.Name())

	records := []catalog.Record{
		{ID: 3, URL: "https://example.com/product/info/3", Fields: map[string]string{"name": "Alpha"}},
		{ID: 9, URL: "https://example.com/product/info/9"},
	}

	mock.ExpectExec("INSERT INTO catalog_records").
		WithArgs(
			[]int{3, 9},
			[]string{"https://example.com/product/info/3", "https://example.com/product/info/9"},
			[]string{`{"name":"Alpha"}`, `{}`},
			fixedNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	loc, err := store.Mirror(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, "postgres:catalog_records", loc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "products", nil)
	require.NoError(t, err)

	loc, err := store.Mirror(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "postgres:products", loc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "products", func() time.Time { return fixedNow })
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO products").
		WillReturnError(errors.New("connection reset"))

	_, err = store.Mirror(context.Background(), []catalog.Record{{ID: 1, URL: "u"}})
	require.ErrorContains(t, err, "upsert records")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "products", nil)
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "drop table;", nil)
	require.ErrorContains(t, err, "invalid table name")
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "postgres.dsn is required")
}

func TestCloseNilSafe(t *testing.T) {
	t.Parallel()

	var store *RecordStore
	store.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectClose()
	s, err := NewWithPool(mock, "", nil)
	require.NoError(t, err)
	s.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}
