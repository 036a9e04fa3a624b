package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><body>
				<a href="/product/info/12">twelve</a>
				<a href="/product/info/5">five</a>
			</body></html>`))
		case "/product/info/5":
			_, _ = w.Write([]byte(`<html><body><h1>Five</h1><span>王老師</span><p>勝率 61%</p></body></html>`))
		case "/product/info/6":
			_, _ = w.Write([]byte(`<html><body><p>商品不存在</p></body></html>`))
		case "/product/info/7":
			w.WriteHeader(http.StatusGone)
		case "/product/info/8":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		case "/empty":
			_, _ = w.Write([]byte(`<html><body><a href="/about">about</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProber(srv *httptest.Server) *Prober {
	target := catalog.Target{StartID: 5, Template: srv.URL + "/product/info/{id}"}
	fetcher := collyfetcher.New(collyfetcher.Config{UserAgent: "Mozilla/5.0", Timeout: 5 * time.Second})
	notFound := func(err error) bool { return errors.Is(err, extract.ErrNoTitle) }
	return New(target, fetcher, extract.Product{}, notFound, zap.NewNop())
}

func TestProbeClassifiesResponses(t *testing.T) {
	t.Parallel()

	srv := catalogServer(t)
	p := newProber(srv)
	ctx := context.Background()

	found := p.Probe(ctx, 5)
	require.Equal(t, catalog.StatusFound, found.Status)
	assert.Equal(t, 5, found.Record.ID)
	assert.Equal(t, "Five", found.Record.Field("name"))
	assert.Equal(t, "王老師", found.Record.Field("author"))
	assert.Equal(t, "61", found.Record.Field("win_rate"))
	assert.Equal(t, srv.URL+"/product/info/5", found.Record.URL)

	assert.Equal(t, catalog.StatusNotFound, p.Probe(ctx, 6).Status, "page without a title")
	assert.Equal(t, catalog.StatusNotFound, p.Probe(ctx, 7).Status, "410 gone")
	assert.Equal(t, catalog.StatusNotFound, p.Probe(ctx, 9).Status, "404")

	failed := p.Probe(ctx, 8)
	require.Equal(t, catalog.StatusFetchError, failed.Status)
	assert.True(t, IsStatus(failed.Err, http.StatusServiceUnavailable))
}

func TestProbeTransportFailureIsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	p := newProber(srv)
	srv.Close()

	res := p.Probe(context.Background(), 1)
	assert.Equal(t, catalog.StatusFetchError, res.Status)
	assert.Error(t, res.Err)
}

type stubFetcher struct {
	resp collyfetcher.Response
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) (collyfetcher.Response, error) {
	return s.resp, s.err
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract([]byte, string) (catalog.Record, error) {
	return catalog.Record{}, f.err
}

func TestProbeExtractionFailureWithoutClassifier(t *testing.T) {
	t.Parallel()

	p := New(catalog.Target{Template: "https://e/{id}"},
		stubFetcher{resp: collyfetcher.Response{StatusCode: http.StatusOK}},
		failingExtractor{err: extract.ErrNoTitle}, nil, nil)
	res := p.Probe(context.Background(), 3)
	assert.Equal(t, catalog.StatusFetchError, res.Status)
	assert.ErrorIs(t, res.Err, extract.ErrNoTitle)
}

func TestDiscovererFindsSmallestItem(t *testing.T) {
	t.Parallel()

	srv := catalogServer(t)
	links, err := extract.NewItemLinks("/product/info")
	require.NoError(t, err)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	d := NewDiscoverer(fetcher, links, "/product/info/")

	target, err := d.FirstItem(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 5, target.StartID)
	assert.Equal(t, srv.URL+"/product/info/{id}", target.Template)

	_, err = d.FirstItem(context.Background(), srv.URL+"/empty")
	require.ErrorIs(t, err, ErrNoItemLinks)

	_, err = d.FirstItem(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestDiscovererRejectsHostlessURL(t *testing.T) {
	t.Parallel()

	d := NewDiscoverer(stubFetcher{}, nil, "/product/info")
	_, err := d.FirstItem(context.Background(), "not a url")
	require.ErrorIs(t, err, catalog.ErrInvalidStartURL)
}
