// Package probe turns a page fetch into a crawl decision: an item was found,
// no item exists at the id, or the fetch failed.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
)

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (collyfetcher.Response, error)
}

// Extractor parses an item page.
type Extractor interface {
	Extract(body []byte, pageURL string) (catalog.Record, error)
}

// Prober fetches the item page for an id built from a template.
type Prober struct {
	target    catalog.Target
	fetcher   Fetcher
	extractor Extractor
	notFound  func(error) bool
	logger    *zap.Logger
}

// New builds a Prober for target. notFound classifies extraction errors; nil
// treats every extraction error as a fetch failure.
func New(target catalog.Target, fetcher Fetcher, extractor Extractor, notFound func(error) bool, logger *zap.Logger) *Prober {
	if notFound == nil {
		notFound = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		target:    target,
		fetcher:   fetcher,
		extractor: extractor,
		notFound:  notFound,
		logger:    logger.Named("probe"),
	}
}

// Probe implements crawl.Prober.
func (p *Prober) Probe(ctx context.Context, id int) catalog.ProbeResult {
	url := p.target.URL(id)
	resp, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return catalog.FetchFailed(fmt.Errorf("fetch %s: %w", url, err))
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return catalog.NotFound()
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return catalog.FetchFailed(&StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	rec, err := p.extractor.Extract(resp.Body, url)
	if err != nil {
		if p.notFound(err) {
			return catalog.NotFound()
		}
		return catalog.FetchFailed(fmt.Errorf("extract %s: %w", url, err))
	}
	rec.ID = id
	rec.URL = url
	p.logger.Debug("item extracted", zap.Int("id", id), zap.String("name", rec.Field("name")))
	return catalog.Found(rec)
}

// StatusError is an unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
