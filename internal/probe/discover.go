package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// ErrNoItemLinks means a root page links to no item pages.
var ErrNoItemLinks = errors.New("no item links found on page")

// LinkScanner finds the smallest linked item id in a page.
type LinkScanner interface {
	SmallestID(body []byte) (int, bool, error)
}

// Discoverer finds the first item linked from a site's landing page.
type Discoverer struct {
	fetcher  Fetcher
	links    LinkScanner
	itemPath string
}

// NewDiscoverer builds a Discoverer. itemPath is the path prefix of item
// pages, e.g. "/product/info".
func NewDiscoverer(fetcher Fetcher, links LinkScanner, itemPath string) *Discoverer {
	return &Discoverer{
		fetcher:  fetcher,
		links:    links,
		itemPath: "/" + strings.Trim(itemPath, "/"),
	}
}

// FirstItem returns a target starting at the smallest linked item id.
func (d *Discoverer) FirstItem(ctx context.Context, rootURL string) (catalog.Target, error) {
	u, err := url.Parse(rootURL)
	if err != nil || u.Host == "" {
		return catalog.Target{}, fmt.Errorf("%w: %q", catalog.ErrInvalidStartURL, rootURL)
	}
	resp, err := d.fetcher.Fetch(ctx, rootURL)
	if err != nil {
		return catalog.Target{}, fmt.Errorf("fetch root page: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return catalog.Target{}, fmt.Errorf("fetch root page: %w", &StatusError{URL: rootURL, StatusCode: resp.StatusCode})
	}
	id, ok, err := d.links.SmallestID(resp.Body)
	if err != nil {
		return catalog.Target{}, fmt.Errorf("scan root page: %w", err)
	}
	if !ok {
		return catalog.Target{}, fmt.Errorf("%w: %s under %s", ErrNoItemLinks, rootURL, d.itemPath)
	}
	return catalog.Target{
		StartID:  id,
		Template: catalog.Origin(u) + d.itemPath + "/" + catalog.IDPlaceholder,
	}, nil
}
