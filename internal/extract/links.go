package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ItemLinks finds anchors that point at item pages under a fixed path prefix.
type ItemLinks struct {
	pattern *regexp.Regexp
}

// NewItemLinks matches hrefs containing "<itemPath>/<digits>".
func NewItemLinks(itemPath string) (*ItemLinks, error) {
	itemPath = strings.TrimRight(itemPath, "/")
	if itemPath == "" {
		return nil, fmt.Errorf("item path is required")
	}
	re, err := regexp.Compile(regexp.QuoteMeta(itemPath) + `/(\d+)`)
	if err != nil {
		return nil, fmt.Errorf("compile item path: %w", err)
	}
	return &ItemLinks{pattern: re}, nil
}

// SmallestID returns the lowest item id linked from body.
func (l *ItemLinks) SmallestID(body []byte) (int, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("parse html: %w", err)
	}
	best, found := 0, false
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := l.pattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || id <= 0 {
			return
		}
		if !found || id < best {
			best, found = id, true
		}
	})
	return best, found, nil
}
