// Package extract pulls catalog fields out of item pages and item links out of
// listing pages.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// ErrNoTitle means the page carries no item title, which is how the site
// renders ids that have no item.
var ErrNoTitle = errors.New("extract: page has no title")

const (
	authorSuffix    = "老師"
	maxAuthorRunes  = 20
	maxTagRunes     = 18
	maxTags         = 12
	metricWindow    = 90
	tagSeparator    = " / "
	candidateFilter = "a, span, div"
)

var (
	numberPattern  = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	tickerPattern  = regexp.MustCompile(`^(#)?[A-Z]{2,6}\d?$`)
	marketPattern  = regexp.MustCompile(`台指|加權|櫃買|期貨|策略|程式交易|自動交易`)
	spacePattern   = regexp.MustCompile(`\s+`)
	tagStopPhrases = map[string]struct{}{"查看詳情": {}, "策略市集": {}}

	metricLabels = []struct{ key, label string }{
		{"net_profit", "淨利"},
		{"win_rate", "勝率"},
		{"risk_reward", "風報比"},
	}
)

// Product extracts strategy product pages.
type Product struct{}

// Extract parses body and returns a record for pageURL. The record id is left
// for the caller to set.
func (Product) Extract(body []byte, pageURL string) (catalog.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Record{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		content, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(content)
	}
	if title == "" {
		return catalog.Record{}, ErrNoTitle
	}

	fields := map[string]string{
		"name":   title,
		"author": author(doc),
		"tags":   strings.Join(tags(doc), tagSeparator),
	}
	pageText := spacePattern.ReplaceAllString(doc.Find("body").Text(), " ")
	for _, m := range metricLabels {
		fields[m.key] = numberAfter(pageText, m.label)
	}

	return catalog.Record{Fields: fields, URL: pageURL}, nil
}

func author(doc *goquery.Document) string {
	match := doc.Find(candidateFilter).FilterFunction(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		return strings.HasSuffix(t, authorSuffix) && utf8.RuneCountInString(t) <= maxAuthorRunes
	}).First()
	return strings.TrimSpace(match.Text())
}

func tags(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find(candidateFilter).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if t == "" || utf8.RuneCountInString(t) > maxTagRunes {
			return true
		}
		if _, stop := tagStopPhrases[t]; stop {
			return true
		}
		if !tickerPattern.MatchString(t) && !marketPattern.MatchString(t) {
			return true
		}
		t = strings.TrimPrefix(t, "#")
		if _, dup := seen[t]; dup {
			return true
		}
		seen[t] = struct{}{}
		out = append(out, t)
		return len(out) < maxTags
	})
	return out
}

// numberAfter returns the first number within metricWindow characters of the
// first occurrence of label, with thousands separators removed.
func numberAfter(text, label string) string {
	idx := strings.Index(text, label)
	if idx < 0 {
		return ""
	}
	window := text[idx:]
	n := 0
	for i := range window {
		if n == metricWindow {
			window = window[:i]
			break
		}
		n++
	}
	return strings.ReplaceAll(numberPattern.FindString(window), ",", "")
}
