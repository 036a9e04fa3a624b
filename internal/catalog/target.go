package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// IDPlaceholder marks where the numeric id goes in a URL template.
const IDPlaceholder = "{id}"

// ErrInvalidStartURL is returned when the input cannot yield a numeric start id.
var ErrInvalidStartURL = errors.New("url must end with a numeric item id")

var (
	schemePattern  = regexp.MustCompile(`(?i)^https?://`)
	numericSegment = regexp.MustCompile(`^\d+$`)
)

// Target is the id range origin and the template used to address items.
type Target struct {
	StartID  int
	Template string
}

// URL renders the item URL for id.
func (t Target) URL(id int) string {
	return strings.Replace(t.Template, IDPlaceholder, strconv.Itoa(id), 1)
}

// NormalizeInput trims the raw input and prefixes https:// when no scheme is given.
func NormalizeInput(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if schemePattern.MatchString(raw) {
		return raw
	}
	return "https://" + raw
}

// ParseItemURL derives a Target from a concrete item URL whose trailing path
// segment is the numeric id.
func ParseItemURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse item url: %w", err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrInvalidStartURL, raw)
	}
	parts := splitPath(u.Path)
	if len(parts) == 0 || !numericSegment.MatchString(parts[len(parts)-1]) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidStartURL, raw)
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || id <= 0 {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidStartURL, raw)
	}
	base := strings.Join(parts[:len(parts)-1], "/")
	template := Origin(u) + "/" + IDPlaceholder
	if base != "" {
		template = Origin(u) + "/" + base + "/" + IDPlaceholder
	}
	return Target{StartID: id, Template: template}, nil
}

// Origin returns scheme://host[:port] for u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func splitPath(p string) []string {
	raw := strings.Split(p, "/")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
