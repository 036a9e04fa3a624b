package catalog

import (
	"fmt"
	"strings"
)

// Record is one extracted catalog item.
type Record struct {
	ID     int               `json:"id"`
	Fields map[string]string `json:"fields"`
	URL    string            `json:"url"`
}

// Field returns the trimmed value stored under key, or "" when absent.
func (r Record) Field(key string) string {
	if r.Fields == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[key])
}

// ProbeStatus classifies the outcome of probing a single id.
type ProbeStatus int

// Probe outcomes.
const (
	StatusNotFound ProbeStatus = iota
	StatusFound
	StatusFetchError
)

func (s ProbeStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFetchError:
		return "fetch_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ProbeResult is returned by a fetch-probe for one id.
type ProbeResult struct {
	Status ProbeStatus
	Record Record
	Err    error
}

// Found wraps a successfully extracted record.
func Found(rec Record) ProbeResult {
	return ProbeResult{Status: StatusFound, Record: rec}
}

// NotFound reports that no item exists at the probed id.
func NotFound() ProbeResult {
	return ProbeResult{Status: StatusNotFound}
}

// FetchFailed reports a transport, timeout, or parse failure.
func FetchFailed(err error) ProbeResult {
	return ProbeResult{Status: StatusFetchError, Err: err}
}

// PersistResult describes the outcome of one checkpoint write.
type PersistResult struct {
	// OK is true when every artifact landed at its canonical location.
	OK bool
	// Locked is true when at least one artifact was diverted to a fallback name.
	Locked         bool
	Location       string
	MirrorLocation string
	Count          int
	Err            error
}
