package crawl

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

type proberFunc func(ctx context.Context, id int) catalog.ProbeResult

func (f proberFunc) Probe(ctx context.Context, id int) catalog.ProbeResult { return f(ctx, id) }

// fakeProber serves items from a fixed set and records every probed id.
type fakeProber struct {
	mu       sync.Mutex
	items    map[int]bool
	failures map[int]int
	calls    []int
	onProbe  func(id int)
}

func newFakeProber(ids ...int) *fakeProber {
	items := make(map[int]bool, len(ids))
	for _, id := range ids {
		items[id] = true
	}
	return &fakeProber{items: items, failures: map[int]int{}}
}

func (p *fakeProber) Probe(_ context.Context, id int) catalog.ProbeResult {
	p.mu.Lock()
	p.calls = append(p.calls, id)
	hook := p.onProbe
	// A positive count fails that many times; a negative one always fails.
	fail := p.failures[id]
	if fail > 0 {
		p.failures[id] = fail - 1
	}
	p.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if fail != 0 {
		return catalog.FetchFailed(errors.New("connection reset"))
	}
	if !p.items[id] {
		return catalog.NotFound()
	}
	return catalog.Found(catalog.Record{
		ID:     id,
		Fields: map[string]string{"name": "item"},
		URL:    "https://example.com/product/info/" + strconv.Itoa(id),
	})
}

func (p *fakeProber) Calls() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.calls...)
}

func (p *fakeProber) CallsFor(id int) int {
	n := 0
	for _, c := range p.Calls() {
		if c == id {
			n++
		}
	}
	return n
}

type fixedBound int

func (b fixedBound) EstimateUpperBound(context.Context, int, *catalog.Table) (int, error) {
	return int(b), nil
}

type fakeCheckpointer struct {
	mu       sync.Mutex
	saves    [][]catalog.Record
	ctxErrs  []error
	response catalog.PersistResult
}

func (c *fakeCheckpointer) Persist(ctx context.Context, records []catalog.Record) catalog.PersistResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves = append(c.saves, records)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	res := c.response
	if !res.OK && !res.Locked && res.Err == nil {
		res.OK = true
	}
	res.Count = len(records)
	return res
}

func (c *fakeCheckpointer) Saves() [][]catalog.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]catalog.Record(nil), c.saves...)
}

type noDelayRetry struct{ max int }

func (r noDelayRetry) ShouldRetry(err error, attempt int) bool { return err != nil && attempt < r.max }
func (noDelayRetry) Backoff(int) time.Duration                 { return 0 }

func ids(records []catalog.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// recordingPacer never blocks and logs the order of Wait and Done calls.
type recordingPacer struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPacer) Wait(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "wait")
	return nil
}

func (p *recordingPacer) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "done")
}

func (p *recordingPacer) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
