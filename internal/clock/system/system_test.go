// Package system exercises the wall clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowLocal ensures the clock reports local time near time.Now.
func TestClockNowLocal(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	if got.Location() != time.Local {
		t.Fatalf("expected local location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockSince checks elapsed time is non-negative and grows.
func TestClockSince(t *testing.T) {
	t.Parallel()

	clk := New()
	start := clk.Now().Add(-50 * time.Millisecond)
	if got := clk.Since(start); got < 50*time.Millisecond {
		t.Fatalf("expected at least 50ms, got %v", got)
	}
}
