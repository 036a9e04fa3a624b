package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskStartURL(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := NewConsole(strings.NewReader("  example.com/product/info/3  \n"), &out)

	got, err := c.AskStartURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "example.com/product/info/3", got)
	assert.Contains(t, out.String(), Question)
}

func TestAskStartURLClosedInput(t *testing.T) {
	t.Parallel()

	c := NewConsole(strings.NewReader(""), io.Discard)
	_, err := c.AskStartURL(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestAskStartURLCanceled(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConsole(r, io.Discard).AskStartURL(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWatchEnterSharesInputWithPrompt(t *testing.T) {
	t.Parallel()

	c := NewConsole(strings.NewReader("https://example.com/\n\n\n"), io.Discard)
	got, err := c.AskStartURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", got)

	var presses atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WatchEnter(context.Background(), func() { presses.Add(1) })
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchEnter did not return at end of input")
	}
	assert.Equal(t, int32(2), presses.Load())
}

func TestWatchEnterStopsOnCancel(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewConsole(r, io.Discard).WatchEnter(ctx, func() {})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchEnter ignored cancellation")
	}
}
