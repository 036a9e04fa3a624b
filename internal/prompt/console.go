// Package prompt collects interactive input: the start URL when none is given
// on the command line, and Enter presses that request a checkpoint while a
// crawl is running.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrClosed is returned when input ends before a line is read.
var ErrClosed = errors.New("prompt: input closed")

// Question is shown when asking for the start URL.
const Question = "Enter the first item URL or the site root (e.g. https://example.com/ or https://example.com/product/info/1):"

// Prompter asks the operator for the start URL.
type Prompter interface {
	AskStartURL(ctx context.Context) (string, error)
}

// Console reads lines from one input stream. A single reader goroutine feeds
// every consumer so no buffered input is lost between them.
type Console struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

var _ Prompter = (*Console)(nil)

// NewConsole wraps in and out, typically os.Stdin and os.Stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) start() {
	c.once.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
		}()
	})
}

// AskStartURL prints Question and returns the next trimmed line.
func (c *Console) AskStartURL(ctx context.Context) (string, error) {
	if _, err := fmt.Fprintln(c.out, Question); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	c.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", ErrClosed
		}
		return strings.TrimSpace(line), nil
	}
}

// WatchEnter calls onEnter for every line read until ctx is done or the input
// ends. It blocks; run it in its own goroutine.
func (c *Console) WatchEnter(ctx context.Context, onEnter func()) {
	c.start()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.lines:
			if !ok {
				return
			}
			onEnter()
		}
	}
}
