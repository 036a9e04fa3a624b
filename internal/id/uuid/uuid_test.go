// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique and valid UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if _, err := goUUID.Parse(id1); err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if _, err := goUUID.Parse(id2); err != nil {
		t.Fatalf("id2 not valid UUID: %v", err)
	}
}

// TestGeneratorNewToken ensures tokens are short hex strings and unique.
func TestGeneratorNewToken(t *testing.T) {
	t.Parallel()

	gen := New()
	tok1, err := gen.NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	tok2, err := gen.NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	if len(tok1) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", tok1)
	}
	if tok1 == tok2 {
		t.Fatalf("expected unique tokens, got %s twice", tok1)
	}
}
