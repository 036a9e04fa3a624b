// Package gcs uploads timestamped snapshots of the record table to Google
// Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/output"
)

// Encoder renders the table in one file format.
type Encoder interface {
	Ext() string
	Encode(records []catalog.Record) ([]byte, error)
}

// Clock abstracts time for snapshot names.
type Clock interface {
	Now() time.Time
}

// Config captures the parameters required to place snapshots.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "catalog/snapshots".
	Prefix string
	Naming output.Naming
}

// objectWriter opens a writer for bucket/name. Closing it finalizes the upload.
type objectWriter func(ctx context.Context, bucket, name, contentType string) io.WriteCloser

// SnapshotMirror writes one object per successful checkpoint.
type SnapshotMirror struct {
	open    objectWriter
	bucket  string
	prefix  string
	naming  output.Naming
	encoder Encoder
	clock   Clock
}

// New creates a GCS-backed snapshot mirror.
func New(client *storage.Client, cfg Config, encoder Encoder, clock Clock) (*SnapshotMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	open := func(ctx context.Context, bucket, name, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(name).NewWriter(ctx)
		if contentType != "" {
			w.ContentType = contentType
		}
		return w
	}
	return newWithWriter(open, cfg, encoder, clock)
}

func newWithWriter(open objectWriter, cfg Config, encoder Encoder, clock Clock) (*SnapshotMirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Naming.Basename == "" {
		return nil, fmt.Errorf("basename is required")
	}
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &SnapshotMirror{
		open:    open,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		naming:  cfg.Naming,
		encoder: encoder,
		clock:   clock,
	}, nil
}

// Name implements checkpoint.Mirror.
func (m *SnapshotMirror) Name() string { return "gcs" }

// Mirror encodes the records and uploads them, returning a gs:// URI.
func (m *SnapshotMirror) Mirror(ctx context.Context, records []catalog.Record) (string, error) {
	data, err := m.encoder.Encode(records)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	name := m.naming.Fallback(m.encoder.Ext(), m.clock.Now())
	if m.prefix != "" {
		name = path.Join(m.prefix, name)
	}

	wc := m.open(ctx, m.bucket, name, contentType(m.encoder.Ext()))
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			return "", fmt.Errorf("write object %s: %w (close writer: %v)", name, err, closeErr)
		}
		return "", fmt.Errorf("write object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close writer for object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, name), nil
}

func contentType(ext string) string {
	switch ext {
	case output.ExtXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case output.ExtCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
