// Package checkpoint persists the record table without ever leaving a
// half-written canonical file behind.
//
// Every artifact is first written to a uniquely named temporary file. Only
// when all temporaries exist is each one renamed onto its canonical name. A
// rename that fails, typically because a spreadsheet program holds the file
// open, diverts that artifact to a timestamped fallback name instead, so the
// data is never lost and the crawl never stops. When the primary table is
// diverted, every other artifact follows it to the same timestamp, so the
// canonical files always describe the same checkpoint.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/output"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// Mirror receives a copy of every successfully written table. Failures are
// reported but never affect the checkpoint result.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, records []catalog.Record) (string, error)
}

// TokenSource produces unique tokens for temporary names.
type TokenSource interface {
	NewToken() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config wires a Writer.
type Config struct {
	Naming output.Naming
	// Codecs lists the artifacts to write, primary table first.
	Codecs  []output.Codec
	Mirrors []Mirror
	Tokens  TokenSource
	Clock   Clock
}

// Writer implements the two-step write protocol.
type Writer struct {
	fs      storage.Filesystem
	naming  output.Naming
	codecs  []output.Codec
	mirrors []Mirror
	tokens  TokenSource
	clock   Clock
	logger  *zap.Logger
}

// NewWriter validates cfg and returns a Writer.
func NewWriter(cfg Config, fs storage.Filesystem, logger *zap.Logger) (*Writer, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if len(cfg.Codecs) == 0 {
		return nil, fmt.Errorf("at least one codec is required")
	}
	if cfg.Naming.Basename == "" {
		return nil, fmt.Errorf("basename is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		fs:      fs,
		naming:  cfg.Naming,
		codecs:  cfg.Codecs,
		mirrors: cfg.Mirrors,
		tokens:  cfg.Tokens,
		clock:   cfg.Clock,
		logger:  logger.Named("checkpoint"),
	}, nil
}

// Persist writes records, de-duplicated by id and sorted ascending. It never
// panics and never returns an error directly; the outcome is in the result.
func (w *Writer) Persist(ctx context.Context, records []catalog.Record) (res catalog.PersistResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("checkpoint panicked", zap.Any("panic", r))
			res = catalog.PersistResult{Count: res.Count, Err: fmt.Errorf("checkpoint panic: %v", r)}
		}
	}()

	sorted := catalog.Normalize(records)
	res.Count = len(sorted)

	temps, err := w.writeTemps(ctx, sorted)
	if err != nil {
		res.Err = err
		return res
	}

	stamp := w.clock.Now()
	diverted := false
	for i, codec := range w.codecs {
		loc, locked, err := w.promote(ctx, temps[i], codec.Ext(), stamp, diverted)
		if i == 0 {
			diverted = locked || err != nil
		}
		if err != nil {
			res.Err = errors.Join(res.Err, err)
			continue
		}
		res.Locked = res.Locked || locked
		if i == 0 {
			res.Location = loc
		} else if res.MirrorLocation == "" {
			res.MirrorLocation = loc
		}
	}
	res.OK = res.Err == nil && !res.Locked

	if res.Err == nil {
		w.runMirrors(ctx, sorted)
	}
	return res
}

func (w *Writer) writeTemps(ctx context.Context, records []catalog.Record) ([]string, error) {
	token, err := w.tokens.NewToken()
	if err != nil {
		token = strconv.FormatInt(w.clock.Now().UnixNano(), 36)
	}
	temps := make([]string, 0, len(w.codecs))
	for _, codec := range w.codecs {
		data, err := codec.Encode(records)
		if err != nil {
			w.cleanup(ctx, temps)
			return nil, fmt.Errorf("encode %s: %w", codec.Ext(), err)
		}
		name := w.naming.Temp(codec.Ext(), token)
		if err := w.fs.WriteFile(ctx, name, data); err != nil {
			w.cleanup(ctx, append(temps, name))
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		temps = append(temps, name)
	}
	return temps, nil
}

// promote moves temp onto the canonical name, or onto a fallback name when
// the canonical one cannot be replaced or divert is set.
func (w *Writer) promote(ctx context.Context, temp, ext string, stamp time.Time, divert bool) (string, bool, error) {
	canonical := w.naming.Canonical(ext)
	fallback := w.naming.Fallback(ext, stamp)
	var err error
	if divert {
		w.logger.Info("primary table diverted, writing beside it",
			zap.String("file", canonical),
			zap.String("fallback", fallback),
		)
	} else {
		err = w.fs.Rename(ctx, temp, canonical)
		if err == nil {
			return canonical, false, nil
		}
		w.logger.Warn("canonical file unavailable, using fallback",
			zap.String("file", canonical),
			zap.String("fallback", fallback),
			zap.Bool("locked", errors.Is(err, storage.ErrLocked)),
			zap.Error(err),
		)
	}
	if ferr := w.fs.Rename(ctx, temp, fallback); ferr != nil {
		w.cleanup(ctx, []string{temp})
		return "", false, fmt.Errorf("promote %s: %w", temp, errors.Join(err, ferr))
	}
	return fallback, true, nil
}

func (w *Writer) runMirrors(ctx context.Context, records []catalog.Record) {
	for _, m := range w.mirrors {
		loc, err := m.Mirror(ctx, records)
		if err != nil {
			w.logger.Warn("mirror failed", zap.String("mirror", m.Name()), zap.Error(err))
			continue
		}
		w.logger.Debug("mirrored table", zap.String("mirror", m.Name()), zap.String("location", loc), zap.Int("count", len(records)))
	}
}

func (w *Writer) cleanup(ctx context.Context, names []string) {
	for _, name := range names {
		if err := w.fs.Remove(ctx, name); err != nil {
			w.logger.Debug("remove temp failed", zap.String("file", name), zap.Error(err))
		}
	}
}
