// Package resume rebuilds the record table from the files a previous run left
// behind so a new run skips ids it already has.
package resume

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/output"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// Store reads the canonical artifacts. Sources are tried in order; the first
// one that decodes wins.
type Store struct {
	fs      storage.Filesystem
	naming  output.Naming
	sources []output.Codec
	logger  *zap.Logger
}

// New creates a Store. Sources are usually the primary table codec followed by
// its mirror.
func New(fs storage.Filesystem, naming output.Naming, sources []output.Codec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fs:      fs,
		naming:  naming,
		sources: sources,
		logger:  logger.Named("resume"),
	}
}

// LoadExisting returns the previously persisted records. A missing or
// unreadable file is never fatal: the next source is tried and, failing all,
// an empty table is returned.
func (s *Store) LoadExisting(ctx context.Context) *catalog.Table {
	for _, codec := range s.sources {
		name := s.naming.Canonical(codec.Ext())
		data, err := s.fs.ReadFile(ctx, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Debug("no previous table", zap.String("file", name))
			} else {
				s.logger.Warn("previous table unreadable", zap.String("file", name), zap.Error(err))
			}
			continue
		}
		decoded, err := codec.Decode(data)
		if err != nil {
			s.logger.Warn("previous table could not be parsed", zap.String("file", name), zap.Error(err))
			continue
		}
		if decoded.Dropped > 0 {
			s.logger.Debug("dropped malformed rows", zap.String("file", name), zap.Int("rows", decoded.Dropped))
		}
		table := catalog.NewTable(decoded.Records...)
		s.logger.Info("resumed previous table",
			zap.String("file", name),
			zap.Int("records", table.Len()),
			zap.Int("max_id", table.MaxID()),
		)
		return table
	}
	return catalog.NewTable()
}
