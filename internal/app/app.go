// Package app initializes and holds the long-lived services of a crawl run,
// acting as the dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/api"
	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/checkpoint"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawl"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/output"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/probe"
	pubsubpublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/resume"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
)

// Publisher announces the summary of a finished run.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}

// EnterWatcher calls onEnter for every line the operator submits while the
// crawl runs.
type EnterWatcher interface {
	WatchEnter(ctx context.Context, onEnter func())
}

// Services are the external collaborators an App is built from. NewServices
// creates the production set; tests pass fakes.
type Services struct {
	Filesystem storage.Filesystem
	Fetcher    probe.Fetcher
	Mirrors    []checkpoint.Mirror
	// Publisher is optional; nil skips the run summary notification.
	Publisher Publisher
	Closers   []func() error
}

// App holds the shared services for one crawl invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fs        storage.Filesystem
	fetcher   probe.Fetcher
	naming    output.Naming
	codecs    []output.Codec
	writer    *checkpoint.Writer
	publisher Publisher
	ids       *uuid.Generator
	clock     *system.Clock
	closers   []func() error
}

// NewApp builds the production services from cfg and wires an App. It fails
// fast if any configured backend cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	svc, err := NewServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, svc, logger)
	if err != nil {
		closeAll(svc.Closers, logger)
		return nil, err
	}
	return a, nil
}

// NewServices creates the local filesystem, the page fetcher, and every
// optional backend enabled in cfg.
func NewServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (svc Services, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		if err != nil {
			closeAll(svc.Closers, logger)
			svc.Closers = nil
		}
	}()

	fs, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return svc, fmt.Errorf("init output directory: %w", err)
	}
	svc.Filesystem = fs
	svc.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
		Headers:       requestHeaders(cfg.HTTP),
	})

	if cfg.Postgres.DSN != "" {
		logger.Info("Connecting to PostgreSQL...", zap.String("table", cfg.Postgres.Table))
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Table: cfg.Postgres.Table})
		if err != nil {
			return svc, fmt.Errorf("init postgres mirror: %w", err)
		}
		svc.Mirrors = append(svc.Mirrors, store)
		svc.Closers = append(svc.Closers, func() error { store.Close(); return nil })
	}

	if cfg.Storage.GCSBucket != "" {
		logger.Info("Using GCS snapshot mirror", zap.String("bucket", cfg.Storage.GCSBucket))
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return svc, fmt.Errorf("create GCS client: %w", err)
		}
		svc.Closers = append(svc.Closers, client.Close)
		mirror, err := gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
			Naming: output.Naming{Basename: cfg.Output.Basename},
		}, output.XLSX{Schema: catalog.ProductSchema, Sheet: cfg.Output.Sheet}, system.New())
		if err != nil {
			return svc, fmt.Errorf("init GCS mirror: %w", err)
		}
		svc.Mirrors = append(svc.Mirrors, mirror)
	}

	if cfg.PubSub.ProjectID != "" {
		logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.Topic))
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return svc, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client)
		svc.Publisher = pub
		svc.Closers = append(svc.Closers, pub.Close)
	}
	return svc, nil
}

// New wires an App from already-built services.
func New(cfg config.Config, svc Services, logger *zap.Logger) (*App, error) {
	if svc.Filesystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if svc.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	naming := output.Naming{Basename: cfg.Output.Basename}
	codecs := []output.Codec{
		output.XLSX{Schema: catalog.ProductSchema, Sheet: cfg.Output.Sheet},
		output.CSV{Schema: catalog.ProductSchema},
	}
	ids := uuid.New()
	clock := system.New()
	writer, err := checkpoint.NewWriter(checkpoint.Config{
		Naming:  naming,
		Codecs:  codecs,
		Mirrors: svc.Mirrors,
		Tokens:  ids,
		Clock:   clock,
	}, svc.Filesystem, logger)
	if err != nil {
		return nil, fmt.Errorf("init checkpoint writer: %w", err)
	}
	return &App{
		cfg:       cfg,
		logger:    logger,
		fs:        svc.Filesystem,
		fetcher:   svc.Fetcher,
		naming:    naming,
		codecs:    codecs,
		writer:    writer,
		publisher: svc.Publisher,
		ids:       ids,
		clock:     clock,
		closers:   svc.Closers,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// ResolveTarget turns operator input into a crawl target. An item URL is
// used directly; anything else is treated as a site root and the smallest
// linked item id is discovered from it.
func (a *App) ResolveTarget(ctx context.Context, raw string) (catalog.Target, error) {
	input := catalog.NormalizeInput(raw)
	if input == "" {
		return catalog.Target{}, fmt.Errorf("%w: empty input", catalog.ErrInvalidStartURL)
	}
	if target, err := catalog.ParseItemURL(input); err == nil {
		return target, nil
	}
	links, err := extract.NewItemLinks(a.cfg.Discovery.ItemPath)
	if err != nil {
		return catalog.Target{}, fmt.Errorf("build item link pattern: %w", err)
	}
	a.logger.Info("input is not an item URL, discovering first item", zap.String("root", input))
	target, err := probe.NewDiscoverer(a.fetcher, links, a.cfg.Discovery.ItemPath).FirstItem(ctx, input)
	if err != nil {
		return catalog.Target{}, fmt.Errorf("discover first item: %w", err)
	}
	a.logger.Info("discovered first item", zap.Int("start_id", target.StartID), zap.String("template", target.Template))
	return target, nil
}

// Crawl runs one full crawl of target: resume, estimate, scan, and the final
// checkpoint. watcher may be nil. The status server runs for the duration of
// the crawl when server.addr is set.
func (a *App) Crawl(ctx context.Context, target catalog.Target, watcher EnterWatcher) (crawl.Summary, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := logging.ForRun(a.logger, runID, target.Template)

	table := resume.New(a.fs, a.naming, a.codecs, logger).LoadExisting(ctx)
	metrics.SetKnownRecords(table.Len())

	driver, err := a.newDriver(target, logger)
	if err != nil {
		return crawl.Summary{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.WatchEnter(runCtx, func() {
				if driver.RequestCheckpoint() {
					logger.Info("manual checkpoint requested")
				}
			})
		}()
	}
	if addr := a.cfg.Server.Addr; addr != "" {
		srv := api.NewServer(driver, a.clock, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(runCtx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("status server stopped", zap.Error(err))
			}
		}()
	}

	summary, err := driver.Run(ctx, target, table)
	cancel()
	wg.Wait()
	if err != nil {
		return summary, fmt.Errorf("run crawl: %w", err)
	}
	summary.RunID = runID
	a.publishSummary(context.WithoutCancel(ctx), summary, logger)
	return summary, nil
}

func (a *App) newDriver(target catalog.Target, logger *zap.Logger) (*crawl.Driver, error) {
	settings := a.cfg.CrawlSettings()
	prober := probe.New(target, a.fetcher, extract.Product{}, isMissingItem, logger)

	probePacer := ratelimit.New(ratelimit.Config{
		Name:     "probe",
		Interval: a.cfg.Probe.Interval,
		Observe:  metrics.ObserveRateLimitDelay,
	})
	estimator, err := crawl.NewEstimator(settings.Estimator, settings.HardCap, prober, probePacer, logger)
	if err != nil {
		return nil, fmt.Errorf("init estimator: %w", err)
	}

	driver, err := crawl.NewDriver(settings, crawl.Deps{
		Prober:       prober,
		Estimator:    estimator,
		Checkpointer: a.writer,
		Pacer: ratelimit.New(ratelimit.Config{
			Name:     "request",
			Interval: a.cfg.Crawl.RequestInterval,
			Observe:  metrics.ObserveRateLimitDelay,
		}),
		Retry: crawl.NewExponentialRetryPolicy(settings.MaxRetries, a.cfg.Crawl.BackoffInitial, a.cfg.Crawl.BackoffMax),
		Clock: a.clock,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init driver: %w", err)
	}
	return driver, nil
}

func (a *App) publishSummary(ctx context.Context, summary crawl.Summary, logger *zap.Logger) {
	if a.publisher == nil || a.cfg.PubSub.Topic == "" {
		return
	}
	id, err := a.publisher.Publish(ctx, a.cfg.PubSub.Topic, summary)
	if err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	logger.Info("published run summary", zap.String("message_id", id))
}

// Close releases every backend opened by NewServices.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	closeAll(a.closers, a.logger)
	a.closers = nil
}

// isMissingItem reports extraction errors that mean no item lives at the id.
func isMissingItem(err error) bool {
	return errors.Is(err, extract.ErrNoTitle)
}

func requestHeaders(cfg config.HTTPConfig) http.Header {
	h := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		h.Set(k, v)
	}
	if cfg.AcceptLanguage != "" {
		h.Set("Accept-Language", cfg.AcceptLanguage)
	}
	return h
}

func closeAll(closers []func() error, logger *zap.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Error closing service", zap.Error(err))
		}
	}
}
