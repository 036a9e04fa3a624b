package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
)

// Deps are the collaborators a Driver needs.
type Deps struct {
	Prober       Prober
	Estimator    BoundEstimator
	Checkpointer Checkpointer
	// Pacer spaces network probes. Nil disables pacing.
	Pacer ratelimit.Pacer
	// Retry is consulted when FetchErrorPolicy is FetchErrorRetry. Nil
	// selects an exponential policy bounded by Config.MaxRetries.
	Retry RetryPolicy
	Clock Clock
}

// Driver runs the sequential scan.
type Driver struct {
	cfg          Config
	prober       Prober
	estimator    BoundEstimator
	checkpointer Checkpointer
	pacer        ratelimit.Pacer
	retry        RetryPolicy
	clock        Clock
	logger       *zap.Logger

	manual chan struct{}

	mu       sync.Mutex
	progress State
	running  bool
}

// NewDriver validates the configuration and wires the collaborators.
func NewDriver(cfg Config, deps Deps, logger *zap.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if deps.Estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if deps.Checkpointer == nil {
		return nil, fmt.Errorf("checkpointer is required")
	}
	if deps.Pacer == nil {
		deps.Pacer = ratelimit.New(ratelimit.Config{Name: "request"})
	}
	if deps.Retry == nil {
		deps.Retry = NewExponentialRetryPolicy(cfg.MaxRetries, 500*time.Millisecond, 5*time.Second)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:          cfg,
		prober:       deps.Prober,
		estimator:    deps.Estimator,
		checkpointer: deps.Checkpointer,
		pacer:        deps.Pacer,
		retry:        deps.Retry,
		clock:        deps.Clock,
		logger:       logger.Named("driver"),
		manual:       make(chan struct{}, 1),
		progress:     State{Phase: PhaseIdle},
	}, nil
}

// RequestCheckpoint asks the running scan to persist before its next id.
// Requests made while one is pending are coalesced; the return value reports
// whether this call queued a new one.
func (d *Driver) RequestCheckpoint() bool {
	select {
	case d.manual <- struct{}{}:
		return true
	default:
		return false
	}
}

// Progress returns a snapshot of the crawl state. It is safe to call from any
// goroutine.
func (d *Driver) Progress() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Run estimates the upper bound, scans from target.StartID, and always
// finishes with a checkpoint of the whole table. Cancellation of ctx is a
// normal way to stop and is reported through Summary.StopReason.
func (d *Driver) Run(ctx context.Context, target catalog.Target, table *catalog.Table) (Summary, error) {
	if table == nil {
		return Summary{}, fmt.Errorf("table is required")
	}
	if target.StartID < 1 || target.StartID > d.cfg.HardCap {
		return Summary{}, fmt.Errorf("start id %d outside [1, %d]", target.StartID, d.cfg.HardCap)
	}
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return Summary{}, fmt.Errorf("driver is already running")
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	st := State{
		Phase:     PhaseEstimating,
		Template:  target.Template,
		StartID:   target.StartID,
		CurrentID: target.StartID,
		Records:   table.Len(),
		StartedAt: d.clock.Now(),
	}
	d.publish(st)
	metrics.SetKnownRecords(table.Len())

	d.logger.Info("estimating upper bound",
		zap.Int("start_id", target.StartID),
		zap.Int("known", table.Len()),
	)
	bound, err := d.estimator.EstimateUpperBound(ctx, target.StartID, table)
	switch {
	case err == nil:
		st.UpperBound = bound
		metrics.SetUpperBound(bound)
		d.logger.Info("upper bound estimated", zap.Int("upper_bound", bound))
		st.Phase = PhaseScanning
		d.publish(st)
		st.StopReason = d.scan(ctx, &st, table)
	case ctx.Err() != nil:
		st.StopReason = StopCanceled
	default:
		return Summary{}, fmt.Errorf("estimate upper bound: %w", err)
	}

	final := d.checkpoint(context.WithoutCancel(ctx), table, "final")
	st.Phase = PhaseStopped
	st.Records = table.Len()
	d.publish(st)

	d.logger.Info("crawl finished",
		zap.String("stop_reason", string(st.StopReason)),
		zap.Int("last_id", st.CurrentID),
		zap.Int("last_success_id", st.LastSuccessID),
		zap.Int("found", st.Found),
		zap.Int("records", st.Records),
	)
	return newSummary(st, final, d.clock.Now()), nil
}

func (d *Driver) scan(ctx context.Context, st *State, table *catalog.Table) StopReason {
	lastBeat := d.clock.Now()
	for id := st.StartID; id <= d.cfg.HardCap; id++ {
		if ctx.Err() != nil {
			return StopCanceled
		}
		d.honorManualRequest(ctx, st, table)

		st.CurrentID = id
		st.Checked++
		metrics.SetCurrentID(id)

		if table.Has(id) {
			st.LastSuccessID = max(st.LastSuccessID, id)
		} else {
			res, err := d.probe(ctx, id)
			if err != nil {
				return StopCanceled
			}
			st.Fetched++
			d.apply(st, table, id, res)
		}
		st.Records = table.Len()

		if now := d.clock.Now(); d.cfg.HeartbeatInterval > 0 && now.Sub(lastBeat) >= d.cfg.HeartbeatInterval {
			d.logger.Info("still running",
				zap.Int("id", id),
				zap.Int("last_success_id", st.LastSuccessID),
				zap.Int("records", st.Records),
				zap.Float64("req_per_sec", st.RequestRate(now)),
				zap.Int("miss_streak", st.MissStreak),
			)
			lastBeat = now
		}
		d.publish(*st)

		if id >= st.UpperBound && st.LastSuccessID > 0 && id-st.LastSuccessID >= d.cfg.GapLimit {
			d.logger.Info("gap limit reached past last success",
				zap.Int("id", id),
				zap.Int("last_success_id", st.LastSuccessID),
				zap.Int("gap_limit", d.cfg.GapLimit),
			)
			return StopGap
		}

		if st.AddedSinceCheckpoint >= d.cfg.CheckpointBatch {
			d.checkpoint(ctx, table, "batch")
			st.AddedSinceCheckpoint = 0
			d.publish(*st)
		}
	}
	return StopHardCap
}

func (d *Driver) apply(st *State, table *catalog.Table, id int, res catalog.ProbeResult) {
	switch res.Status {
	case catalog.StatusFound:
		rec := res.Record
		rec.ID = id
		if table.Upsert(rec) {
			st.Found++
			st.AddedSinceCheckpoint++
			metrics.ObserveRecordAdded(table.Len())
		}
		st.LastSuccessID = id
		st.MissStreak = 0
		d.logger.Info("record found", zap.Int("id", id), zap.String("name", rec.Field("name")))
	default:
		st.MissStreak++
		if d.cfg.MissLogEvery > 0 && st.MissStreak%d.cfg.MissLogEvery == 0 {
			d.logger.Info("scanning through misses",
				zap.Int("id", id),
				zap.Int("miss_streak", st.MissStreak),
				zap.Int("last_success_id", st.LastSuccessID),
				zap.Int("records", table.Len()),
			)
		}
	}
}

// probe paces and fetches one id. The error is non-nil only when ctx ends
// without the id being found.
func (d *Driver) probe(ctx context.Context, id int) (catalog.ProbeResult, error) {
	for attempt := 0; ; attempt++ {
		if err := d.pacer.Wait(ctx); err != nil {
			return catalog.ProbeResult{}, err
		}
		res := d.prober.Probe(ctx, id)
		d.pacer.Done()
		if res.Status == catalog.StatusFound {
			// Keep a record that arrived as the run was being canceled.
			metrics.ObserveProbe("crawl", res.Status.String())
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		metrics.ObserveProbe("crawl", res.Status.String())
		if res.Status != catalog.StatusFetchError {
			return res, nil
		}
		if d.cfg.FetchErrorPolicy != FetchErrorRetry || !d.retry.ShouldRetry(res.Err, attempt) {
			d.logger.Warn("fetch failed, counting as miss", zap.Int("id", id), zap.Int("attempt", attempt), zap.Error(res.Err))
			return res, nil
		}
		backoff := d.retry.Backoff(attempt)
		d.logger.Debug("retrying fetch", zap.Int("id", id), zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(res.Err))
		if err := sleep(ctx, backoff); err != nil {
			return res, err
		}
	}
}

func (d *Driver) honorManualRequest(ctx context.Context, st *State, table *catalog.Table) {
	select {
	case <-d.manual:
	default:
		return
	}
	d.logger.Info("manual checkpoint requested",
		zap.Int("id", st.CurrentID),
		zap.Int("miss_streak", st.MissStreak),
		zap.Int("last_success_id", st.LastSuccessID),
		zap.Int("records", table.Len()),
	)
	d.checkpoint(ctx, table, "manual")
}

func (d *Driver) checkpoint(ctx context.Context, table *catalog.Table, reason string) catalog.PersistResult {
	res := d.checkpointer.Persist(ctx, table.Sorted())
	switch {
	case res.Locked:
		metrics.ObserveCheckpoint("locked")
		d.logger.Warn("canonical table in use, saved to fallback",
			zap.String("reason", reason),
			zap.String("location", res.Location),
			zap.Int("count", res.Count),
		)
	case res.OK:
		metrics.ObserveCheckpoint("ok")
		d.logger.Info("checkpoint saved",
			zap.String("reason", reason),
			zap.String("location", res.Location),
			zap.Int("count", res.Count),
		)
	default:
		metrics.ObserveCheckpoint("failed")
		d.logger.Warn("checkpoint failed, continuing",
			zap.String("reason", reason),
			zap.Int("count", res.Count),
			zap.Error(res.Err),
		)
	}
	return res
}

func (d *Driver) publish(st State) {
	d.mu.Lock()
	d.progress = st
	d.mu.Unlock()
}
