package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
)

// Estimator searches for the upper end of the populated id range by probing a
// sparse sample of windows whose distance from the last hit doubles each round.
type Estimator struct {
	cfg     EstimatorConfig
	hardCap int
	prober  Prober
	pacer   ratelimit.Pacer
	logger  *zap.Logger
}

var _ BoundEstimator = (*Estimator)(nil)

// NewEstimator builds an Estimator. Results never exceed hardCap.
func NewEstimator(cfg EstimatorConfig, hardCap int, prober Prober, pacer ratelimit.Pacer, logger *zap.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hardCap < 1 {
		return nil, fmt.Errorf("hard cap must be >= 1")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if pacer == nil {
		pacer = ratelimit.New(ratelimit.Config{Name: "probe"})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		cfg:     cfg,
		hardCap: hardCap,
		prober:  prober,
		pacer:   pacer,
		logger:  logger.Named("estimator"),
	}, nil
}

// EstimateUpperBound returns a bound in [startID, hardCap] when
// startID <= hardCap. The only error is context cancellation.
func (e *Estimator) EstimateUpperBound(ctx context.Context, startID int, known *catalog.Table) (int, error) {
	if known == nil {
		known = catalog.NewTable()
	}
	lastSeen := startID
	step := e.cfg.InitialStep

	for round := 0; round < e.cfg.MaxRounds; round++ {
		hi := min(lastSeen+step, e.hardCap)
		from := max(1, hi-e.cfg.BlockSize+1)

		hit, err := e.windowHasHit(ctx, from, hi, known)
		if err != nil {
			return 0, err
		}
		e.logger.Debug("probed window",
			zap.Int("round", round),
			zap.Int("from", from),
			zap.Int("to", hi),
			zap.Bool("hit", hit),
		)
		if !hit {
			return hi, nil
		}
		lastSeen = hi
		step *= 2
		if hi >= e.hardCap {
			break
		}
	}
	return min(lastSeen+e.cfg.BlockSize, e.hardCap), nil
}

func (e *Estimator) windowHasHit(ctx context.Context, from, to int, known *catalog.Table) (bool, error) {
	for _, id := range sampleIDs(from, to, e.cfg.SampleStride) {
		if known.Has(id) {
			return true, nil
		}
		if err := e.pacer.Wait(ctx); err != nil {
			return false, err
		}
		res := e.prober.Probe(ctx, id)
		e.pacer.Done()
		if err := ctx.Err(); err != nil {
			return false, err
		}
		metrics.ObserveProbe("estimate", res.Status.String())
		if res.Status == catalog.StatusFound {
			return true, nil
		}
	}
	return false, nil
}

// sampleIDs lists from, from+stride, ... and to, ascending and distinct.
func sampleIDs(from, to, stride int) []int {
	if to < from {
		return nil
	}
	if stride < 1 {
		stride = 1
	}
	ids := make([]int, 0, (to-from)/stride+2)
	for id := from; id <= to; id += stride {
		ids = append(ids, id)
	}
	if ids[len(ids)-1] != to {
		ids = append(ids, to)
	}
	return ids
}
