package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

func estimatorConfig() EstimatorConfig {
	return EstimatorConfig{BlockSize: 200, InitialStep: 200, MaxRounds: 20, SampleStride: 10}
}

func everything() proberFunc {
	return func(_ context.Context, id int) catalog.ProbeResult {
		return catalog.Found(catalog.Record{ID: id})
	}
}

func upTo(limit int, calls *[]int) proberFunc {
	return func(_ context.Context, id int) catalog.ProbeResult {
		if calls != nil {
			*calls = append(*calls, id)
		}
		if id <= limit {
			return catalog.Found(catalog.Record{ID: id})
		}
		return catalog.NotFound()
	}
}

func TestSampleIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, 11, 21, 25}, sampleIDs(1, 25, 10))
	assert.Equal(t, []int{1, 11, 21}, sampleIDs(1, 21, 10))
	assert.Equal(t, []int{5}, sampleIDs(5, 5, 10))
	assert.Equal(t, []int{3, 4, 5}, sampleIDs(3, 5, 1))
	assert.Nil(t, sampleIDs(6, 5, 10))
}

func TestEstimateEmptyCatalogReturnsFirstWindow(t *testing.T) {
	t.Parallel()

	e, err := NewEstimator(estimatorConfig(), 20000, upTo(0, nil), nil, zap.NewNop())
	require.NoError(t, err)

	bound, err := e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 201, bound)
}

func TestEstimateDoublesUntilWindowIsEmpty(t *testing.T) {
	t.Parallel()

	e, err := NewEstimator(estimatorConfig(), 20000, upTo(1000, nil), nil, zap.NewNop())
	require.NoError(t, err)

	// Windows end at 201, 601, 1401; the last holds nothing.
	bound, err := e.EstimateUpperBound(context.Background(), 1, catalog.NewTable())
	require.NoError(t, err)
	assert.Equal(t, 1401, bound)
}

func TestEstimateNeverExceedsHardCap(t *testing.T) {
	t.Parallel()

	e, err := NewEstimator(estimatorConfig(), 1000, everything(), nil, zap.NewNop())
	require.NoError(t, err)

	bound, err := e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, bound)

	bound, err = e.EstimateUpperBound(context.Background(), 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, bound)
}

func TestEstimateIsAtLeastStartID(t *testing.T) {
	t.Parallel()

	for _, start := range []int{1, 57, 4000, 19999} {
		e, err := NewEstimator(estimatorConfig(), 20000, upTo(0, nil), nil, zap.NewNop())
		require.NoError(t, err)

		bound, err := e.EstimateUpperBound(context.Background(), start, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, bound, start)
		assert.LessOrEqual(t, bound, 20000)
	}
}

func TestEstimateRoundsExhausted(t *testing.T) {
	t.Parallel()

	cfg := estimatorConfig()
	cfg.MaxRounds = 1
	e, err := NewEstimator(cfg, 20000, everything(), nil, zap.NewNop())
	require.NoError(t, err)

	bound, err := e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 401, bound)
}

func TestEstimateKnownIDsAreHitsWithoutProbing(t *testing.T) {
	t.Parallel()

	var calls []int
	e, err := NewEstimator(estimatorConfig(), 20000, upTo(0, &calls), nil, zap.NewNop())
	require.NoError(t, err)

	known := catalog.NewTable(catalog.Record{ID: 2}, catalog.Record{ID: 402})
	bound, err := e.EstimateUpperBound(context.Background(), 1, known)
	require.NoError(t, err)
	assert.Equal(t, 1401, bound)

	require.NotEmpty(t, calls)
	for _, id := range calls {
		assert.GreaterOrEqual(t, id, 1202, "windows satisfied by known ids must not be probed")
	}
}

func TestEstimateStrideOneIsExhaustive(t *testing.T) {
	t.Parallel()

	cfg := estimatorConfig()
	cfg.SampleStride = 1
	// Only id 150 exists; a stride of 10 starting at 2 would sample 142 and 152.
	prober := proberFunc(func(_ context.Context, id int) catalog.ProbeResult {
		if id == 150 {
			return catalog.Found(catalog.Record{ID: id})
		}
		return catalog.NotFound()
	})
	e, err := NewEstimator(cfg, 20000, prober, nil, zap.NewNop())
	require.NoError(t, err)

	bound, err := e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 601, bound)

	cfg.SampleStride = 10
	e, err = NewEstimator(cfg, 20000, prober, nil, zap.NewNop())
	require.NoError(t, err)
	bound, err = e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 201, bound)
}

func TestEstimateFetchErrorsAreNotHits(t *testing.T) {
	t.Parallel()

	prober := proberFunc(func(context.Context, int) catalog.ProbeResult {
		return catalog.FetchFailed(assert.AnError)
	})
	e, err := NewEstimator(estimatorConfig(), 20000, prober, nil, zap.NewNop())
	require.NoError(t, err)

	bound, err := e.EstimateUpperBound(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 210, bound)
}

func TestEstimateHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := NewEstimator(estimatorConfig(), 20000, everything(), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = e.EstimateUpperBound(ctx, 1, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEstimatorValidates(t *testing.T) {
	t.Parallel()

	cfg := estimatorConfig()
	cfg.SampleStride = 0
	_, err := NewEstimator(cfg, 100, everything(), nil, nil)
	require.Error(t, err)

	_, err = NewEstimator(estimatorConfig(), 0, everything(), nil, nil)
	require.Error(t, err)

	_, err = NewEstimator(estimatorConfig(), 100, nil, nil, nil)
	require.Error(t, err)
}

func TestEstimatePacesFromProbeCompletion(t *testing.T) {
	t.Parallel()

	var calls []int
	pacer := &recordingPacer{}
	e, err := NewEstimator(estimatorConfig(), 20000, upTo(0, &calls), pacer, zap.NewNop())
	require.NoError(t, err)

	_, err = e.EstimateUpperBound(context.Background(), 1, nil)
	require.NoError(t, err)

	require.NotEmpty(t, calls)
	events := pacer.Events()
	require.Len(t, events, 2*len(calls))
	for i := 0; i < len(events); i += 2 {
		assert.Equal(t, []string{"wait", "done"}, events[i:i+2])
	}
}
