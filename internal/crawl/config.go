package crawl

import (
	"fmt"
	"time"
)

// FetchErrorPolicy selects how the driver treats a probe that failed for a
// reason other than the item being absent.
type FetchErrorPolicy string

const (
	// FetchErrorMiss counts a failed fetch as a miss.
	FetchErrorMiss FetchErrorPolicy = "miss"
	// FetchErrorRetry retries a failed fetch before counting it as a miss.
	FetchErrorRetry FetchErrorPolicy = "retry"
)

// EstimatorConfig tunes the upper bound search.
type EstimatorConfig struct {
	BlockSize    int
	InitialStep  int
	MaxRounds    int
	SampleStride int
}

// Config holds the settings for a crawl run. It is built once by the caller
// and never mutated by the driver.
type Config struct {
	HardCap           int
	GapLimit          int
	CheckpointBatch   int
	HeartbeatInterval time.Duration
	MissLogEvery      int
	FetchErrorPolicy  FetchErrorPolicy
	MaxRetries        int
	Estimator         EstimatorConfig
}

// DefaultConfig returns the values the crawler ships with.
func DefaultConfig() Config {
	return Config{
		HardCap:           20000,
		GapLimit:          2000,
		CheckpointBatch:   10,
		HeartbeatInterval: 10 * time.Second,
		MissLogEvery:      100,
		FetchErrorPolicy:  FetchErrorMiss,
		MaxRetries:        2,
		Estimator: EstimatorConfig{
			BlockSize:    200,
			InitialStep:  200,
			MaxRounds:    20,
			SampleStride: 10,
		},
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.HardCap < 1 {
		return fmt.Errorf("crawl hard cap must be >= 1")
	}
	if c.GapLimit < 1 {
		return fmt.Errorf("crawl gap limit must be >= 1")
	}
	if c.CheckpointBatch < 1 {
		return fmt.Errorf("crawl checkpoint batch must be >= 1")
	}
	if c.MissLogEvery < 0 {
		return fmt.Errorf("crawl miss log interval must be >= 0")
	}
	switch c.FetchErrorPolicy {
	case FetchErrorMiss:
	case FetchErrorRetry:
		if c.MaxRetries < 1 {
			return fmt.Errorf("crawl max retries must be >= 1 when fetch error policy is %q", FetchErrorRetry)
		}
	default:
		return fmt.Errorf("unknown fetch error policy %q", c.FetchErrorPolicy)
	}
	return c.Estimator.Validate()
}

// Validate checks the estimator knobs.
func (c EstimatorConfig) Validate() error {
	if c.BlockSize < 1 {
		return fmt.Errorf("probe block size must be >= 1")
	}
	if c.InitialStep < 1 {
		return fmt.Errorf("probe initial step must be >= 1")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("probe max rounds must be >= 0")
	}
	if c.SampleStride < 1 {
		return fmt.Errorf("probe sample stride must be >= 1")
	}
	return nil
}
