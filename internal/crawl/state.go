package crawl

import (
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Phase is the coarse lifecycle position of a run.
type Phase string

const (
	// PhaseIdle means Run has not been called.
	PhaseIdle Phase = "idle"
	// PhaseEstimating means the upper bound search is in progress.
	PhaseEstimating Phase = "estimating"
	// PhaseScanning means the sequential scan is in progress.
	PhaseScanning Phase = "scanning"
	// PhaseStopped means the run has ended and the final checkpoint ran.
	PhaseStopped Phase = "stopped"
)

// StopReason records why the scan ended.
type StopReason string

const (
	// StopGap means GapLimit ids past the last success yielded nothing.
	StopGap StopReason = "gap"
	// StopHardCap means the scan reached the configured maximum id.
	StopHardCap StopReason = "hard_cap"
	// StopCanceled means the context was canceled.
	StopCanceled StopReason = "canceled"
)

// State is the mutable crawl state. The driver owns it; readers get copies.
type State struct {
	Phase                Phase      `json:"phase"`
	Template             string     `json:"template"`
	StartID              int        `json:"start_id"`
	UpperBound           int        `json:"upper_bound"`
	CurrentID            int        `json:"current_id"`
	LastSuccessID        int        `json:"last_success_id"`
	MissStreak           int        `json:"miss_streak"`
	AddedSinceCheckpoint int        `json:"added_since_checkpoint"`
	Checked              int        `json:"checked"`
	Fetched              int        `json:"fetched"`
	Found                int        `json:"found"`
	Records              int        `json:"records"`
	StopReason           StopReason `json:"stop_reason,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
}

// RequestRate is the number of network probes per second since the run
// started.
func (s State) RequestRate(now time.Time) float64 {
	elapsed := now.Sub(s.StartedAt).Seconds()
	if s.Fetched == 0 || elapsed <= 0 {
		return 0
	}
	return float64(s.Fetched) / elapsed
}

// Summary describes a finished run.
type Summary struct {
	RunID         string     `json:"run_id,omitempty"`
	Template      string     `json:"template"`
	StartID       int        `json:"start_id"`
	UpperBound    int        `json:"upper_bound"`
	LastSuccessID int        `json:"last_success_id"`
	LastID        int        `json:"last_id"`
	Checked       int        `json:"checked"`
	Fetched       int        `json:"fetched"`
	Found         int        `json:"found"`
	Records       int        `json:"records"`
	StopReason    StopReason `json:"stop_reason"`
	Location      string     `json:"location,omitempty"`
	Locked        bool       `json:"locked"`
	SaveError     string     `json:"save_error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
}

func newSummary(st State, final catalog.PersistResult, finishedAt time.Time) Summary {
	s := Summary{
		Template:      st.Template,
		StartID:       st.StartID,
		UpperBound:    st.UpperBound,
		LastSuccessID: st.LastSuccessID,
		LastID:        st.CurrentID,
		Checked:       st.Checked,
		Fetched:       st.Fetched,
		Found:         st.Found,
		Records:       st.Records,
		StopReason:    st.StopReason,
		Location:      final.Location,
		Locked:        final.Locked,
		StartedAt:     st.StartedAt,
		FinishedAt:    finishedAt,
	}
	if final.Err != nil {
		s.SaveError = final.Err.Error()
	}
	return s
}
