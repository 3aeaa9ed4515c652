package indexer

import (
	"fmt"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
)

// State is a step of the linear pipeline state machine.
type State string

const (
	StateInit             State = "INIT"
	StateTableEnsured     State = "TABLE_ENSURED"
	StateShardsResolved   State = "SHARDS_RESOLVED"
	StateViewsIndexed     State = "VIEWS_INDEXED"
	StateDownloadsIndexed State = "DOWNLOADS_INDEXED"
	StateDone             State = "DONE"
)

// stateAfter maps a finished dimension to the state it moves the run into.
// Only the two counter columns have a state; anything else is an error.
func stateAfter(dim stats.Dimension) (State, error) {
	switch dim.Column {
	case stats.Views.Column:
		return StateViewsIndexed, nil
	case stats.Downloads.Column:
		return StateDownloadsIndexed, nil
	default:
		return "", fmt.Errorf("dimension %q: no pipeline state for column %q", dim.Name, dim.Column)
	}
}

// DimensionReport summarizes one dimension of a run.
type DimensionReport struct {
	Dimension     string `json:"dimension"`
	TotalDistinct int64  `json:"total_distinct"`
	TotalPages    int64  `json:"total_pages"`
	Pages         int64  `json:"pages"`
	Rows          int64  `json:"rows"`
	SkippedIDs    int64  `json:"skipped_ids"`
	// Empty is set when the search cluster had nothing to index for the dimension.
	Empty bool `json:"empty"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	State      State             `json:"state"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Shards     []string          `json:"shards"`
	Dimensions []DimensionReport `json:"dimensions"`
	Error      string            `json:"error,omitempty"`
}

// Succeeded reports whether the run reached DONE.
func (r *Report) Succeeded() bool {
	return r != nil && r.State == StateDone
}

// Duration is the wall time of the run, or zero if it has not finished.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
