package recorder

import (
	"errors"
	"time"

	"MediaSentiment/internal/model"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// RunRecord holds everything worth keeping about one pipeline run.
// Model and Scored are nil for a failed run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	Endog      string
	Exog       []string
	Order      model.Order
	TrainFrom  int
	TrainTo    int
	TrainRows  int
	TestRows   int
	TrainRMSE  float64
	TestRMSE   float64
	OutputPath string
	Model      *model.FittedModel
	Scored     []model.ScoredRow
}

// Duration is the wall time of the run.
func (r *RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Recorder persists run history for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	LastRun() (*RunRecord, error)
	Close() error
}
