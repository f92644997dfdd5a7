package storage

import (
	"context"
	"time"

	"github.com/HatiCode/millwright/pkg/classify"
	"github.com/HatiCode/millwright/pkg/eval"
)

// Report is the outcome of one training run: dataset bookkeeping, the
// cross-validation grid, and the held-out evaluation of the refit model.
type Report struct {
	Dataset     string    `json:"dataset"`
	GeneratedAt time.Time `json:"generatedAt"`
	Model       string    `json:"model"`

	JoinedRows         int            `json:"joinedRows"`
	TrainRows          int            `json:"trainRows"`
	TestRows           int            `json:"testRows"`
	NullCounts         map[string]int `json:"nullCounts,omitempty"`
	MultiIndicatorRows int            `json:"multiIndicatorRows"`

	// LabelCounts maps each failure label to its row count over the joined
	// table, keyed by the label's decimal string so the map survives JSON.
	LabelCounts map[string]int `json:"labelCounts"`

	GridResults []classify.GridPoint `json:"gridResults"`
	Evaluation  eval.Summary         `json:"evaluation"`

	DurationMillis int64 `json:"durationMillis"`
}

// Store persists the latest training report per dataset.
type Store interface {
	Put(ctx context.Context, report Report) error
	GetLatest(ctx context.Context, dataset string) (Report, bool, error)
}
