// Package classify trains and applies multiclass classifiers over feature
// matrices. Two families are provided, multinomial logistic regression and
// random forest, each trained through a small hyperparameter grid with
// k-fold cross-validation.
package classify

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Classifier predicts one class label per feature row.
type Classifier interface {
	// Predict returns a label in [0, classes) per row of X.
	Predict(X *mat.Dense) []int

	// Name identifies the classifier family (e.g. "logreg", "forest").
	Name() string
}

// Trainer fits a classifier on labeled rows. Implementations run their
// hyperparameter grid internally and return the refit best model together
// with the per-combination cross-validation scores.
type Trainer interface {
	Train(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, []GridPoint, error)
	Name() string
}

// GridPoint records one hyperparameter combination and its mean
// cross-validation score.
type GridPoint struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
}

// argmax returns the index of the largest value, ties to the lowest index.
func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
