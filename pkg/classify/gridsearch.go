package classify

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/millwright/pkg/eval"
)

// candidate is one hyperparameter combination: the params that describe it
// for the report, and a fit closure that trains with them.
type candidate struct {
	params map[string]float64
	fit    func(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, error)
}

// gridSearch scores every candidate by mean weighted recall over k
// shuffled folds, then refits the best one on all rows. The shuffle is
// seeded, so fold membership is identical across runs. Ties keep the
// earlier candidate.
func gridSearch(ctx context.Context, cands []candidate, X *mat.Dense, y []int, classes, folds int, seed int64) (Classifier, []GridPoint, error) {
	n, _ := X.Dims()
	if folds < 2 {
		return nil, nil, fmt.Errorf("need at least 2 folds, got %d", folds)
	}
	if n < folds {
		return nil, nil, fmt.Errorf("need at least %d rows for %d folds, got %d", folds, folds, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	points := make([]GridPoint, len(cands))
	best := -1

	for ci, cand := range cands {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		total := 0.0
		for f := 0; f < folds; f++ {
			trainX, trainY, testX, testY := foldSplit(X, y, perm, f, folds)

			model, err := cand.fit(ctx, trainX, trainY, classes)
			if err != nil {
				return nil, nil, fmt.Errorf("fit candidate %v fold %d: %w", cand.params, f, err)
			}

			score, err := eval.WeightedRecall(testY, model.Predict(testX), classes)
			if err != nil {
				return nil, nil, fmt.Errorf("score candidate %v fold %d: %w", cand.params, f, err)
			}
			total += score
		}

		points[ci] = GridPoint{Params: cand.params, Score: total / float64(folds)}
		if best < 0 || points[ci].Score > points[best].Score {
			best = ci
		}
	}

	model, err := cands[best].fit(ctx, X, y, classes)
	if err != nil {
		return nil, nil, fmt.Errorf("refit best candidate %v: %w", cands[best].params, err)
	}

	return model, points, nil
}

// foldSplit carves fold f out of the permuted rows as the validation set and
// returns the remaining rows as the training set.
func foldSplit(X *mat.Dense, y []int, perm []int, fold, folds int) (*mat.Dense, []int, *mat.Dense, []int) {
	n := len(perm)
	lo := fold * n / folds
	hi := (fold + 1) * n / folds

	trainIdx := make([]int, 0, n-(hi-lo))
	trainIdx = append(trainIdx, perm[:lo]...)
	trainIdx = append(trainIdx, perm[hi:]...)
	testIdx := perm[lo:hi]

	return subMatrix(X, trainIdx), subLabels(y, trainIdx), subMatrix(X, testIdx), subLabels(y, testIdx)
}

func subMatrix(X *mat.Dense, rows []int) *mat.Dense {
	_, d := X.Dims()
	out := mat.NewDense(len(rows), d, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

func subLabels(y []int, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}
