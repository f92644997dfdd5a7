package classify

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticTrainer fits multinomial (softmax) logistic regression by batch
// gradient descent, grid-searching over L2 strengths and epoch counts.
type LogisticTrainer struct {
	// L2Strengths and Epochs span the hyperparameter grid; every pair is a
	// candidate.
	L2Strengths []float64
	Epochs      []int

	// LearnRate is the fixed gradient step size (0 = default 0.1).
	LearnRate float64

	// Folds and Seed drive cross-validation (see GridSearch).
	Folds int
	Seed  int64
}

func (t *LogisticTrainer) Name() string { return "logreg" }

// Train runs the L2 × epochs grid through k-fold cross-validation and refits
// the winning combination on all rows.
func (t *LogisticTrainer) Train(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, []GridPoint, error) {
	if len(t.L2Strengths) == 0 || len(t.Epochs) == 0 {
		return nil, nil, fmt.Errorf("logistic grid is empty")
	}

	lr := t.LearnRate
	if lr == 0 {
		lr = 0.1
	}

	var cands []candidate
	for _, l2 := range t.L2Strengths {
		for _, epochs := range t.Epochs {
			l2, epochs := l2, epochs
			cands = append(cands, candidate{
				params: map[string]float64{"l2": l2, "epochs": float64(epochs)},
				fit: func(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, error) {
					return fitLogistic(ctx, X, y, classes, lr, epochs, l2)
				},
			})
		}
	}

	return gridSearch(ctx, cands, X, y, classes, t.Folds, t.Seed)
}

// logisticModel is a fitted softmax regression: weights is (d+1)×classes with
// the bias in the last row.
type logisticModel struct {
	weights *mat.Dense
}

func (m *logisticModel) Name() string { return "logreg" }

func (m *logisticModel) Predict(X *mat.Dense) []int {
	n, d := X.Dims()
	_, classes := m.weights.Dims()

	out := make([]int, n)
	scores := make([]float64, classes)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for c := 0; c < classes; c++ {
			s := m.weights.At(d, c) // bias
			for j := 0; j < d; j++ {
				s += row[j] * m.weights.At(j, c)
			}
			scores[c] = s
		}
		out[i] = argmax(scores)
	}
	return out
}

// fitLogistic minimizes the softmax cross-entropy with L2 on the non-bias
// weights, starting from zero weights so the fit is deterministic.
func fitLogistic(ctx context.Context, X *mat.Dense, y []int, classes int, lr float64, epochs int, l2 float64) (*logisticModel, error) {
	n, d := X.Dims()
	if n == 0 {
		return nil, fmt.Errorf("cannot fit on zero rows")
	}
	if len(y) != n {
		return nil, fmt.Errorf("label count %d does not match %d rows", len(y), n)
	}

	W := mat.NewDense(d+1, classes, nil)
	grad := mat.NewDense(d+1, classes, nil)
	probs := make([]float64, classes)

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grad.Zero()
		for i := 0; i < n; i++ {
			row := X.RawRowView(i)
			softmaxScores(row, W, probs)

			// grad += xᵢ (p - onehot(yᵢ))
			probs[y[i]] -= 1
			for c, p := range probs {
				for j := 0; j < d; j++ {
					grad.Set(j, c, grad.At(j, c)+row[j]*p)
				}
				grad.Set(d, c, grad.At(d, c)+p)
			}
		}

		scale := lr / float64(n)
		for c := 0; c < classes; c++ {
			for j := 0; j < d; j++ {
				w := W.At(j, c)
				W.Set(j, c, w-scale*grad.At(j, c)-lr*l2*w)
			}
			W.Set(d, c, W.At(d, c)-scale*grad.At(d, c)) // bias is not regularized
		}
	}

	return &logisticModel{weights: W}, nil
}

// softmaxScores writes the class probabilities for one augmented row into
// probs, shifting by the max score for numeric stability.
func softmaxScores(row []float64, W *mat.Dense, probs []float64) {
	d := len(row)
	for c := range probs {
		s := W.At(d, c)
		for j, x := range row {
			s += x * W.At(j, c)
		}
		probs[c] = s
	}

	shift := floats.Max(probs)
	sum := 0.0
	for c, s := range probs {
		e := math.Exp(s - shift)
		probs[c] = e
		sum += e
	}
	floats.Scale(1/sum, probs)
}
