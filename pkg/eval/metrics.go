// Package eval computes multiclass evaluation metrics for trained
// classifiers. Precision and recall are support-weighted averages of the
// per-class values, so the two are genuinely distinct quantities and must
// never be conflated.
package eval

import "fmt"

// Summary holds the evaluation of predictions against true labels.
type Summary struct {
	WeightedPrecision float64 `json:"weightedPrecision"`
	WeightedRecall    float64 `json:"weightedRecall"`
	Accuracy          float64 `json:"accuracy"`
	Support           int     `json:"support"`
}

// Evaluate compares predictions against true labels over classes 0..classes-1.
//
// Weighted precision averages per-class precision weighted by each class's
// true-label count; weighted recall does the same with per-class recall. A
// class that is never predicted contributes precision 0, and a class with no
// true rows contributes nothing to either average.
func Evaluate(truth, predicted []int, classes int) (Summary, error) {
	if len(truth) != len(predicted) {
		return Summary{}, fmt.Errorf("label count mismatch: %d true vs %d predicted", len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return Summary{}, fmt.Errorf("cannot evaluate zero rows")
	}
	if classes <= 0 {
		return Summary{}, fmt.Errorf("class count must be > 0, got %d", classes)
	}

	truePos := make([]float64, classes)
	predCount := make([]float64, classes)
	trueCount := make([]float64, classes)
	correct := 0

	for i := range truth {
		y, p := truth[i], predicted[i]
		if y < 0 || y >= classes {
			return Summary{}, fmt.Errorf("true label %d outside [0, %d)", y, classes)
		}
		if p < 0 || p >= classes {
			return Summary{}, fmt.Errorf("predicted label %d outside [0, %d)", p, classes)
		}
		trueCount[y]++
		predCount[p]++
		if y == p {
			truePos[y]++
			correct++
		}
	}

	n := float64(len(truth))
	s := Summary{
		Accuracy: float64(correct) / n,
		Support:  len(truth),
	}

	for c := 0; c < classes; c++ {
		if trueCount[c] == 0 {
			continue
		}
		w := trueCount[c] / n
		if predCount[c] > 0 {
			s.WeightedPrecision += w * (truePos[c] / predCount[c])
		}
		s.WeightedRecall += w * (truePos[c] / trueCount[c])
	}

	return s, nil
}

// WeightedRecall is a convenience wrapper used as the cross-validation
// selection metric.
func WeightedRecall(truth, predicted []int, classes int) (float64, error) {
	s, err := Evaluate(truth, predicted, classes)
	if err != nil {
		return 0, err
	}
	return s.WeightedRecall, nil
}
