package classify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ForestTrainer fits random forests of CART trees, grid-searching over tree
// depths and forest sizes.
type ForestTrainer struct {
	// Depths and Trees span the hyperparameter grid; every pair is a
	// candidate.
	Depths []int
	Trees  []int

	// Folds and Seed drive cross-validation; the same seed also drives the
	// bootstrap and feature sampling so two runs agree exactly.
	Folds int
	Seed  int64
}

func (t *ForestTrainer) Name() string { return "forest" }

// Train runs the depth × trees grid through k-fold cross-validation and
// refits the winning combination on all rows.
func (t *ForestTrainer) Train(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, []GridPoint, error) {
	if len(t.Depths) == 0 || len(t.Trees) == 0 {
		return nil, nil, fmt.Errorf("forest grid is empty")
	}

	var cands []candidate
	for _, depth := range t.Depths {
		for _, trees := range t.Trees {
			depth, trees := depth, trees
			cands = append(cands, candidate{
				params: map[string]float64{"maxDepth": float64(depth), "trees": float64(trees)},
				fit: func(ctx context.Context, X *mat.Dense, y []int, classes int) (Classifier, error) {
					return fitForest(ctx, X, y, classes, trees, depth, t.Seed)
				},
			})
		}
	}

	return gridSearch(ctx, cands, X, y, classes, t.Folds, t.Seed)
}

type forestModel struct {
	trees   []*treeNode
	classes int
}

func (m *forestModel) Name() string { return "forest" }

func (m *forestModel) Predict(X *mat.Dense) []int {
	n, _ := X.Dims()
	out := make([]int, n)
	votes := make([]float64, m.classes)

	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for c := range votes {
			votes[c] = 0
		}
		for _, tree := range m.trees {
			votes[tree.classify(row)]++
		}
		out[i] = argmax(votes)
	}
	return out
}

// treeNode is either an internal split (left/right non-nil) or a leaf
// carrying the majority class of its training rows.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	class     int
}

func (n *treeNode) classify(row []float64) int {
	for n.left != nil {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

// fitForest grows the requested number of trees, each on a bootstrap sample
// with sqrt(d) features considered per split. Every tree gets its own
// generator derived from the base seed, so the forest is reproducible
// regardless of growth order.
func fitForest(ctx context.Context, X *mat.Dense, y []int, classes, trees, maxDepth int, seed int64) (*forestModel, error) {
	n, d := X.Dims()
	if n == 0 {
		return nil, fmt.Errorf("cannot fit on zero rows")
	}
	if len(y) != n {
		return nil, fmt.Errorf("label count %d does not match %d rows", len(y), n)
	}

	mtry := int(math.Sqrt(float64(d)))
	if mtry < 1 {
		mtry = 1
	}

	m := &forestModel{classes: classes}
	for t := 0; t < trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rng := rand.New(rand.NewSource(seed + int64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		m.trees = append(m.trees, growTree(X, y, sample, classes, mtry, maxDepth, rng))
	}

	return m, nil
}

func growTree(X *mat.Dense, y []int, rows []int, classes, mtry, depth int, rng *rand.Rand) *treeNode {
	counts := make([]float64, classes)
	for _, i := range rows {
		counts[y[i]]++
	}
	leaf := &treeNode{class: argmax(counts)}

	if depth <= 0 || len(rows) < 2 || isPure(counts) {
		return leaf
	}

	feature, threshold, ok := bestSplit(X, y, rows, counts, classes, mtry, rng)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range rows {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		class:     leaf.class,
		left:      growTree(X, y, left, classes, mtry, depth-1, rng),
		right:     growTree(X, y, right, classes, mtry, depth-1, rng),
	}
}

func isPure(counts []float64) bool {
	seen := false
	for _, c := range counts {
		if c > 0 {
			if seen {
				return false
			}
			seen = true
		}
	}
	return true
}

// bestSplit scans mtry randomly chosen features for the threshold with the
// lowest weighted gini impurity. Thresholds are midpoints between distinct
// consecutive sorted values.
func bestSplit(X *mat.Dense, y []int, rows []int, total []float64, classes, mtry int, rng *rand.Rand) (int, float64, bool) {
	_, d := X.Dims()
	features := rng.Perm(d)[:mtry]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(rows))
	leftCounts := make([]float64, classes)

	for _, f := range features {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], f) < X.At(order[b], f) })

		for c := range leftCounts {
			leftCounts[c] = 0
		}

		for i := 0; i < len(order)-1; i++ {
			leftCounts[y[order[i]]]++
			v, next := X.At(order[i], f), X.At(order[i+1], f)
			if v == next {
				continue
			}

			g := splitGini(leftCounts, total, float64(i+1), float64(len(order)-i-1))
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// splitGini is the size-weighted gini impurity of the two sides of a split.
func splitGini(left, total []float64, nLeft, nRight float64) float64 {
	gl, gr := 1.0, 1.0
	for c := range left {
		pl := left[c] / nLeft
		pr := (total[c] - left[c]) / nRight
		gl -= pl * pl
		gr -= pr * pr
	}
	n := nLeft + nRight
	return (nLeft/n)*gl + (nRight/n)*gr
}
