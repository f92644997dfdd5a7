package pipeline

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// fitKMeans runs seeded k-means++ initialization followed by Lloyd
// iterations and returns the final centroids.
//
// The same data, k and seed always produce the same centroids: the only
// randomness flows through the seeded generator, and ties in the nearest
// centroid search resolve to the lowest index.
func fitKMeans(data [][]float64, k int, seed int64, maxIter int) ([][]float64, error) {
	if k <= 0 {
		return nil, fmt.Errorf("cluster count must be > 0, got %d", k)
	}
	if len(data) < k {
		return nil, fmt.Errorf("need at least %d points for %d clusters, got %d", k, k, len(data))
	}
	if maxIter <= 0 {
		maxIter = 25
	}

	rng := rand.New(rand.NewSource(seed))
	dim := len(data[0])

	centroids := initPlusPlus(data, k, rng)

	assign := make([]int, len(data))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, point := range data {
			c, _ := nearestCentroid(point, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, point := range data {
			c := assign[i]
			floats.Add(sums[c], point)
			counts[c]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	return centroids, nil
}

// initPlusPlus picks the k initial centroids with the k-means++ weighting:
// each new centroid is drawn with probability proportional to the squared
// distance from the nearest already-chosen centroid.
func initPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)

	first := make([]float64, len(data[0]))
	copy(first, data[rng.Intn(len(data))])
	centroids = append(centroids, first)

	d2 := make([]float64, len(data))
	for len(centroids) < k {
		total := 0.0
		for i, point := range data {
			_, dist := nearestCentroid(point, centroids)
			d2[i] = dist
			total += dist
		}

		var idx int
		if total == 0 {
			// All points coincide with a centroid; any choice is equivalent.
			idx = rng.Intn(len(data))
		} else {
			target := rng.Float64() * total
			acc := 0.0
			idx = len(data) - 1
			for i, w := range d2 {
				acc += w
				if acc >= target {
					idx = i
					break
				}
			}
		}

		next := make([]float64, len(data[idx]))
		copy(next, data[idx])
		centroids = append(centroids, next)
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid and the squared
// distance to it. Ties resolve to the lowest index.
func nearestCentroid(point []float64, centroids [][]float64) (int, float64) {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(point, centroid, 2)
		d2 := d * d
		if d2 < bestDist {
			best = c
			bestDist = d2
		}
	}
	return best, bestDist
}
