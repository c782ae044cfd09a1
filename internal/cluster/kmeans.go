package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrDegenerate is returned when the points cannot support k clusters.
var ErrDegenerate = errors.New("degenerate input for clustering")

// DefaultMaxIterations bounds Lloyd iterations.
const DefaultMaxIterations = 300

// KMeansResult is a fitted partition.
type KMeansResult struct {
	Labels     []int
	Centroids  [][]float64
	Iterations int
}

// Members returns the point indices assigned to cluster c, ascending.
func (r *KMeansResult) Members(c int) []int {
	var out []int
	for i, l := range r.Labels {
		if l == c {
			out = append(out, i)
		}
	}
	return out
}

// KMeans partitions points into k clusters with k-means++ seeding drawn from
// rng, then Lloyd iterations until assignments stop changing or maxIter is
// reached. Duplicate points are allowed; with fewer than k distinct points
// some clusters end up empty.
func KMeans(points [][]float64, k int, rng *rand.Rand, maxIter int) (*KMeansResult, error) {
	if k <= 0 || len(points) < k {
		return nil, fmt.Errorf("%w: %d points for %d clusters", ErrDegenerate, len(points), k)
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, labels, centroids)
	}

	for _, c := range centroids {
		for _, x := range c {
			if math.IsNaN(x) {
				return nil, fmt.Errorf("%w: NaN centroid", ErrDegenerate)
			}
		}
	}
	return &KMeansResult{Labels: labels, Centroids: centroids, Iterations: iter}, nil
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))
	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = squaredDistance(p, centroids[nearest(p, centroids)])
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		pick := -1
		for i, d := range dist {
			if d == 0 {
				continue
			}
			pick = i
			target -= d
			if target <= 0 {
				break
			}
		}
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recompute returns the mean of each cluster's members. A cluster left
// empty keeps its previous centroid.
func recompute(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, x := range p {
			sums[c][j] += x
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			sums[c] = prev[c]
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
