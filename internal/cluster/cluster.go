// Package cluster reduces a ranked keyword list to a few representatives by
// clustering TF-IDF vectors of the keyword strings with seeded k-means and
// picking the members closest to each centroid.
package cluster

import (
	"log/slog"
	"math/rand"
)

// DefaultSeed makes clustering reproducible across runs.
const DefaultSeed int64 = 42

// SecondPickMinMembers is the cluster size from which a second
// representative may be taken.
const SecondPickMinMembers = 5

// Options controls representative selection.
type Options struct {
	Clusters     int
	MaxQuestions int
	Seed         int64
}

// Representatives picks keywords standing for clusters of texts. texts must
// be ordered by score, highest first. When there are fewer texts than
// clusters every text is returned. If clustering fails the top Clusters
// texts are returned and fallback is true. The result never exceeds
// MaxQuestions when that is positive.
func Representatives(texts []string, opts Options) (reps []string, fallback bool) {
	logger := slog.Default().With("component", "clusterer")
	if len(texts) < opts.Clusters {
		return clamp(append([]string(nil), texts...), opts.MaxQuestions), false
	}

	reps, err := pick(texts, opts)
	if err != nil {
		logger.Warn("clustering failed, using top keywords", "keywords", len(texts), "clusters", opts.Clusters, "error", err)
		n := opts.Clusters
		if n > len(texts) {
			n = len(texts)
		}
		return clamp(append([]string(nil), texts[:n]...), opts.MaxQuestions), true
	}
	logger.Debug("clustered keywords", "keywords", len(texts), "representatives", len(reps))
	return clamp(reps, opts.MaxQuestions), false
}

func pick(texts []string, opts Options) ([]string, error) {
	_, rows, err := FitTransform(texts)
	if err != nil {
		return nil, err
	}
	k := opts.Clusters
	if k > len(texts) {
		k = len(texts)
	}
	res, err := KMeans(rows, k, rand.New(rand.NewSource(opts.Seed)), DefaultMaxIterations)
	if err != nil {
		return nil, err
	}

	var reps []string
	for c := 0; c < k; c++ {
		members := res.Members(c)
		if len(members) == 0 {
			continue
		}
		best := mostSimilar(rows, members, res.Centroids[c], -1)
		reps = append(reps, texts[best])
		if len(members) >= SecondPickMinMembers && (opts.MaxQuestions <= 0 || len(reps) < opts.MaxQuestions) {
			second := mostSimilar(rows, members, res.Centroids[c], best)
			reps = append(reps, texts[second])
		}
	}
	return reps, nil
}

// mostSimilar returns the member with the highest cosine similarity to
// centroid, skipping exclude. The earliest member wins ties.
func mostSimilar(rows [][]float64, members []int, centroid []float64, exclude int) int {
	best, bestSim := -1, 0.0
	for _, m := range members {
		if m == exclude {
			continue
		}
		sim := Cosine(rows[m], centroid)
		if best == -1 || sim > bestSim {
			best, bestSim = m, sim
		}
	}
	return best
}

func clamp(reps []string, max int) []string {
	if max > 0 && len(reps) > max {
		return reps[:max]
	}
	return reps
}
