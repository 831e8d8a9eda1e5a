package detectors

import (
	"math"
	"sort"
)

// LOF flags the trailing point when its local density, relative to its K
// nearest temporal neighbors within the window, falls below theirs by
// more than Threshold (the classic local outlier factor).
type LOF struct {
	K         int
	Threshold float64
}

func (d *LOF) Name() string { return "lof" }

// MinPoints requires at least K neighbors besides the current point.
func (d *LOF) MinPoints() int { return d.K + 1 }

func (d *LOF) Evaluate(values []float64) (Verdict, error) {
	n := len(values)
	if n < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), n)
	}

	// kDist[i] is the distance to i's k-th nearest neighbor; neigh[i]
	// holds the indices of the k nearest neighbors.
	kDist := make([]float64, n)
	neigh := make([][]int, n)
	for i := 0; i < n; i++ {
		kDist[i], neigh[i] = kNearest(values, i, d.K)
	}

	// Local reachability density for every point.
	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		var reachSum float64
		for _, j := range neigh[i] {
			reach := math.Abs(values[i] - values[j])
			if kDist[j] > reach {
				reach = kDist[j]
			}
			reachSum += reach
		}
		if reachSum < nearZero {
			lrd[i] = math.Inf(1)
		} else {
			lrd[i] = float64(len(neigh[i])) / reachSum
		}
	}

	current := n - 1
	var ratioSum float64
	for _, j := range neigh[current] {
		if math.IsInf(lrd[current], 1) {
			ratioSum++ // identical-density cluster
		} else if math.IsInf(lrd[j], 1) {
			ratioSum += 2 * d.Threshold // dense neighbor, sparse point
		} else {
			ratioSum += lrd[j] / lrd[current]
		}
	}
	lof := ratioSum / float64(len(neigh[current]))

	// Baseline is the mean of the k nearest neighbor values.
	var nnSum float64
	for _, j := range neigh[current] {
		nnSum += values[j]
	}
	expected := nnSum / float64(len(neigh[current]))

	return Verdict{
		Anomalous: lof > d.Threshold,
		Expected:  expected,
		Deviation: math.Abs(values[current] - expected),
	}, nil
}

// kNearest returns the k-distance of point i and the indices of its k
// nearest neighbors (by value distance, excluding i itself).
func kNearest(values []float64, i, k int) (float64, []int) {
	type distIdx struct {
		dist float64
		idx  int
	}

	dists := make([]distIdx, 0, len(values)-1)
	for j := range values {
		if j == i {
			continue
		}
		dists = append(dists, distIdx{math.Abs(values[i] - values[j]), j})
	}
	sort.Slice(dists, func(a, b int) bool {
		if dists[a].dist != dists[b].dist {
			return dists[a].dist < dists[b].dist
		}
		return dists[a].idx < dists[b].idx
	})

	if k > len(dists) {
		k = len(dists)
	}
	idx := make([]int, k)
	for j := 0; j < k; j++ {
		idx[j] = dists[j].idx
	}
	return dists[k-1].dist, idx
}
