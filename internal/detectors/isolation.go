package detectors

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IsolationForest flags the trailing point when its isolation score under
// random partitioning exceeds the contamination quantile of the window's
// scores. Points that isolate in few random splits sit far from the bulk
// of the distribution.
//
// The forest is rebuilt from a fixed seed on every call so that repeated
// runs over identical input classify identically.
type IsolationForest struct {
	Contamination float64

	trees      int
	sampleSize int
	seed       int64
}

// NewIsolationForest creates an isolation-based detector with the given
// contamination fraction.
func NewIsolationForest(contamination float64) *IsolationForest {
	return &IsolationForest{
		Contamination: contamination,
		trees:         100,
		sampleSize:    64,
		seed:          42,
	}
}

func (d *IsolationForest) Name() string { return "isolation_forest" }

// MinPoints reflects the method's recommended minimum; isolation scores
// over tiny windows are noise.
func (d *IsolationForest) MinPoints() int { return 20 }

func (d *IsolationForest) Evaluate(values []float64) (Verdict, error) {
	n := len(values)
	if n < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), n)
	}

	rng := rand.New(rand.NewSource(d.seed))

	sample := d.sampleSize
	if sample > n {
		sample = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))

	forest := make([]*isoNode, d.trees)
	for i := range forest {
		forest[i] = buildIsoTree(subsample(values, sample, rng), 0, maxDepth, rng)
	}

	scores := make([]float64, n)
	norm := avgPathLength(sample)
	for i, v := range values {
		var pathSum float64
		for _, tree := range forest {
			pathSum += tree.path(v, 0)
		}
		scores[i] = math.Pow(2, -(pathSum/float64(d.trees))/norm)
	}

	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)
	cutoff := stat.Quantile(1-d.Contamination, stat.Empirical, sorted, nil)

	current := values[n-1]
	med := median(values[:n-1])

	return Verdict{
		Anomalous: scores[n-1] > cutoff,
		Expected:  med,
		Deviation: math.Abs(current - med),
	}, nil
}

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int
}

func buildIsoTree(values []float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	lo, hi := minMax(values)
	if depth >= maxDepth || len(values) <= 1 || hi-lo < nearZero {
		return &isoNode{size: len(values)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isoNode{
		split: split,
		left:  buildIsoTree(left, depth+1, maxDepth, rng),
		right: buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

func (n *isoNode) path(v float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if v < n.split {
		return n.left.path(v, depth+1)
	}
	return n.right.path(v, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search
// over n points, the standard isolation forest normalization term.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

func subsample(values []float64, size int, rng *rand.Rand) []float64 {
	if size >= len(values) {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	idx := rng.Perm(len(values))[:size]
	out := make([]float64, size)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
