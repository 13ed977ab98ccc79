package classifier

import (
	"math"
	"math/rand"
)

// thresholdsPerFeature is how many random cut points are tried per candidate feature
const thresholdsPerFeature = 10

type treeConfig struct {
	maxDepth        int
	maxFeatures     int
	minSamplesSplit int
	minSamplesLeaf  int
}

// node is a leaf when left is nil
type node struct {
	feature   int
	threshold float64
	class     int
	left      *node
	right     *node
}

type tree struct {
	root *node
}

type split struct {
	feature   int
	threshold float64
}

func trainTree(x [][]float64, y []int, rows []int, cfg treeConfig, rng *rand.Rand) *tree {
	b := &treeBuilder{x: x, y: y, cfg: cfg, rng: rng}
	return &tree{root: b.build(rows, 0)}
}

func (t *tree) predict(features []float64) int {
	n := t.root
	for n.left != nil {
		if features[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

type treeBuilder struct {
	x   [][]float64
	y   []int
	cfg treeConfig
	rng *rand.Rand
}

func (b *treeBuilder) build(rows []int, depth int) *node {
	if len(rows) < b.cfg.minSamplesSplit || depth >= b.cfg.maxDepth {
		return b.leaf(rows)
	}
	s, ok := b.bestSplit(rows)
	if !ok {
		return b.leaf(rows)
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][s.feature] <= s.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < b.cfg.minSamplesLeaf || len(right) < b.cfg.minSamplesLeaf {
		return b.leaf(rows)
	}
	return &node{
		feature:   s.feature,
		threshold: s.threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// leaf predicts the majority class; ties go to 1.
func (b *treeBuilder) leaf(rows []int) *node {
	positive := 0
	for _, r := range rows {
		positive += b.y[r]
	}
	class := 0
	if 2*positive >= len(rows) {
		class = 1
	}
	return &node{class: class}
}

// bestSplit draws maxFeatures distinct features and a handful of uniform
// thresholds within each feature's range, keeping the lowest weighted Gini.
func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	if len(rows) == 0 || len(b.x[rows[0]]) == 0 {
		return split{}, false
	}
	width := len(b.x[rows[0]])
	k := b.cfg.maxFeatures
	if k <= 0 || k > width {
		k = width
	}

	best, bestGini := split{}, math.Inf(1)
	for _, f := range b.rng.Perm(width)[:k] {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range rows {
			lo = math.Min(lo, b.x[r][f])
			hi = math.Max(hi, b.x[r][f])
		}
		for j := 0; j < thresholdsPerFeature; j++ {
			threshold := lo + (hi-lo)*b.rng.Float64()
			if g := b.gini(rows, f, threshold); g < bestGini {
				best, bestGini = split{feature: f, threshold: threshold}, g
			}
		}
	}
	return best, !math.IsInf(bestGini, 1)
}

// gini is the size-weighted impurity of the two sides, +Inf when either side
// would fall below the leaf minimum.
func (b *treeBuilder) gini(rows []int, feature int, threshold float64) float64 {
	var leftN, leftPos, rightN, rightPos int
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			leftN++
			leftPos += b.y[r]
		} else {
			rightN++
			rightPos += b.y[r]
		}
	}
	if leftN < b.cfg.minSamplesLeaf || rightN < b.cfg.minSamplesLeaf || leftN == 0 || rightN == 0 {
		return math.Inf(1)
	}
	impurity := func(pos, n int) float64 {
		p := float64(pos) / float64(n)
		return 2 * p * (1 - p)
	}
	return (float64(leftN)*impurity(leftPos, leftN) + float64(rightN)*impurity(rightPos, rightN)) / float64(len(rows))
}
