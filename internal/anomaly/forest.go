package anomaly

import (
	"math"
	"math/rand"
)

// forestNode is one node of an isolation tree. Leaves record the sample
// count that reached them.
type forestNode struct {
	splitDim   int
	splitValue float64
	left       *forestNode
	right      *forestNode
	size       int
}

func (n *forestNode) leaf() bool { return n.left == nil }

// IsolationForest isolates anomalous points via random axis-aligned splits:
// outliers sit behind fewer splits, so their average path length across trees
// is shorter. The forest is fully deterministic for a fixed seed.
type IsolationForest struct {
	trees      []*forestNode
	sampleSize int
}

// FitForest builds an ensemble of isolation trees over subsamples of X.
// The sample size is clamped to the data size; the tree height limit is
// ceil(log2(sampleSize)), past which isolation stops adding information.
func FitForest(X [][]float64, trees, sampleSize int, seed int64) *IsolationForest {
	if sampleSize > len(X) {
		sampleSize = len(X)
	}
	if sampleSize < 2 {
		sampleSize = 2
	}
	rng := rand.New(rand.NewSource(seed))
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	f := &IsolationForest{sampleSize: sampleSize}
	sample := make([][]float64, sampleSize)
	for t := 0; t < trees; t++ {
		for i := range sample {
			sample[i] = X[rng.Intn(len(X))]
		}
		f.trees = append(f.trees, buildTree(sample, 0, heightLimit, rng))
	}
	return f
}

func buildTree(X [][]float64, depth, limit int, rng *rand.Rand) *forestNode {
	if depth >= limit || len(X) <= 1 {
		return &forestNode{size: len(X)}
	}

	dims := len(X[0])
	dim := rng.Intn(dims)
	lo, hi := X[0][dim], X[0][dim]
	for _, row := range X[1:] {
		if row[dim] < lo {
			lo = row[dim]
		}
		if row[dim] > hi {
			hi = row[dim]
		}
	}
	if lo == hi {
		return &forestNode{size: len(X)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range X {
		if row[dim] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &forestNode{
		splitDim:   dim,
		splitValue: split,
		left:       buildTree(left, depth+1, limit, rng),
		right:      buildTree(right, depth+1, limit, rng),
		size:       len(X),
	}
}

// pathLength walks one tree, adding the average-path correction c(n) at
// unsplit leaves holding n points.
func pathLength(n *forestNode, row []float64, depth float64) float64 {
	if n.leaf() {
		return depth + avgPathLength(n.size)
	}
	if row[n.splitDim] < n.splitValue {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

// avgPathLength is c(n): the expected path length of an unsuccessful BST
// search among n points, used to normalize tree depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

// Score returns the anomaly score of one point, in (-1, 0]. More negative
// means more anomalous.
func (f *IsolationForest) Score(row []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, row, 0)
	}
	mean := total / float64(len(f.trees))
	return -math.Pow(2, -mean/avgPathLength(f.sampleSize))
}

// ScoreAll scores every row of X.
func (f *IsolationForest) ScoreAll(X [][]float64) []float64 {
	scores := make([]float64, len(X))
	for i, row := range X {
		scores[i] = f.Score(row)
	}
	return scores
}
