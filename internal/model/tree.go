// Package model implements the risk classifier: a bagged ensemble of
// CART decision trees with class-balanced sample weights, plus the
// stratified split, cross-validation and evaluation around it.
package model

import (
	"math/rand"
	"sort"
)

// Node is one tree node. Exported for gob serialization of the bundle.
type Node struct {
	// Split definition; meaningful only when Leaf is false.
	Feature   int
	Threshold float64
	Left      int32
	Right     int32

	Leaf bool

	// Prob is the weighted positive-class fraction at this node.
	Prob float64
}

// Tree is a single decision tree stored as a flat node array.
type Tree struct {
	Nodes []Node
}

// PredictProba walks the tree and returns the leaf's positive-class
// probability.
func (t *Tree) PredictProba(x []float64) float64 {
	i := int32(0)
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Prob
}

// treeBuilder grows one tree over a bootstrap sample.
type treeBuilder struct {
	x [][]float64
	y []int
	w []float64

	maxDepth    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	nodes []Node
}

func (b *treeBuilder) build(idx []int, depth int) int32 {
	wPos, wTot := 0.0, 0.0
	for _, i := range idx {
		wTot += b.w[i]
		if b.y[i] == 1 {
			wPos += b.w[i]
		}
	}
	prob := 0.0
	if wTot > 0 {
		prob = wPos / wTot
	}

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || prob == 0 || prob == 1 {
		return b.leaf(prob)
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(prob)
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		return b.leaf(prob)
	}

	// Reserve the node before recursing so children index correctly.
	node := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold, Prob: prob})
	b.nodes[node].Left = b.build(left, depth+1)
	b.nodes[node].Right = b.build(right, depth+1)
	return node
}

func (b *treeBuilder) leaf(prob float64) int32 {
	b.nodes = append(b.nodes, Node{Leaf: true, Prob: prob})
	return int32(len(b.nodes) - 1)
}

// bestSplit searches a random feature subset for the weighted-gini
// optimal threshold that leaves at least minLeaf samples on each side.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	numFeatures := len(b.x[idx[0]])
	features := b.sampleFeatures(numFeatures)

	bestGini := 2.0
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, len(idx))
	for _, f := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		var lPos, lTot float64
		var tPos, tTot float64
		for _, i := range sorted {
			tTot += b.w[i]
			if b.y[i] == 1 {
				tPos += b.w[i]
			}
		}

		for k := 1; k < len(sorted); k++ {
			i := sorted[k-1]
			lTot += b.w[i]
			if b.y[i] == 1 {
				lPos += b.w[i]
			}

			lo, hi := b.x[i][f], b.x[sorted[k]][f]
			if lo == hi || k < b.minLeaf || len(sorted)-k < b.minLeaf {
				continue
			}

			rPos, rTot := tPos-lPos, tTot-lTot
			g := (lTot*gini(lPos, lTot) + rTot*gini(rPos, rTot)) / tTot
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// sampleFeatures draws maxFeatures distinct feature indexes.
func (b *treeBuilder) sampleFeatures(numFeatures int) []int {
	if b.maxFeatures >= numFeatures {
		all := make([]int, numFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := b.rng.Perm(numFeatures)
	return perm[:b.maxFeatures]
}

// gini is the binary weighted Gini impurity 2p(1-p).
func gini(pos, tot float64) float64 {
	if tot == 0 {
		return 0
	}
	p := pos / tot
	return 2 * p * (1 - p)
}
