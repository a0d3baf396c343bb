package model

import (
	"math"
	"math/rand"
	"sync"
)

// Params are the forest hyperparameters. Zero values fall back to the
// documented defaults.
type Params struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

func (p Params) withDefaults() Params {
	if p.Trees <= 0 {
		p.Trees = 150
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 12
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 10
	}
	return p
}

// Forest is the bagged tree ensemble. Exported fields for gob
// serialization of the bundle.
type Forest struct {
	Trees       []Tree
	NumFeatures int
}

// FitForest trains a bagged ensemble on the encoded matrix. Sample
// weights are class-balanced to counter label skew. Each tree gets its
// own deterministic seed derived from Params.Seed, so training is
// reproducible for a fixed dataset even though trees build in parallel.
func FitForest(x [][]float64, y []int, p Params) *Forest {
	p = p.withDefaults()
	n := len(x)

	weights := balancedWeights(y)

	forest := &Forest{
		Trees:       make([]Tree, p.Trees),
		NumFeatures: len(x[0]),
	}
	maxFeatures := int(math.Sqrt(float64(forest.NumFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	workers := 8
	if workers > p.Trees {
		workers = p.Trees
	}

	var wg sync.WaitGroup
	treeCh := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range treeCh {
				rng := rand.New(rand.NewSource(p.Seed + int64(t)))

				sample := make([]int, n)
				for i := range sample {
					sample[i] = rng.Intn(n)
				}

				b := &treeBuilder{
					x:           x,
					y:           y,
					w:           weights,
					maxDepth:    p.MaxDepth,
					minLeaf:     p.MinLeaf,
					maxFeatures: maxFeatures,
					rng:         rng,
				}
				b.build(sample, 0)
				forest.Trees[t] = Tree{Nodes: b.nodes}
			}
		}()
	}
	for t := 0; t < p.Trees; t++ {
		treeCh <- t
	}
	close(treeCh)
	wg.Wait()

	return forest
}

// PredictProba returns the mean positive-class probability across trees.
func (f *Forest) PredictProba(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].PredictProba(x)
	}
	return sum / float64(len(f.Trees))
}

// balancedWeights gives each sample the weight n / (classes * classCount),
// so the minority class contributes as much total weight as the majority.
func balancedWeights(y []int) []float64 {
	counts := map[int]float64{}
	for _, label := range y {
		counts[label]++
	}
	n := float64(len(y))
	k := float64(len(counts))

	w := make([]float64, len(y))
	for i, label := range y {
		w[i] = n / (k * counts[label])
	}
	return w
}
