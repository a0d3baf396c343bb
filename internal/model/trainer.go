package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/campus-safety/kestrel/internal/domain"
)

// Train fits the classifier end to end: stratified 80/20 split,
// stratified k-fold cross-validation scored by ROC-AUC on the training
// partition only, then a single held-out evaluation of the final forest.
// The held-out partition never informs any fitting decision.
func Train(x [][]float64, y []int, cfg domain.TrainingConfig) (*Forest, *domain.EvaluationMetrics, error) {
	if err := checkLabelDiversity(y); err != nil {
		return nil, nil, err
	}

	testFraction := cfg.TestFraction
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = 0.2
	}
	folds := cfg.CVFolds
	if folds <= 1 {
		folds = 5
	}

	trainIdx, testIdx := stratifiedSplit(y, testFraction, cfg.Seed)

	params := Params{
		Trees:    cfg.Trees,
		MaxDepth: cfg.MaxDepth,
		MinLeaf:  cfg.MinLeaf,
		Seed:     cfg.Seed,
	}

	cvMean, cvStd := crossValidate(x, y, trainIdx, folds, params)

	trainX, trainY := subset(x, y, trainIdx)
	forest := FitForest(trainX, trainY, params)

	testX, testY := subset(x, y, testIdx)
	probs := make([]float64, len(testX))
	for i, row := range testX {
		probs[i] = forest.PredictProba(row)
	}

	tp, fp, tn, fn := Confusion(testY, probs, 0.5)
	metrics := &domain.EvaluationMetrics{
		ROCAUC:         ROCAUC(testY, probs),
		CVMean:         cvMean,
		CVStd:          cvStd,
		TruePositives:  tp,
		FalsePositives: fp,
		TrueNegatives:  tn,
		FalseNegatives: fn,
		TrainSize:      len(trainIdx),
		TestSize:       len(testIdx),
	}

	return forest, metrics, nil
}

// checkLabelDiversity fails before any fitting attempt when the target
// has fewer than two distinct values.
func checkLabelDiversity(y []int) error {
	seen := map[int]bool{}
	for _, label := range y {
		seen[label] = true
		if len(seen) >= 2 {
			return nil
		}
	}
	return fmt.Errorf("%w: got %d", domain.ErrInsufficientLabelDiversity, len(seen))
}

// stratifiedSplit partitions indexes so the label ratio is preserved in
// both parts. The shuffle is seeded, so repeated runs split identically.
func stratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	for _, group := range groupByLabel(y) {
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		cut := int(math.Round(float64(len(group)) * testFraction))
		if cut == 0 && len(group) > 1 {
			cut = 1
		}
		test = append(test, group[:cut]...)
		train = append(train, group[cut:]...)
	}
	return train, test
}

// crossValidate runs stratified k-fold CV over the training partition and
// returns the mean and standard deviation of the per-fold ROC-AUC. Folds
// that end up single-class (possible on tiny datasets) are skipped.
func crossValidate(x [][]float64, y []int, trainIdx []int, folds int, params Params) (mean, std float64) {
	trainY := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainY[i] = y[idx]
	}

	assignments := stratifiedFolds(trainY, folds, params.Seed)

	var scores []float64
	for f := 0; f < folds; f++ {
		var fitIdx, holdIdx []int
		for i, fold := range assignments {
			if fold == f {
				holdIdx = append(holdIdx, trainIdx[i])
			} else {
				fitIdx = append(fitIdx, trainIdx[i])
			}
		}
		if len(holdIdx) == 0 || singleClass(y, holdIdx) || singleClass(y, fitIdx) {
			continue
		}

		fitX, fitY := subset(x, y, fitIdx)
		forest := FitForest(fitX, fitY, params)

		holdX, holdY := subset(x, y, holdIdx)
		probs := make([]float64, len(holdX))
		for i, row := range holdX {
			probs[i] = forest.PredictProba(row)
		}
		scores = append(scores, ROCAUC(holdY, probs))
	}

	if len(scores) == 0 {
		return 0, 0
	}
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	std = math.Sqrt(std / float64(len(scores)))
	return mean, std
}

// stratifiedFolds assigns each position a fold number, distributing each
// label class round-robin after a seeded shuffle.
func stratifiedFolds(y []int, folds int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed + 1))
	assignments := make([]int, len(y))

	for _, group := range groupByLabel(y) {
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for i, pos := range group {
			assignments[pos] = i % folds
		}
	}
	return assignments
}

// groupByLabel returns index groups in ascending label order. Ordering
// matters: the seeded shuffles must consume the RNG identically on every
// run for splits to be reproducible.
func groupByLabel(y []int) [][]int {
	byLabel := map[int][]int{}
	var labels []int
	for i, label := range y {
		if _, ok := byLabel[label]; !ok {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}
	sort.Ints(labels)

	groups := make([][]int, 0, len(labels))
	for _, label := range labels {
		groups = append(groups, byLabel[label])
	}
	return groups
}

func singleClass(y []int, idx []int) bool {
	if len(idx) == 0 {
		return true
	}
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	sx := make([][]float64, len(idx))
	sy := make([]int, len(idx))
	for i, j := range idx {
		sx[i] = x[j]
		sy[i] = y[j]
	}
	return sx, sy
}
