package model

import (
	"sort"
)

// ROCAUC computes area under the ROC curve via the rank statistic, with
// average ranks for tied probabilities. Returns 0.5 when only one class
// is present (no ranking is possible).
func ROCAUC(labels []int, probs []float64) float64 {
	n := len(labels)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// Average rank over the tie group; ranks are 1-based.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var nPos, nNeg, rankSum float64
	for i, label := range labels {
		if label == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// Confusion returns the confusion-matrix counts at the given probability
// threshold.
func Confusion(labels []int, probs []float64, threshold float64) (tp, fp, tn, fn int) {
	for i, label := range labels {
		predicted := probs[i] >= threshold
		switch {
		case predicted && label == 1:
			tp++
		case predicted && label == 0:
			fp++
		case !predicted && label == 0:
			tn++
		default:
			fn++
		}
	}
	return
}
