package graph

import (
	"math/rand"
	"sort"
)

// Planetoid split sizes.
const (
	TrainPerClass = 20
	MaxVal        = 500
	MaxTest       = 1000
)

// PlanetoidSplit draws up to TrainPerClass training nodes per class, then
// validation and test nodes from the rest. Small graphs get half of the
// remainder for validation and the other half for test.
func PlanetoidSplit(labels []int, numClasses int, seed int64) Split {
	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(len(labels))

	perClass := make([]int, numClasses)
	var split Split
	var rest []int
	for _, v := range order {
		if c := labels[v]; perClass[c] < TrainPerClass && perClass[c] < classQuota(labels, c) {
			perClass[c]++
			split.Train = append(split.Train, v)
			continue
		}
		rest = append(rest, v)
	}

	nVal := min(MaxVal, len(rest)/2)
	nTest := min(MaxTest, len(rest)-nVal)
	split.Val = append(split.Val, rest[:nVal]...)
	split.Test = append(split.Test, rest[nVal:nVal+nTest]...)

	sort.Ints(split.Train)
	sort.Ints(split.Val)
	sort.Ints(split.Test)
	return split
}

// classQuota keeps at least half of every class out of the training set.
func classQuota(labels []int, class int) int {
	count := 0
	for _, l := range labels {
		if l == class {
			count++
		}
	}
	return max(1, count/2)
}
