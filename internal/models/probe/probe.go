package probe

import (
	"fmt"
	"math/rand"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Options configures the linear probe.
type Options struct {
	Trials      int
	Steps       int
	LR          float64
	WeightDecay float64
}

// DefaultOptions returns 50 trials of 300 Adam steps at lr 0.01.
func DefaultOptions() Options {
	return Options{
		Trials: 50,
		Steps:  300,
		LR:     0.01,
	}
}

// Result holds the test accuracy (in percent) of every trial.
type Result struct {
	Accuracies []float64
	Mean       float64
	Std        float64
}

// String formats the result as "mean std".
func (r *Result) String() string {
	return fmt.Sprintf("%v %v", r.Mean, r.Std)
}

// Evaluate trains opts.Trials independent classifiers on the training
// embeddings and reports their test accuracy.
func Evaluate(trainEmbs *mat.Dense, trainLabels []int, testEmbs *mat.Dense, testLabels []int, classes int, opts Options, rng *rand.Rand) (*Result, error) {
	trainRows, dim := trainEmbs.Dims()
	testRows, testDim := testEmbs.Dims()
	switch {
	case trainRows != len(trainLabels):
		return nil, errors.Errorf("%d training embeddings for %d labels", trainRows, len(trainLabels))
	case testRows != len(testLabels):
		return nil, errors.Errorf("%d test embeddings for %d labels", testRows, len(testLabels))
	case testDim != dim:
		return nil, errors.Errorf("train embeddings are %d wide, test embeddings %d", dim, testDim)
	case trainRows == 0 || testRows == 0:
		return nil, errors.New("linear probe needs non-empty train and test sets")
	case opts.Trials <= 0:
		return nil, errors.Errorf("linear probe needs a positive trial count, got %d", opts.Trials)
	}
	for _, l := range append(append([]int(nil), trainLabels...), testLabels...) {
		if l < 0 || l >= classes {
			return nil, errors.Errorf("label %d outside [0,%d)", l, classes)
		}
	}

	res := &Result{Accuracies: make([]float64, opts.Trials)}
	for trial := 0; trial < opts.Trials; trial++ {
		clf := NewLogReg(dim, classes, rng)
		opt := nn.NewAdam(clf.Params(), opts.LR, opts.WeightDecay)
		for step := 0; step < opts.Steps; step++ {
			opt.ZeroGrad()
			_, dLogits := nn.NLLLoss(clf.Forward(trainEmbs), trainLabels)
			clf.Backward(trainEmbs, dLogits)
			opt.Step()
		}
		res.Accuracies[trial] = Accuracy(clf.Predict(testEmbs), testLabels)
		klog.V(2).Infof("probe trial %d: accuracy %.2f", trial, res.Accuracies[trial])
	}

	res.Mean, res.Std = stat.MeanStdDev(res.Accuracies, nil)
	if opts.Trials == 1 {
		res.Std = 0
	}
	return res, nil
}

// Accuracy returns the percentage of preds equal to labels.
func Accuracy(preds, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)) * 100
}
