package trainer

import "math"

// EarlyStopper tracks the best loss and counts epochs without improvement.
type EarlyStopper struct {
	patience  int
	best      float64
	bestEpoch int
	wait      int
}

// NewEarlyStopper stops after patience epochs without a lower loss.
func NewEarlyStopper(patience int) *EarlyStopper {
	return &EarlyStopper{patience: patience, best: math.Inf(1), bestEpoch: -1}
}

// Observe records the loss of epoch. improved reports a new best; stop
// reports that patience epochs have passed since the best.
func (s *EarlyStopper) Observe(epoch int, loss float64) (improved, stop bool) {
	if loss < s.best {
		s.best = loss
		s.bestEpoch = epoch
		s.wait = 0
		return true, false
	}
	s.wait++
	return false, s.wait == s.patience
}

// Best returns the best epoch and its loss. The epoch is -1 until a finite
// loss is observed.
func (s *EarlyStopper) Best() (int, float64) {
	return s.bestEpoch, s.best
}
