package results

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLoss draws the per-epoch training loss and marks the best epoch.
// Non-finite losses are left out. The image format follows the extension of
// path.
func PlotLoss(path, title string, losses []float64, bestEpoch int) error {
	if len(losses) == 0 {
		return errors.New("no losses to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	pts := make(plotter.XYs, 0, len(losses))
	for i, l := range losses {
		if isFinite(l) {
			pts = append(pts, plotter.XY{X: float64(i), Y: l})
		}
	}
	if len(pts) == 0 {
		return errors.New("no finite losses to plot")
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build loss line")
	}
	p.Add(line)
	p.Legend.Add("loss", line)

	if bestEpoch >= 0 && bestEpoch < len(losses) && isFinite(losses[bestEpoch]) {
		best, err := plotter.NewScatter(plotter.XYs{{X: float64(bestEpoch), Y: losses[bestEpoch]}})
		if err != nil {
			return errors.Wrap(err, "failed to mark best epoch")
		}
		p.Add(best)
		p.Legend.Add("best", best)
	}

	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "failed to save plot %q", path)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
