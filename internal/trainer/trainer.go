// Package trainer runs contrastive pre-training: per epoch it draws random
// windows of the graph, shrinks each to its significant nodes, scores real
// against shuffled features and keeps the parameters of the best epoch.
package trainer

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/cnclabs/mvgrl/internal/config"
	"github.com/cnclabs/mvgrl/internal/models/mvgrl"
	"github.com/cnclabs/mvgrl/internal/models/sampler"
	"github.com/cnclabs/mvgrl/pkg/graph"
	"github.com/cnclabs/mvgrl/pkg/nn"
)

// Trainer owns one run: the model, the frozen attention selector, the
// optimiser and the random source. Losses holds the loss of every epoch
// Fit ran; BestEpoch and BestLoss are set once Fit returns.
type Trainer struct {
	cfg    config.TrainConfig
	device string
	graph  *graph.Graph

	Model     *mvgrl.Model
	Attention *sampler.GraphAttentionLayer

	selector windowSelector
	cache    *sampler.CachedSelector
	opt      *nn.Adam
	rng      *rand.Rand
	labels   *mat.Dense

	// Progress receives the epoch progress bar. Nil disables it.
	Progress io.Writer

	Losses    []float64
	BestEpoch int
	BestLoss  float64
}

// New builds the model, the frozen attention layer and the optimiser for g.
// Every random draw of the run comes from rng.
func New(cfg *config.Config, g *graph.Graph, rng *rand.Rand) (*Trainer, error) {
	if err := cfg.Train.ValidateForGraph(g.NumNodes()); err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:       cfg.Train,
		device:    resolveDevice(cfg.Device),
		graph:     g,
		rng:       rng,
		BestEpoch: -1,
		BestLoss:  math.Inf(1),
	}

	t.Model = mvgrl.New(g.NumFeatures(), cfg.Train.HiddenUnits, rng)
	t.Attention = sampler.NewGraphAttentionLayer(g.NumFeatures(), cfg.Train.HiddenUnits, cfg.Attention.Alpha, rng)
	t.opt = nn.NewAdam(t.Model.Params(), cfg.Train.LR, cfg.Train.L2Coef)
	t.labels = mvgrl.ContrastiveLabels(cfg.Train.BatchSize, cfg.Train.SigSampleSize)

	if cfg.Attention.CacheSize > 0 {
		cache, err := sampler.NewCachedSelector(t.Attention, cfg.Attention.CacheSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
		t.selector = cache
	} else {
		t.selector = directSelector{t.Attention}
	}
	return t, nil
}

// directSelector runs the selector on every window without caching.
type directSelector struct {
	sampler.Selector
}

func (d directSelector) SelectWindow(_ int, x *mat.Dense, adj mat.Matrix, k int) []int {
	return d.Select(x, adj, k)
}

// resolveDevice maps the configured device onto what is available. Only
// host execution is implemented.
func resolveDevice(device string) string {
	switch device {
	case config.DeviceGPU:
		klog.Warningf("device %q is not available, falling back to %q", device, config.DeviceCPU)
	case config.DeviceAuto:
		klog.V(1).Infof("device %q resolved to %q", device, config.DeviceCPU)
	}
	return config.DeviceCPU
}

// Device is the device the trainer runs on.
func (t *Trainer) Device() string {
	return t.device
}

// PrintSetting prints the model banner followed by the learning parameters.
func (t *Trainer) PrintSetting() {
	t.Model.PrintSetting()
	fmt.Printf("Learning Parameters:\n")
	fmt.Printf("\tepochs:\t\t\t%s\n", humanize.Comma(int64(t.cfg.Epochs)))
	fmt.Printf("\tpatience:\t\t%d\n", t.cfg.Patience)
	fmt.Printf("\tlearning rate:\t\t%g\n", t.cfg.LR)
	fmt.Printf("\tl2 coef:\t\t%g\n", t.cfg.L2Coef)
	fmt.Printf("\tbatch size:\t\t%d\n", t.cfg.BatchSize)
	fmt.Printf("\tsample size:\t\t%d\n", t.cfg.SampleSize)
	fmt.Printf("\tsig sample size:\t%d\n", t.cfg.SigSampleSize)
	fmt.Printf("\tgather mode:\t\t%s\n", t.cfg.GatherMode)
	fmt.Printf("\tdevice:\t\t\t%s\n", t.device)
}

// Step runs one epoch: sample, forward, loss, backward and one Adam update.
// It returns the loss and the logits of the update.
func (t *Trainer) Step() (float64, *mat.Dense) {
	b := sampleBatch(t.graph, t.cfg, t.selector, t.rng)

	t.opt.ZeroGrad()
	res := t.Model.Forward(b.Features, b.Shuffled, b.Adj, b.Diff, t.cfg.Sparse, nil, nil, nil)
	loss, dLogits := nn.BCEWithLogits(res.Logits, t.labels)
	t.Model.Backward(res, dLogits)
	t.opt.Step()
	return loss, res.Logits
}

// Fit trains until the patience runs out or the epochs are exhausted, then
// restores the parameters of the best epoch. Cancelling ctx stops training
// between epochs.
func (t *Trainer) Fit(ctx context.Context) error {
	stopper := NewEarlyStopper(t.cfg.Patience)

	var bar *progressbar.ProgressBar
	if t.Progress != nil {
		bar = progressbar.NewOptions(t.cfg.Epochs,
			progressbar.OptionSetWriter(t.Progress),
			progressbar.OptionSetDescription("Training"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("epochs"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
		defer bar.Finish()
	}

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "training interrupted at epoch %d", epoch)
		}

		loss, _ := t.Step()
		t.Losses = append(t.Losses, loss)
		klog.V(1).Infof("Epoch: %d, Loss: %.4f", epoch, loss)
		if bar != nil {
			bar.Add(1)
		}

		improved, stop := stopper.Observe(epoch, loss)
		if improved {
			if err := t.Model.Save(t.cfg.CheckpointPath); err != nil {
				return errors.Wrapf(err, "failed to checkpoint epoch %d", epoch)
			}
		}
		if stop {
			klog.Infof("Early stopping at epoch %d!", epoch)
			break
		}
	}

	t.BestEpoch, t.BestLoss = stopper.Best()
	if t.BestEpoch < 0 {
		return errors.Errorf("no finite loss in %d epochs", len(t.Losses))
	}
	if t.cache != nil {
		hits, misses := t.cache.Stats()
		klog.V(1).Infof("selection cache: %d hits, %d misses", hits, misses)
	}

	klog.Infof("Loading %dth epoch", t.BestEpoch)
	return t.Model.Load(t.cfg.CheckpointPath)
}

// Embed encodes the full graph and returns the N×H node embeddings.
func (t *Trainer) Embed() *mat.Dense {
	g := t.graph
	embeds, _ := t.Model.Embed(
		[]*mat.Dense{g.Features},
		[]mat.Matrix{g.Adj},
		[]mat.Matrix{g.Diff},
		t.cfg.Sparse, nil)
	return embeds[0]
}

// Split returns the embeddings and labels of the train and test nodes.
func (t *Trainer) Split(embeds *mat.Dense) (trainEmbs *mat.Dense, trainLabels []int, testEmbs *mat.Dense, testLabels []int) {
	g := t.graph
	return gatherRows(embeds, g.TrainIdx), g.LabelsAt(g.TrainIdx),
		gatherRows(embeds, g.TestIdx), g.LabelsAt(g.TestIdx)
}
