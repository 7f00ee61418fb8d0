// Package mvgrl implements a contrastive multi-view graph encoder: two GCN
// encoders, one over the structural adjacency and one over the diffusion
// adjacency, trained by a bilinear discriminator that tells each view's
// graph summary apart from the other view's node embeddings of real versus
// shuffled features.
package mvgrl

import (
	"fmt"
	"math/rand"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Encoder maps a batch of node features and adjacencies to node embeddings.
type Encoder interface {
	Forward(seq []*mat.Dense, adj []mat.Matrix, sparse bool) *Activation
	Backward(act *Activation, dOut []*mat.Dense)
	Params() []*nn.Param
}

// Pooler reduces node embeddings to one summary per batch element.
type Pooler interface {
	Forward(h []*mat.Dense, mask *mat.Dense) *mat.Dense
	Backward(h []*mat.Dense, mask *mat.Dense, dSummary *mat.Dense) []*mat.Dense
}

// Scorer produces contrastive logits from two summaries and four node
// embedding batches.
type Scorer interface {
	Forward(c1, c2 *mat.Dense, h1, h2, h3, h4 []*mat.Dense, sBias1, sBias2 *mat.Dense) *mat.Dense
	Backward(c1, c2 *mat.Dense, h1, h2, h3, h4 []*mat.Dense, dLogits *mat.Dense) *ScoreGrads
	Params() []*nn.Param
}

// Model composes the two encoders, the readout and the discriminator.
type Model struct {
	GCN1 Encoder
	GCN2 Encoder
	Read Pooler
	Disc Scorer

	inFeatures int
	hidden     int
}

// New creates a model for inFeatures-wide inputs and hidden-wide embeddings.
func New(inFeatures, hidden int, rng *rand.Rand) *Model {
	return &Model{
		GCN1:       NewGCN("gcn1", inFeatures, hidden, true, rng),
		GCN2:       NewGCN("gcn2", inFeatures, hidden, true, rng),
		Read:       Readout{},
		Disc:       NewDiscriminator("disc", hidden, rng),
		inFeatures: inFeatures,
		hidden:     hidden,
	}
}

// Params lists every trainable parameter: encoder 1, encoder 2, then the
// discriminator.
func (m *Model) Params() []*nn.Param {
	var params []*nn.Param
	params = append(params, m.GCN1.Params()...)
	params = append(params, m.GCN2.Params()...)
	return append(params, m.Disc.Params()...)
}

// ZeroGrad clears all parameter gradients.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// PrintSetting prints the model banner.
func (m *Model) PrintSetting() {
	fmt.Println("Model Setting:")
	fmt.Printf("\tin_features:\t\t%d\n", m.inFeatures)
	fmt.Printf("\thidden_units:\t\t%d\n", m.hidden)
	fmt.Printf("\tparameters:\t\t%s\n", humanize.Comma(int64(nn.CountParams(m.Params()))))
}

// ForwardResult carries the logits plus everything Backward needs.
type ForwardResult struct {
	Logits *mat.Dense
	H1, H2 []*mat.Dense

	act1, act2, act3, act4 *Activation
	c1, c2                 *mat.Dense
	mask                   *mat.Dense
}

// Forward runs both views over the real features seq1 and the shuffled
// features seq2. adj feeds encoder 1, diff feeds encoder 2. sBias1 and
// sBias2 are reserved and unused.
func (m *Model) Forward(seq1, seq2 []*mat.Dense, adj, diff []mat.Matrix, sparse bool, mask, sBias1, sBias2 *mat.Dense) *ForwardResult {
	res := &ForwardResult{mask: mask}

	res.act1 = m.GCN1.Forward(seq1, adj, sparse)
	res.c1 = sigmoid(m.Read.Forward(res.act1.Out, mask))

	res.act2 = m.GCN2.Forward(seq1, diff, sparse)
	res.c2 = sigmoid(m.Read.Forward(res.act2.Out, mask))

	res.act3 = m.GCN1.Forward(seq2, adj, sparse)
	res.act4 = m.GCN2.Forward(seq2, diff, sparse)

	res.H1, res.H2 = res.act1.Out, res.act2.Out
	res.Logits = m.Disc.Forward(res.c1, res.c2, res.H1, res.H2, res.act3.Out, res.act4.Out, sBias1, sBias2)
	return res
}

// Backward accumulates gradients of every parameter for dLogits, the
// gradient of the loss with respect to res.Logits.
func (m *Model) Backward(res *ForwardResult, dLogits *mat.Dense) {
	h3, h4 := res.act3.Out, res.act4.Out
	g := m.Disc.Backward(res.c1, res.c2, res.H1, res.H2, h3, h4, dLogits)

	dH1 := addBatches(g.H1, m.Read.Backward(res.H1, res.mask, sigmoidGrad(res.c1, g.C1)))
	dH2 := addBatches(g.H2, m.Read.Backward(res.H2, res.mask, sigmoidGrad(res.c2, g.C2)))

	m.GCN1.Backward(res.act1, dH1)
	m.GCN1.Backward(res.act3, g.H3)
	m.GCN2.Backward(res.act2, dH2)
	m.GCN2.Backward(res.act4, g.H4)
}

// Embed returns the node representation h1+h2 and the pooled summary of
// encoder 1. Nothing is retained for a backward pass.
func (m *Model) Embed(seq []*mat.Dense, adj, diff []mat.Matrix, sparse bool, mask *mat.Dense) ([]*mat.Dense, *mat.Dense) {
	h1 := m.GCN1.Forward(seq, adj, sparse).Out
	c := m.Read.Forward(h1, mask)
	h2 := m.GCN2.Forward(seq, diff, sparse).Out

	embeds := make([]*mat.Dense, len(h1))
	for b := range h1 {
		var sum mat.Dense
		sum.Add(h1[b], h2[b])
		embeds[b] = &sum
	}
	return embeds, c
}

// Save writes the parameters to path.
func (m *Model) Save(path string) error {
	return nn.SaveParams(path, m.Params())
}

// Load restores the parameters from path.
func (m *Model) Load(path string) error {
	if err := nn.LoadParams(path, m.Params()); err != nil {
		return err
	}
	klog.V(1).Infof("restored %d parameters from %s", nn.CountParams(m.Params()), path)
	return nil
}

func sigmoid(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	out.Apply(func(_, _ int, v float64) float64 {
		return nn.Sigmoid(v)
	}, out)
	return out
}

// sigmoidGrad returns dy ⊙ y ⊙ (1-y) for y = sigmoid(x).
func sigmoidGrad(y, dy *mat.Dense) *mat.Dense {
	r, c := y.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		s := y.At(i, j)
		return v * s * (1 - s)
	}, dy)
	return out
}

func addBatches(a, b []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(a))
	for i := range a {
		var sum mat.Dense
		sum.Add(a[i], b[i])
		out[i] = &sum
	}
	return out
}

// ContrastiveLabels returns the batch × 4n target of the discriminator:
// ones for the 2n positive columns, zeros for the 2n negative ones.
func ContrastiveLabels(batch, nodes int) *mat.Dense {
	lbl := mat.NewDense(batch, 4*nodes, nil)
	for b := 0; b < batch; b++ {
		row := lbl.RawRowView(b)
		for i := 0; i < 2*nodes; i++ {
			row[i] = 1
		}
	}
	return lbl
}
