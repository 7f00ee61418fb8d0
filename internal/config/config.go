// Package config holds the run configuration: YAML on disk, defaults in
// code, validation against the loaded graph.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Gather modes for the sampled adjacency and diffusion blocks.
const (
	// GatherDiagonal fills every row of the K×K block with the diagonal
	// A[id_k][id_k] of the selected nodes.
	GatherDiagonal = "diagonal"
	// GatherFull takes the proper K×K submatrix A[id_r][id_k].
	GatherFull = "full"
)

// Sources for the rows that get permuted into negative features.
const (
	// NegativeWindow permutes the first sig_sample_size rows of the
	// unsampled window.
	NegativeWindow = "window"
	// NegativeSampled permutes the rows of the sampled features.
	NegativeSampled = "sampled"
)

// Devices.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceGPU  = "gpu"
)

// Datasets the CLI knows about.
var Datasets = []string{"cora", "citeseer", "pubmed", "synthetic"}

// Config is everything a train command needs: the dataset, the run count
// and seed, and one section per component.
type Config struct {
	Dataset string `yaml:"dataset"`
	DataDir string `yaml:"data_dir"`
	Runs    int    `yaml:"runs"`
	Seed    int64  `yaml:"seed"`
	Device  string `yaml:"device"`
	Verbose bool   `yaml:"verbose"`

	Train      TrainConfig      `yaml:"train"`
	Attention  AttentionConfig  `yaml:"attention"`
	Probe      ProbeConfig      `yaml:"probe"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Results    ResultsConfig    `yaml:"results"`
}

// TrainConfig drives the pre-training loop: epochs and patience, the
// optimiser, window and significant-sample sizes, and where the best
// parameters are checkpointed.
type TrainConfig struct {
	Epochs         int     `yaml:"epochs"`
	Patience       int     `yaml:"patience"`
	LR             float64 `yaml:"lr"`
	L2Coef         float64 `yaml:"l2_coef"`
	HiddenUnits    int     `yaml:"hidden_units"`
	Sparse         bool    `yaml:"sparse"`
	SampleSize     int     `yaml:"sample_size"`
	BatchSize      int     `yaml:"batch_size"`
	SigSampleSize  int     `yaml:"sig_sample_size"`
	GatherMode     string  `yaml:"gather_mode"`
	NegativeSource string  `yaml:"negative_source"`
	CheckpointPath string  `yaml:"checkpoint_path"`
}

// AttentionConfig configures the significant-node selector. CacheSize is
// the number of window selections kept; zero disables the cache.
type AttentionConfig struct {
	Alpha     float64 `yaml:"alpha"`
	CacheSize int     `yaml:"cache_size"`
}

// ProbeConfig configures the logistic-regression evaluation of the frozen
// embeddings.
type ProbeConfig struct {
	Trials int     `yaml:"trials"`
	Steps  int     `yaml:"steps"`
	LR     float64 `yaml:"lr"`
	// WeightDecay maps dataset names to the probe's L2 coefficient.
	// Datasets not listed use zero.
	WeightDecay map[string]float64 `yaml:"weight_decay"`
}

// PreprocessConfig controls the diffusion view built when a dataset loads.
type PreprocessConfig struct {
	PPRAlpha         float64 `yaml:"ppr_alpha"`
	DiffusionEpsilon float64 `yaml:"diffusion_epsilon"`
}

// ResultsConfig names optional outputs. Empty paths disable them.
type ResultsConfig struct {
	DBPath   string `yaml:"db_path"`
	PlotPath string `yaml:"plot_path"`
}

// DefaultConfig returns the settings of the published node-classification
// experiments.
func DefaultConfig() *Config {
	return &Config{
		Dataset: "cora",
		DataDir: "data",
		Runs:    50,
		Seed:    1,
		Device:  DeviceAuto,
		Train: TrainConfig{
			Epochs:         3000,
			Patience:       20,
			LR:             0.001,
			L2Coef:         0.0,
			HiddenUnits:    512,
			Sparse:         false,
			SampleSize:     2500,
			BatchSize:      4,
			SigSampleSize:  2000,
			GatherMode:     GatherDiagonal,
			NegativeSource: NegativeWindow,
			CheckpointPath: "model.ckpt",
		},
		Attention: AttentionConfig{
			Alpha:     0.2,
			CacheSize: 1024,
		},
		Probe: ProbeConfig{
			Trials:      50,
			Steps:       300,
			LR:          0.01,
			WeightDecay: map[string]float64{"citeseer": 0.01},
		},
		Preprocess: PreprocessConfig{
			PPRAlpha: 0.2,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", path)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "failed to write config %q", path)
}

// ProbeWeightDecay returns the probe's L2 coefficient for the dataset.
func (c *Config) ProbeWeightDecay() float64 {
	return c.Probe.WeightDecay[c.Dataset]
}

// Validate checks settings that do not depend on the graph.
func (c *Config) Validate() error {
	if !knownDataset(c.Dataset) {
		return errors.Errorf("unknown dataset %q, want one of %v", c.Dataset, Datasets)
	}
	t := c.Train
	switch {
	case c.Runs <= 0:
		return errors.Errorf("runs must be positive, got %d", c.Runs)
	case t.Epochs <= 0:
		return errors.Errorf("train.epochs must be positive, got %d", t.Epochs)
	case t.Patience <= 0:
		return errors.Errorf("train.patience must be positive, got %d", t.Patience)
	case t.LR <= 0:
		return errors.Errorf("train.lr must be positive, got %v", t.LR)
	case t.HiddenUnits <= 0:
		return errors.Errorf("train.hidden_units must be positive, got %d", t.HiddenUnits)
	case t.BatchSize <= 0:
		return errors.Errorf("train.batch_size must be positive, got %d", t.BatchSize)
	case t.SigSampleSize <= 0:
		return errors.Errorf("train.sig_sample_size must be positive, got %d", t.SigSampleSize)
	case t.SigSampleSize > t.SampleSize:
		return errors.Errorf("train.sig_sample_size %d exceeds train.sample_size %d", t.SigSampleSize, t.SampleSize)
	case t.GatherMode != GatherDiagonal && t.GatherMode != GatherFull:
		return errors.Errorf("train.gather_mode %q, want %q or %q", t.GatherMode, GatherDiagonal, GatherFull)
	case t.NegativeSource != NegativeWindow && t.NegativeSource != NegativeSampled:
		return errors.Errorf("train.negative_source %q, want %q or %q", t.NegativeSource, NegativeWindow, NegativeSampled)
	case t.CheckpointPath == "":
		return errors.New("train.checkpoint_path is empty")
	case c.Device != DeviceAuto && c.Device != DeviceCPU && c.Device != DeviceGPU:
		return errors.Errorf("device %q, want auto, cpu or gpu", c.Device)
	case c.Attention.CacheSize < 0:
		return errors.Errorf("attention.cache_size must not be negative, got %d", c.Attention.CacheSize)
	case c.Probe.Trials <= 0 || c.Probe.Steps <= 0:
		return errors.New("probe.trials and probe.steps must be positive")
	}
	return nil
}

// ValidateForGraph checks the window sizes against a graph of n nodes.
func (t TrainConfig) ValidateForGraph(n int) error {
	if t.SampleSize > n {
		return errors.Errorf("train.sample_size %d exceeds the %d nodes of the graph", t.SampleSize, n)
	}
	if t.SampleSize <= 0 {
		return errors.Errorf("train.sample_size must be positive, got %d", t.SampleSize)
	}
	return nil
}

func knownDataset(name string) bool {
	for _, d := range Datasets {
		if d == name {
			return true
		}
	}
	return false
}
