package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/cnclabs/mvgrl/internal/config"
	"github.com/cnclabs/mvgrl/internal/models/probe"
	"github.com/cnclabs/mvgrl/internal/results"
	"github.com/cnclabs/mvgrl/internal/trainer"
	"github.com/cnclabs/mvgrl/pkg/graph"
)

// trainFlags receives the flag values. Only flags set on the command line are
// copied over the loaded configuration.
var (
	trainConfigPath string
	trainFlags      = config.DefaultConfig()
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Pre-train the encoders and score the embeddings with a linear probe",
	Long: `Train runs the contrastive pre-training once per run, restores the
best checkpoint, embeds the whole graph and prints "mean std" of the probe
accuracy for every run.`,
	Example: `  mvgrl train --dataset cora --data-dir data --runs 50
  mvgrl train --config cora.yaml --results-db runs.db --plot loss.png
  mvgrl train --dataset synthetic --sample-size 200 --sig-sample-size 100 --runs 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if trainConfigPath != "" {
			loaded, err := config.Load(trainConfigPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		applyTrainFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runTrain(ctx, cfg, os.Stdout)
	},
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainConfigPath, "config", "", "YAML configuration file")
	f.StringVar(&trainFlags.Dataset, "dataset", trainFlags.Dataset, "Dataset name: cora, citeseer, pubmed or synthetic")
	f.StringVar(&trainFlags.DataDir, "data-dir", trainFlags.DataDir, "Directory holding one sub-directory per dataset")
	f.IntVar(&trainFlags.Runs, "runs", trainFlags.Runs, "Number of independent train-and-probe runs")
	f.Int64Var(&trainFlags.Seed, "seed", trainFlags.Seed, "Random seed of the first run")
	f.StringVar(&trainFlags.Device, "device", trainFlags.Device, "Device: auto, cpu or gpu")
	f.BoolVar(&trainFlags.Verbose, "verbose", trainFlags.Verbose, "Print settings and a progress bar")
	f.StringVar(&trainFlags.Results.DBPath, "results-db", "", "SQLite database to record runs in")
	f.StringVar(&trainFlags.Results.PlotPath, "plot", "", "Image file for the training loss curve")

	f.IntVar(&trainFlags.Train.Epochs, "epochs", trainFlags.Train.Epochs, "Maximum number of epochs")
	f.IntVar(&trainFlags.Train.Patience, "patience", trainFlags.Train.Patience, "Epochs without improvement before stopping")
	f.IntVar(&trainFlags.Train.HiddenUnits, "hidden", trainFlags.Train.HiddenUnits, "Dimension of the node embeddings")
	f.IntVar(&trainFlags.Train.SampleSize, "sample-size", trainFlags.Train.SampleSize, "Nodes per random window")
	f.IntVar(&trainFlags.Train.SigSampleSize, "sig-sample-size", trainFlags.Train.SigSampleSize, "Significant nodes kept per window")
	f.IntVar(&trainFlags.Train.BatchSize, "batch-size", trainFlags.Train.BatchSize, "Windows per epoch")
	f.StringVar(&trainFlags.Train.GatherMode, "gather-mode", trainFlags.Train.GatherMode, "Sampled block gather: diagonal or full")
	f.StringVar(&trainFlags.Train.NegativeSource, "negative-source", trainFlags.Train.NegativeSource, "Rows permuted into negatives: window or sampled")
	f.BoolVar(&trainFlags.Train.Sparse, "sparse", trainFlags.Train.Sparse, "Propagate with compressed sparse adjacency")
	f.StringVar(&trainFlags.Train.CheckpointPath, "checkpoint", trainFlags.Train.CheckpointPath, "Path of the best-epoch checkpoint")
	rootCmd.AddCommand(trainCmd)
}

// applyTrainFlags copies the flags set on the command line over cfg.
func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("dataset", func() { cfg.Dataset = trainFlags.Dataset })
	set("data-dir", func() { cfg.DataDir = trainFlags.DataDir })
	set("runs", func() { cfg.Runs = trainFlags.Runs })
	set("seed", func() { cfg.Seed = trainFlags.Seed })
	set("device", func() { cfg.Device = trainFlags.Device })
	set("verbose", func() { cfg.Verbose = trainFlags.Verbose })
	set("results-db", func() { cfg.Results.DBPath = trainFlags.Results.DBPath })
	set("plot", func() { cfg.Results.PlotPath = trainFlags.Results.PlotPath })
	set("epochs", func() { cfg.Train.Epochs = trainFlags.Train.Epochs })
	set("patience", func() { cfg.Train.Patience = trainFlags.Train.Patience })
	set("hidden", func() { cfg.Train.HiddenUnits = trainFlags.Train.HiddenUnits })
	set("sample-size", func() { cfg.Train.SampleSize = trainFlags.Train.SampleSize })
	set("sig-sample-size", func() { cfg.Train.SigSampleSize = trainFlags.Train.SigSampleSize })
	set("batch-size", func() { cfg.Train.BatchSize = trainFlags.Train.BatchSize })
	set("gather-mode", func() { cfg.Train.GatherMode = trainFlags.Train.GatherMode })
	set("negative-source", func() { cfg.Train.NegativeSource = trainFlags.Train.NegativeSource })
	set("sparse", func() { cfg.Train.Sparse = trainFlags.Train.Sparse })
	set("checkpoint", func() { cfg.Train.CheckpointPath = trainFlags.Train.CheckpointPath })
}

// loadGraph reads the configured dataset, generating the synthetic one in
// memory.
func loadGraph(cfg *config.Config) (*graph.Graph, error) {
	opts := graph.Options{
		PPRAlpha:         cfg.Preprocess.PPRAlpha,
		DiffusionEpsilon: cfg.Preprocess.DiffusionEpsilon,
		Seed:             cfg.Seed,
	}
	if cfg.Dataset == "synthetic" {
		synth := graph.DefaultSyntheticOptions()
		synth.Seed = cfg.Seed
		return graph.Build(graph.Synthetic(synth), opts)
	}
	return graph.Load(filepath.Join(cfg.DataDir, cfg.Dataset), opts)
}

// runTrain trains and probes cfg.Runs times, writing "mean std" per run to
// out.
func runTrain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Train.ValidateForGraph(g.NumNodes()); err != nil {
		return err
	}

	var store *results.Store
	if cfg.Results.DBPath != "" {
		if store, err = results.Open(cfg.Results.DBPath); err != nil {
			return err
		}
		defer store.Close()
	}

	probeOpts := probe.Options{
		Trials:      cfg.Probe.Trials,
		Steps:       cfg.Probe.Steps,
		LR:          cfg.Probe.LR,
		WeightDecay: cfg.ProbeWeightDecay(),
	}

	for run := 0; run < cfg.Runs; run++ {
		seed := cfg.Seed + int64(run)
		rng := rand.New(rand.NewSource(seed))

		tr, err := trainer.New(cfg, g, rng)
		if err != nil {
			return err
		}
		if cfg.Verbose {
			if run == 0 {
				tr.PrintSetting()
			}
			tr.Progress = os.Stderr
		}
		if err := tr.Fit(ctx); err != nil {
			return err
		}

		trainEmbs, trainLabels, testEmbs, testLabels := tr.Split(tr.Embed())
		res, err := probe.Evaluate(trainEmbs, trainLabels, testEmbs, testLabels, g.NumClasses, probeOpts, rng)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.String())
		klog.V(1).Infof("run %d: best epoch %d, loss %.4f, accuracy %s", run, tr.BestEpoch, tr.BestLoss, res)

		if store != nil {
			rec := results.NewRun(cfg.Dataset, seed)
			rec.Epochs = len(tr.Losses)
			rec.BestEpoch = tr.BestEpoch
			rec.BestLoss = tr.BestLoss
			rec.MeanAcc, rec.StdAcc = res.Mean, res.Std
			rec.Accuracies = res.Accuracies
			rec.Losses = tr.Losses
			if err := store.Save(ctx, rec); err != nil {
				return err
			}
		}
		if cfg.Results.PlotPath != "" {
			path := plotPath(cfg.Results.PlotPath, run, cfg.Runs)
			title := fmt.Sprintf("%s run %d", cfg.Dataset, run)
			if err := results.PlotLoss(path, title, tr.Losses, tr.BestEpoch); err != nil {
				return err
			}
		}
	}
	return nil
}

// plotPath numbers the plot of every run when there is more than one.
func plotPath(path string, run, runs int) string {
	if runs == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), run, ext)
}
