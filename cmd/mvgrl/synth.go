package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cnclabs/mvgrl/pkg/graph"
)

// Flag values of the synth command.
var (
	synthOpts = graph.DefaultSyntheticOptions()
	synthOut  string
)

var synthCmd = &cobra.Command{
	Use:     "synth",
	Short:   "Write a synthetic stochastic-block-model dataset",
	Example: `  mvgrl synth --out data/synthetic --nodes 300 --classes 3 --features 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSynth(synthOut, synthOpts, cmd.OutOrStdout())
	},
}

// runSynth generates a synthetic dataset into out and reports its size to w.
func runSynth(out string, opts graph.SyntheticOptions, w io.Writer) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	raw := graph.Synthetic(opts)
	if err := graph.WriteRaw(out, raw); err != nil {
		return err
	}
	fmt.Fprintf(w, "Synthetic graph written to %s:\n", out)
	fmt.Fprintf(w, "\t# of nodes:\t\t%d\n", raw.NumNodes())
	fmt.Fprintf(w, "\t# of edges:\t\t%d\n", len(raw.Edges))
	fmt.Fprintf(w, "\t# of classes:\t\t%d\n", raw.NumClasses())
	return nil
}

func init() {
	f := synthCmd.Flags()
	f.StringVar(&synthOut, "out", "", "Directory to write edges.txt, features.txt and labels.txt into")
	f.IntVar(&synthOpts.Nodes, "nodes", synthOpts.Nodes, "Number of nodes")
	f.IntVar(&synthOpts.Classes, "classes", synthOpts.Classes, "Number of classes")
	f.IntVar(&synthOpts.Features, "features", synthOpts.Features, "Number of binary features")
	f.Float64Var(&synthOpts.PIn, "p-in", synthOpts.PIn, "Edge probability within a class")
	f.Float64Var(&synthOpts.POut, "p-out", synthOpts.POut, "Edge probability across classes")
	f.Float64Var(&synthOpts.PActive, "p-active", synthOpts.PActive, "Probability that a class feature is set")
	f.Int64Var(&synthOpts.Seed, "seed", synthOpts.Seed, "Random seed")
	synthCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(synthCmd)
}
