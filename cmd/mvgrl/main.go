package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "mvgrl",
	Short: "Contrastive multi-view graph representation learning",
	Long: `mvgrl pre-trains two graph convolutional encoders, one over the
normalised adjacency and one over its personalised-PageRank diffusion, by
contrasting node and graph summaries across the views. Training runs on
attention-selected significant nodes of random graph windows. The frozen
embeddings are scored with a logistic-regression probe.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	fs := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)
}

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		klog.Flush()
		os.Exit(1)
	}
}
