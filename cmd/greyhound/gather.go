package main

import (
	"github.com/spf13/cobra"

	"github.com/luizirber/greyhound/internal/config"
	"github.com/luizirber/greyhound/internal/gather"
)

func gatherCmd() *cobra.Command {
	var opts gather.Options

	cmd := &cobra.Command{
		Use:   "gather <QUERY_MANIFEST> <SIGLIST>",
		Short: "Decompose query sketches against a reverse index",
		Long: `Decompose each query in QUERY_MANIFEST into the set of reference
datasets best explaining it.

SIGLIST is a persisted index produced by "greyhound index", or, with
--from-file, a manifest of reference signatures to index in memory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gather.Run(args[0], args[1], opts)
		},
	}

	cmd.Flags().Uint32VarP(&opts.Ksize, "ksize", "k", config.Ksize(), "k-mer size")
	cmd.Flags().Uint64VarP(&opts.Scaled, "scaled", "s", config.Scaled(), "scaled subsampling factor")
	cmd.Flags().Uint64VarP(&opts.ThresholdBp, "threshold-bp", "t", config.ThresholdBp(), "minimum overlap in base pairs")
	cmd.Flags().StringVarP(&opts.OutDir, "output", "o", "outputs", "directory for per-query result files")
	cmd.Flags().BoolVar(&opts.FromFile, "from-file", false, "treat SIGLIST as a manifest of reference signatures")
	cmd.Flags().BoolVar(&opts.Lazy, "lazy", false, "defer loading query sketches to the per-query task")
	cmd.Flags().BoolVar(&opts.Preload, "preload", false, "materialize reference sketches in memory")
	cmd.Flags().IntVar(&opts.Workers, "workers", config.Workers(), "parallel workers")
	return cmd
}
