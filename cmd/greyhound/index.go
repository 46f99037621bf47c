package main

import (
	"github.com/spf13/cobra"

	"github.com/luizirber/greyhound/internal/config"
	"github.com/luizirber/greyhound/internal/gather"
	"github.com/luizirber/greyhound/internal/sketch"
)

func indexCmd() *cobra.Command {
	var (
		ksize   uint32
		scaled  uint64
		workers int
	)

	cmd := &cobra.Command{
		Use:   "index <OUTPUT> <SIGLIST>",
		Short: "Build and persist a reverse index from a list of reference signatures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := sketch.NewTemplate(ksize, scaled)
			return gather.BuildIndex(args[0], args[1], tmpl, workers)
		},
	}

	cmd.Flags().Uint32VarP(&ksize, "ksize", "k", config.Ksize(), "k-mer size")
	cmd.Flags().Uint64VarP(&scaled, "scaled", "s", config.Scaled(), "scaled subsampling factor")
	cmd.Flags().IntVar(&workers, "workers", config.Workers(), "parallel workers")
	return cmd
}
