// greyhound-server is the demo HTTP uploader backend: it loads a persisted
// reverse index once and answers gather requests over it.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/luizirber/greyhound/internal/index"
	"github.com/luizirber/greyhound/internal/server"
)

func main() {
	var (
		indexPath string
		bind      string
	)

	cmd := &cobra.Command{
		Use:           "greyhound-server",
		Short:         "Demo gather server over a persisted reverse index",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			log.Info().Str("path", indexPath).Msg("loading index")
			revindex, err := index.Load(indexPath, nil)
			if err != nil {
				return err
			}
			log.Info().
				Int("datasets", revindex.Datasets()).
				Int("hashes", revindex.DistinctHashes()).
				Str("bind", bind).
				Msg("serving")

			return server.New(revindex).Start(bind)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "persisted reverse index to serve")
	cmd.Flags().StringVar(&bind, "bind", ":8080", "listen address")
	_ = cmd.MarkFlagRequired("index")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}
