package gather

import (
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/luizirber/greyhound/internal/index"
	"github.com/luizirber/greyhound/internal/sketch"
)

// BuildIndex builds a RevIndex from a manifest of reference signatures and
// persists it at output. The full index is kept: no query filter, zero
// threshold.
func BuildIndex(output, siglist string, tmpl sketch.Template, workers int) error {
	refPaths, err := ReadManifest(siglist)
	if err != nil {
		return err
	}
	log.Info().Int("references", len(refPaths)).Msg("building index")

	revindex, err := index.Build(refPaths, tmpl, index.BuildOptions{Workers: workers})
	if err != nil {
		return err
	}
	log.Info().
		Int("datasets", revindex.Datasets()).
		Int("hashes", revindex.DistinctHashes()).
		Str("output", output).
		Msg("saving index")

	return revindex.SaveFile(output)
}

func normalizeWorkers(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}
