package gather

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/luizirber/greyhound/internal/index"
	"github.com/luizirber/greyhound/internal/sketch"
)

// Options configures a batch gather run.
type Options struct {
	Ksize       uint32
	Scaled      uint64
	ThresholdBp uint64
	// OutDir receives one result file per query, named after the query's
	// basename, holding one match path per line.
	OutDir string
	// FromFile treats the siglist as a manifest of reference signatures and
	// builds the RevIndex in memory instead of loading a persisted one.
	FromFile bool
	// Lazy defers loading query sketches to the per-query task.
	Lazy bool
	// Preload materializes every reference sketch after the index is ready.
	Preload bool
	Workers int
}

// Run processes every query in the manifest against the references behind
// siglist. Queries are independent: a failure on one during gather is
// collected and reported while the rest of the batch continues. In eager
// mode, a query that fails to load or has an empty sketch stops the whole
// run before any gather starts.
func Run(queryManifest, siglist string, opts Options) error {
	tmpl := sketch.NewTemplate(opts.Ksize, opts.Scaled)

	log.Info().Str("manifest", queryManifest).Msg("loading queries")
	queryPaths, err := ReadManifest(queryManifest)
	if err != nil {
		return err
	}

	// Eager mode loads every query up front and shares one batch threshold,
	// the smallest of the per-query thresholds, which every query's gather
	// then uses. The threshold is not passed on to the index filter.
	var queries []*sketch.Sketch
	var batchThreshold uint64
	if !opts.Lazy {
		queries = make([]*sketch.Sketch, len(queryPaths))
		for i, qpath := range queryPaths {
			q, err := sketch.Load(qpath, tmpl)
			if err != nil {
				return err
			}
			t, err := thresholdFor(q, opts)
			if err != nil {
				return fmt.Errorf("query %s: %w", qpath, err)
			}
			if i == 0 || t < batchThreshold {
				batchThreshold = t
			}
			queries[i] = q
		}
		log.Info().Int("queries", len(queries)).Uint64("threshold", batchThreshold).Msg("loaded queries")
	}

	revindex, err := acquireIndex(siglist, tmpl, queries, opts)
	if err != nil {
		return err
	}
	log.Info().
		Int("datasets", revindex.Datasets()).
		Int("hashes", revindex.DistinctHashes()).
		Msg("index ready")

	if opts.Preload {
		log.Info().Msg("preloading reference sigs")
		if err := revindex.PreloadSigs(opts.Workers); err != nil {
			return err
		}
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", outDir, err)
	}

	var mu sync.Mutex
	var merr *multierror.Error
	g := new(errgroup.Group)
	g.SetLimit(normalizeWorkers(opts.Workers))
	for i, qpath := range queryPaths {
		var q *sketch.Sketch
		if queries != nil {
			q = queries[i]
		}
		g.Go(func() error {
			if err := gatherOne(revindex, qpath, q, tmpl, batchThreshold, outDir, opts); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("query %s: %w", qpath, err))
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers never return errors; failures are collected per query.
	_ = g.Wait()

	return merr.ErrorOrNil()
}

// acquireIndex loads a persisted RevIndex or builds one from a reference
// manifest. In eager mode the queries prune the index down to hashes a
// query could match.
func acquireIndex(siglist string, tmpl sketch.Template, queries []*sketch.Sketch, opts Options) (*index.RevIndex, error) {
	if opts.FromFile {
		refPaths, err := ReadManifest(siglist)
		if err != nil {
			return nil, err
		}
		log.Info().Int("references", len(refPaths)).Msg("building index from siglist")
		return index.Build(refPaths, tmpl, index.BuildOptions{
			Queries: queries,
			Workers: opts.Workers,
		})
	}
	log.Info().Str("path", siglist).Msg("loading index")
	return index.Load(siglist, queries)
}

// gatherOne runs the gather loop for a single query and writes its matches.
func gatherOne(revindex *index.RevIndex, qpath string, q *sketch.Sketch, tmpl sketch.Template, threshold uint64, outDir string, opts Options) error {
	if q == nil {
		// Lazy mode: load here, skip empty queries, use this query's own
		// threshold instead of the batch one.
		var err error
		q, err = sketch.Load(qpath, tmpl)
		if err != nil {
			return err
		}
		if q.Cardinality() == 0 {
			log.Warn().Str("query", qpath).Msg("empty query sketch, skipping")
			return nil
		}
		if threshold, err = thresholdFor(q, opts); err != nil {
			return err
		}
	}

	counter := revindex.CounterForQuery(q)
	log.Info().Str("query", qpath).Int("candidates", counter.Len()).Msg("gathering")

	matches, err := revindex.Gather(counter, threshold, q)
	if err != nil {
		return err
	}

	outPath := filepath.Join(outDir, filepath.Base(qpath))
	if err := writeMatches(outPath, matches); err != nil {
		return err
	}
	log.Info().Str("query", qpath).Int("matches", len(matches)).Msg("gather done")
	return nil
}

func writeMatches(path string, matches []index.GatherResult) error {
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.Filename)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}
	return nil
}

// thresholdFor converts the base-pair threshold into hash-count units for
// one query.
func thresholdFor(q *sketch.Sketch, opts Options) (uint64, error) {
	if q.Cardinality() == 0 {
		return 0, fmt.Errorf("empty query sketch")
	}
	return opts.ThresholdBp / (uint64(q.Cardinality()) * opts.Scaled), nil
}
