// Package index implements the inverted index at the heart of greyhound:
// a mapping from each sketch hash to the set of reference datasets that
// contain it, plus the gather loop that greedily decomposes a query into
// the references explaining it.
package index

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/luizirber/greyhound/internal/sketch"
)

// ErrSimilarityUnsupported is returned by Search when similarity mode is
// requested; the mode is declared but its threshold semantics are not
// defined yet.
var ErrSimilarityUnsupported = errors.New("similarity search is not supported")

// hashToIdx maps a sketch hash to the set of dataset ids containing it.
// Dataset ids are dense positions into sigFiles, so a roaring bitmap keeps
// the postings compact.
type hashToIdx map[uint64]*roaring.Bitmap

// sketchCacheSize bounds the reference sketches kept in memory on the
// non-preload gather path. Best matches repeat across queries, so even a
// small cache removes most repeated file loads.
const sketchCacheSize = 128

// progressInterval controls how often the build logs progress.
const progressInterval = 1000

// RevIndex is the inverted index over a set of reference sketches. It is
// immutable once observable and safe to share across any number of readers.
type RevIndex struct {
	hashToIdx hashToIdx
	sigFiles  []string
	refSigs   []*sketch.Sketch // nil unless preloaded
	template  sketch.Template

	cache *lru.Cache[uint32, *sketch.Sketch]
}

// BuildOptions tunes RevIndex construction.
type BuildOptions struct {
	// Threshold is the run's threshold in hash-count units. A non-zero value
	// turns off the union-query fast path; it does not change which hashes
	// are retained.
	Threshold uint64
	// Queries restricts the index to hashes present in at least one query.
	Queries []*sketch.Sketch
	// KeepSigs materializes every reference sketch into memory.
	KeepSigs bool
	// Workers bounds the parallel fan-out; zero means GOMAXPROCS.
	Workers int
}

// Build constructs a RevIndex from an ordered list of reference signature
// paths. Each path's position is its dataset id. References holding no
// template-compatible sketch are skipped; any I/O or parse failure aborts
// the whole build.
func Build(paths []string, tmpl sketch.Template, opts BuildOptions) (*RevIndex, error) {
	// With no threshold the queries can be merged up front, trading
	// |refs| x |queries| intersections for |refs|. The retained hash set
	// is identical: sketch(d) n (U queries).
	var mergedQuery *sketch.Sketch
	if len(opts.Queries) > 0 && opts.Threshold == 0 {
		merged := opts.Queries[0].Clone()
		for _, q := range opts.Queries[1:] {
			if err := merged.Merge(q); err != nil {
				return nil, fmt.Errorf("merging queries: %w", err)
			}
		}
		mergedQuery = merged
	}

	workers := normalizeWorkers(opts.Workers)
	partials := make(chan hashToIdx, workers)

	global := make(hashToIdx)
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		for part := range partials {
			global = mergeHashToIdx(global, part)
		}
	}()

	var processed atomic.Uint64
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for datasetID, path := range paths {
		g.Go(func() error {
			if n := processed.Add(1); n%progressInterval == 0 {
				log.Info().Uint64("processed", n).Msg("processed reference sigs")
			}

			sketches, err := sketch.FromPath(path)
			if err != nil {
				return fmt.Errorf("processing %s: %w", path, err)
			}
			searchMh := sketch.Select(sketches, tmpl)
			if searchMh == nil {
				// No compatible sketch: the dataset contributes nothing.
				log.Debug().Str("path", path).Msg("no compatible sketch, skipping")
				return nil
			}

			local := make(hashToIdx)
			addTo := func(matched []uint64, intersection uint64) {
				// Non-empty intersections are always retained, whatever
				// the threshold; an empty one contributes nothing.
				if len(matched) == 0 && intersection <= opts.Threshold {
					return
				}
				for _, hash := range matched {
					ids, ok := local[hash]
					if !ok {
						ids = roaring.New()
						local[hash] = ids
					}
					ids.Add(uint32(datasetID))
				}
			}

			switch {
			case mergedQuery != nil:
				matched, n, err := mergedQuery.Intersection(searchMh)
				if err != nil {
					return fmt.Errorf("processing %s: %w", path, err)
				}
				addTo(matched, n)
			case len(opts.Queries) > 0:
				for _, q := range opts.Queries {
					matched, n, err := q.Intersection(searchMh)
					if err != nil {
						return fmt.Errorf("processing %s: %w", path, err)
					}
					addTo(matched, n)
				}
			default:
				mins := searchMh.Mins()
				addTo(mins, uint64(len(mins)))
			}

			if len(local) > 0 {
				partials <- local
			}
			return nil
		})
	}

	err := g.Wait()
	close(partials)
	<-merged
	if err != nil {
		return nil, err
	}

	ri := &RevIndex{
		hashToIdx: global,
		sigFiles:  append([]string(nil), paths...),
		template:  tmpl,
	}
	ri.cache = newSketchCache()

	if opts.KeepSigs {
		if err := ri.PreloadSigs(workers); err != nil {
			return nil, err
		}
	}
	return ri, nil
}

// mergeHashToIdx folds the smaller map into the larger one, unioning the
// postings on collision, and returns the survivor.
func mergeHashToIdx(a, b hashToIdx) hashToIdx {
	small, large := a, b
	if len(a) > len(b) {
		small, large = b, a
	}
	for hash, ids := range small {
		if existing, ok := large[hash]; ok {
			existing.Or(ids)
		} else {
			large[hash] = ids
		}
	}
	return large
}

func newSketchCache() *lru.Cache[uint32, *sketch.Sketch] {
	cache, err := lru.New[uint32, *sketch.Sketch](sketchCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return cache
}

func normalizeWorkers(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// PreloadSigs materializes every reference sketch into memory, in parallel.
// References without a compatible sketch stay nil; their ids never appear in
// the index so the gather loop never fetches them.
func (ri *RevIndex) PreloadSigs(workers int) error {
	refSigs := make([]*sketch.Sketch, len(ri.sigFiles))
	g := new(errgroup.Group)
	g.SetLimit(normalizeWorkers(workers))
	for i, path := range ri.sigFiles {
		g.Go(func() error {
			sketches, err := sketch.FromPath(path)
			if err != nil {
				return fmt.Errorf("preloading %s: %w", path, err)
			}
			refSigs[i] = sketch.Select(sketches, ri.template)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ri.refSigs = refSigs
	return nil
}

// Template returns the sketch template the index was built under.
func (ri *RevIndex) Template() sketch.Template { return ri.template }

// SigFiles returns the ordered reference paths; position is dataset id.
// Callers must not mutate the slice.
func (ri *RevIndex) SigFiles() []string { return ri.sigFiles }

// Datasets returns the number of references in the index.
func (ri *RevIndex) Datasets() int { return len(ri.sigFiles) }

// DistinctHashes returns the number of distinct hashes mapped.
func (ri *RevIndex) DistinctHashes() int { return len(ri.hashToIdx) }

// CounterForQuery counts, per dataset, how many of the query's hashes the
// dataset contributes. Datasets sharing nothing with the query are absent.
func (ri *RevIndex) CounterForQuery(query *sketch.Sketch) *Counter {
	counter := NewCounter()
	for _, hash := range query.Mins() {
		if ids, ok := ri.hashToIdx[hash]; ok {
			it := ids.Iterator()
			for it.HasNext() {
				counter.Add(it.Next())
			}
		}
	}
	return counter
}

// Counter sums contributions from every entry of the index, for whole-index
// statistics and the demo search path.
func (ri *RevIndex) Counter() *Counter {
	counter := NewCounter()
	for _, ids := range ri.hashToIdx {
		it := ids.Iterator()
		for it.HasNext() {
			counter.Add(it.Next())
		}
	}
	return counter
}

// Search returns the paths of datasets whose count is at least threshold,
// in descending count order (ties by ascending dataset id). Similarity mode
// is reserved and rejected.
func (ri *RevIndex) Search(counter *Counter, similarity bool, threshold uint64) ([]string, error) {
	if similarity {
		return nil, ErrSimilarityUnsupported
	}
	var matches []string
	for _, entry := range counter.MostCommon() {
		if entry.Count < threshold {
			break
		}
		matches = append(matches, ri.sigFiles[entry.DatasetID])
	}
	return matches, nil
}

// fetchSketch returns the template-compatible sketch for a dataset, from the
// preloaded set when present, otherwise through the LRU-backed file load.
func (ri *RevIndex) fetchSketch(datasetID uint32) (*sketch.Sketch, error) {
	if ri.refSigs != nil {
		if mh := ri.refSigs[datasetID]; mh != nil {
			return mh, nil
		}
	}
	if mh, ok := ri.cache.Get(datasetID); ok {
		return mh, nil
	}
	mh, err := sketch.Load(ri.sigFiles[datasetID], ri.template)
	if err != nil {
		return nil, err
	}
	ri.cache.Add(datasetID, mh)
	return mh, nil
}
