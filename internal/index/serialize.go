package index

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/luizirber/greyhound/internal/sketch"
)

// formatVersion tags the persisted record so incompatible readers fail
// loudly instead of misreading.
const formatVersion = 1

// revIndexRecord is the on-disk form of a RevIndex: a versioned JSON record
// wrapped in gzip. Postings are plain sorted id arrays so any implementation
// of the schema can read them; ref_sigs is never persisted.
type revIndexRecord struct {
	Version   int                 `json:"version"`
	HashToIdx map[uint64][]uint32 `json:"hash_to_idx"`
	SigFiles  []string            `json:"sig_files"`
	RefSigs   *struct{}           `json:"ref_sigs"`
	Template  sketch.Template     `json:"template"`
}

// Save writes the index through a gzip stream at the lowest compression
// level; index records are written once and read many times, so speed wins
// over ratio here.
func (ri *RevIndex) Save(w io.Writer) error {
	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	rec := revIndexRecord{
		Version:   formatVersion,
		HashToIdx: make(map[uint64][]uint32, len(ri.hashToIdx)),
		SigFiles:  ri.sigFiles,
		Template:  ri.template,
	}
	for hash, ids := range ri.hashToIdx {
		rec.HashToIdx[hash] = ids.ToArray()
	}

	if err := json.NewEncoder(gz).Encode(rec); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	return gz.Close()
}

// SaveFile persists the index at path.
func (ri *RevIndex) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving index to %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := ri.Save(w); err != nil {
		f.Close()
		return fmt.Errorf("saving index to %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("saving index to %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a persisted index. When queries are given, only hashes present
// in at least one query survive; the path list and template are unchanged.
// Loaded indexes never carry preloaded reference sketches.
func Load(path string, queries []*sketch.Sketch) (*RevIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", path, err)
	}

	var rec revIndexRecord
	if err := json.NewDecoder(gz).Decode(&rec); err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", path, err)
	}
	if rec.Version != formatVersion {
		return nil, fmt.Errorf("loading index from %s: unsupported format version %d", path, rec.Version)
	}

	var filter map[uint64]struct{}
	if len(queries) > 0 {
		filter = make(map[uint64]struct{})
		for _, q := range queries {
			for _, hash := range q.Mins() {
				filter[hash] = struct{}{}
			}
		}
	}

	mapping := make(hashToIdx, len(rec.HashToIdx))
	for hash, ids := range rec.HashToIdx {
		if filter != nil {
			if _, ok := filter[hash]; !ok {
				continue
			}
		}
		mapping[hash] = roaring.BitmapOf(ids...)
	}

	ri := &RevIndex{
		hashToIdx: mapping,
		sigFiles:  rec.SigFiles,
		template:  rec.Template,
	}
	ri.cache = newSketchCache()
	return ri, nil
}
