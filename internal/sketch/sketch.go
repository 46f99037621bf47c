// Package sketch adapts scaled MinHash sketches as produced by
// sourmash-compatible tooling: loading signature files, selecting a sketch
// matching a template, and the set operations the gather engine needs.
//
// A scaled sketch keeps every hash h < 2^64 / scaled emitted from the k-mers
// of a sequence collection. Hashes are stored sorted and unique, so
// intersection and union are linear merges.
package sketch

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DNA is the hash function used by nucleotide sketches. Protein variants
// exist in signature files but the engine only selects what the template
// names.
const DNA = "DNA"

var (
	// ErrUnsupportedSignature means a signature file was readable but held
	// no sketch compatible with the requested template.
	ErrUnsupportedSignature = errors.New("signature contains no compatible sketch")

	// ErrIncompatible means two sketches cannot be combined because their
	// parameters (k, scaled, hash function) differ.
	ErrIncompatible = errors.New("sketches have incompatible parameters")
)

// Template selects a sketch out of a signature file. Two sketches are
// compatible iff every field matches.
type Template struct {
	Ksize        uint32 `json:"ksize"`
	Scaled       uint64 `json:"scaled"`
	HashFunction string `json:"hash_function"`
}

// NewTemplate returns a DNA template for the given k-mer size and scaled
// subsampling factor.
func NewTemplate(ksize uint32, scaled uint64) Template {
	return Template{Ksize: ksize, Scaled: scaled, HashFunction: DNA}
}

// MaxHash returns the largest hash value retained under this template.
func (t Template) MaxHash() uint64 {
	return MaxHashForScaled(t.Scaled)
}

// MaxHashForScaled converts a scaled factor to the hash-space cutoff,
// keeping every hash h <= 2^64 / scaled.
func MaxHashForScaled(scaled uint64) uint64 {
	if scaled <= 1 {
		return math.MaxUint64
	}
	return math.MaxUint64 / scaled
}

// ScaledForMaxHash is the inverse of MaxHashForScaled.
func ScaledForMaxHash(maxHash uint64) uint64 {
	if maxHash == 0 {
		return 0
	}
	return math.MaxUint64 / maxHash
}

// Sketch is one scaled MinHash sketch: a sorted, deduplicated set of 64-bit
// hash values plus the parameters it was built under. Sketches are immutable
// after construction except through Merge, which is only used on private
// copies (see Clone).
type Sketch struct {
	name         string
	filename     string
	ksize        uint32
	maxHash      uint64
	hashFunction string
	mins         []uint64
	abunds       []uint64
}

// New builds a sketch from a raw hash collection. Hashes are sorted,
// deduplicated, and clipped to the template's max hash.
func New(name string, tmpl Template, hashes []uint64) *Sketch {
	maxHash := tmpl.MaxHash()
	mins := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		if h <= maxHash {
			mins = append(mins, h)
		}
	}
	sort.Slice(mins, func(i, j int) bool { return mins[i] < mins[j] })
	mins = dedupSorted(mins)
	return &Sketch{
		name:         name,
		ksize:        tmpl.Ksize,
		maxHash:      maxHash,
		hashFunction: tmpl.HashFunction,
		mins:         mins,
	}
}

func dedupSorted(mins []uint64) []uint64 {
	if len(mins) < 2 {
		return mins
	}
	out := mins[:1]
	for _, h := range mins[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}

// Name returns the sketch's display name (may be empty).
func (s *Sketch) Name() string { return s.name }

// Filename returns the path recorded in the signature file, if any.
func (s *Sketch) Filename() string { return s.filename }

// Ksize returns the k-mer size the sketch was built with.
func (s *Sketch) Ksize() uint32 { return s.ksize }

// MaxHash returns the hash-space cutoff of the sketch.
func (s *Sketch) MaxHash() uint64 { return s.maxHash }

// Scaled returns the subsampling factor of the sketch.
func (s *Sketch) Scaled() uint64 { return ScaledForMaxHash(s.maxHash) }

// HashFunction returns the molecule/hash function tag of the sketch.
func (s *Sketch) HashFunction() string { return s.hashFunction }

// Cardinality returns the number of hashes in the sketch.
func (s *Sketch) Cardinality() int { return len(s.mins) }

// Mins returns the sorted hash values. Callers must not mutate the slice.
func (s *Sketch) Mins() []uint64 { return s.mins }

// Contains reports whether h is in the sketch.
func (s *Sketch) Contains(h uint64) bool {
	i := sort.Search(len(s.mins), func(i int) bool { return s.mins[i] >= h })
	return i < len(s.mins) && s.mins[i] == h
}

// Compatible reports whether the sketch matches every field of the template.
func (s *Sketch) Compatible(tmpl Template) bool {
	return s.ksize == tmpl.Ksize &&
		s.maxHash == tmpl.MaxHash() &&
		strings.EqualFold(s.hashFunction, tmpl.HashFunction)
}

func (s *Sketch) sameParams(o *Sketch) bool {
	return s.ksize == o.ksize &&
		s.maxHash == o.maxHash &&
		strings.EqualFold(s.hashFunction, o.hashFunction)
}

// Intersection returns the hashes shared between two compatible sketches and
// their count. The returned slice is sorted and freshly allocated.
func (s *Sketch) Intersection(o *Sketch) ([]uint64, uint64, error) {
	if !s.sameParams(o) {
		return nil, 0, errors.Wrapf(ErrIncompatible,
			"intersecting k=%d/%d scaled=%d/%d", s.ksize, o.ksize, s.Scaled(), o.Scaled())
	}
	var shared []uint64
	i, j := 0, 0
	for i < len(s.mins) && j < len(o.mins) {
		switch {
		case s.mins[i] < o.mins[j]:
			i++
		case s.mins[i] > o.mins[j]:
			j++
		default:
			shared = append(shared, s.mins[i])
			i++
			j++
		}
	}
	return shared, uint64(len(shared)), nil
}

// Merge folds another compatible sketch into this one (set union).
func (s *Sketch) Merge(o *Sketch) error {
	if !s.sameParams(o) {
		return errors.Wrapf(ErrIncompatible,
			"merging k=%d/%d scaled=%d/%d", s.ksize, o.ksize, s.Scaled(), o.Scaled())
	}
	merged := make([]uint64, 0, len(s.mins)+len(o.mins))
	i, j := 0, 0
	for i < len(s.mins) && j < len(o.mins) {
		switch {
		case s.mins[i] < o.mins[j]:
			merged = append(merged, s.mins[i])
			i++
		case s.mins[i] > o.mins[j]:
			merged = append(merged, o.mins[j])
			j++
		default:
			merged = append(merged, s.mins[i])
			i++
			j++
		}
	}
	merged = append(merged, s.mins[i:]...)
	merged = append(merged, o.mins[j:]...)
	s.mins = merged
	s.abunds = nil
	return nil
}

// Clone returns an independent copy of the sketch.
func (s *Sketch) Clone() *Sketch {
	c := *s
	c.mins = append([]uint64(nil), s.mins...)
	c.abunds = append([]uint64(nil), s.abunds...)
	return &c
}

// Select returns the first sketch compatible with the template, or nil.
func Select(sketches []*Sketch, tmpl Template) *Sketch {
	for _, s := range sketches {
		if s.Compatible(tmpl) {
			return s
		}
	}
	return nil
}
