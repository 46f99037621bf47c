package sketch

import (
	"bufio"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Signature files follow the sourmash JSON layout: a top-level array of
// signature records, each carrying one or more sketches. Files may be plain
// or gzip-compressed; compression is sniffed from the magic bytes.

const signatureClass = "sourmash_signature"

type signatureRecord struct {
	Class        string        `json:"class"`
	Email        string        `json:"email"`
	HashFunction string        `json:"hash_function"`
	Filename     string        `json:"filename"`
	Name         string        `json:"name"`
	License      string        `json:"license"`
	Signatures   []sketchEntry `json:"signatures"`
	Version      float64       `json:"version"`
}

type sketchEntry struct {
	Num        uint32   `json:"num"`
	Ksize      uint32   `json:"ksize"`
	Seed       uint64   `json:"seed"`
	MaxHash    uint64   `json:"max_hash"`
	Mins       []uint64 `json:"mins"`
	Md5sum     string   `json:"md5sum,omitempty"`
	Abundances []uint64 `json:"abundances,omitempty"`
	Molecule   string   `json:"molecule"`
}

// FromReader parses a signature stream and returns every sketch it holds,
// in file order. The reader must carry uncompressed JSON.
func FromReader(r io.Reader) ([]*Sketch, error) {
	var records []signatureRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decoding signature")
	}

	var sketches []*Sketch
	for _, rec := range records {
		for _, entry := range rec.Signatures {
			// sourmash writes mins sorted; don't trust other writers.
			if !sort.SliceIsSorted(entry.Mins, func(i, j int) bool { return entry.Mins[i] < entry.Mins[j] }) {
				sort.Slice(entry.Mins, func(i, j int) bool { return entry.Mins[i] < entry.Mins[j] })
			}
			sketches = append(sketches, &Sketch{
				name:         rec.Name,
				filename:     rec.Filename,
				ksize:        entry.Ksize,
				maxHash:      entry.MaxHash,
				hashFunction: entry.Molecule,
				mins:         entry.Mins,
				abunds:       entry.Abundances,
			})
		}
	}
	return sketches, nil
}

// FromPath loads every sketch from a signature file, transparently
// decompressing gzip.
func FromPath(path string) ([]*Sketch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening signature %s", path)
	}
	defer f.Close()

	r, err := maybeGunzip(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading signature %s", path)
	}

	sketches, err := FromReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing signature %s", path)
	}
	return sketches, nil
}

// Load returns the template-compatible sketch from a signature file, or
// ErrUnsupportedSignature if the file holds none.
func Load(path string, tmpl Template) (*Sketch, error) {
	sketches, err := FromPath(path)
	if err != nil {
		return nil, err
	}
	mh := Select(sketches, tmpl)
	if mh == nil {
		return nil, errors.Wrapf(ErrUnsupportedSignature,
			"%s (want k=%d scaled=%d %s)", path, tmpl.Ksize, tmpl.Scaled, tmpl.HashFunction)
	}
	return mh, nil
}

// maybeGunzip sniffs the gzip magic and wraps the reader accordingly.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

// Write serializes sketches as one signature record per sketch onto w,
// in the sourmash JSON layout.
func Write(w io.Writer, sketches ...*Sketch) error {
	records := make([]signatureRecord, 0, len(sketches))
	for _, s := range sketches {
		records = append(records, signatureRecord{
			Class:        signatureClass,
			HashFunction: "0.murmur64",
			Filename:     s.filename,
			Name:         s.name,
			License:      "CC0",
			Signatures: []sketchEntry{{
				Ksize:      s.ksize,
				MaxHash:    s.maxHash,
				Mins:       s.mins,
				Abundances: s.abunds,
				Molecule:   s.hashFunction,
			}},
			Version: 0.4,
		})
	}
	if err := json.NewEncoder(w).Encode(records); err != nil {
		return errors.Wrap(err, "encoding signature")
	}
	return nil
}

// Save writes sketches to a signature file at path.
func Save(path string, sketches ...*Sketch) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating signature %s", path)
	}
	if err := Write(f, sketches...); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing signature %s", path)
	}
	return f.Close()
}
