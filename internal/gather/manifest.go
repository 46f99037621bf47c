// Package gather orchestrates the gather algorithm over batches of queries:
// loading manifests, acquiring a RevIndex (persisted or built in memory),
// and fanning out per-query gather runs.
package gather

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadManifest reads a plain-text manifest: one path per line, no header,
// no quoting. Blank lines are skipped.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return paths, nil
}
