package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizirber/greyhound/internal/index"
	"github.com/luizirber/greyhound/internal/sketch"
)

func buildTestIndex(t *testing.T, refs ...[]uint64) *index.RevIndex {
	t.Helper()
	tmpl := sketch.NewTemplate(31, 1)
	dir := t.TempDir()
	paths := make([]string, len(refs))
	for i, mins := range refs {
		name := fmt.Sprintf("ref%d", i)
		paths[i] = filepath.Join(dir, name+".sig")
		require.NoError(t, sketch.Save(paths[i], sketch.New(name, tmpl, mins)))
	}
	ri, err := index.Build(paths, tmpl, index.BuildOptions{})
	require.NoError(t, err)
	return ri
}

func signatureBody(t *testing.T, name string, mins []uint64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, sketch.Write(&buf, sketch.New(name, sketch.NewTemplate(31, 1), mins)))
	return &buf
}

func TestGatherEndpoint(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}, []uint64{100, 200}))

	req := httptest.NewRequest(http.MethodPost, "/gather", signatureBody(t, "query", []uint64{1, 2, 3}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var results []index.GatherResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "ref0", results[0].Name)
	assert.Equal(t, 1.0, results[0].FOrigQuery)
}

func TestGatherEndpointNoMatches(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}))

	req := httptest.NewRequest(http.MethodPost, "/gather", signatureBody(t, "query", []uint64{500}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGatherEndpointBadBody(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}))

	req := httptest.NewRequest(http.MethodPost, "/gather", bytes.NewBufferString("not a signature"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatherEndpointIncompatibleSketch(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}))

	var buf bytes.Buffer
	require.NoError(t, sketch.Write(&buf, sketch.New("query", sketch.NewTemplate(21, 1), []uint64{1})))
	req := httptest.NewRequest(http.MethodPost, "/gather", &buf)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}, []uint64{1, 2}))

	req := httptest.NewRequest(http.MethodGet, "/stats?threshold=3", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var matches []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0], "ref0")
}

func TestHealthz(t *testing.T) {
	e := New(buildTestIndex(t, []uint64{1, 2, 3}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats["datasets"])
	assert.Equal(t, 3, stats["hashes"])
}
