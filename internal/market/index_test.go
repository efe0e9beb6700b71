package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-risk-eval/backend/internal/store"
)

func writeBenchmarkCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchmarks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "market.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewIndex(db)
}

func TestLoadFromCSVSkipsHeaderAndCheapRows(t *testing.T) {
	index := newTestIndex(t)
	path := writeBenchmarkCSV(t, "description,unit_price,source\nLaptop Dock,49.99,catalog\nOffice Chair,120,catalog\nCheap Pen,0.25,catalog\n")

	loaded, err := index.LoadFromCSV(path, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, index.Count())
}

func TestLoadFromCSVMissingFile(t *testing.T) {
	index := newTestIndex(t)

	_, err := index.LoadFromCSV(filepath.Join(t.TempDir(), "missing.csv"), 1.0)
	assert.Error(t, err)

	_, err = index.LoadFromCSV("  ", 1.0)
	assert.Error(t, err)
}

func TestBestMatchExact(t *testing.T) {
	index := newTestIndex(t)
	path := writeBenchmarkCSV(t, "Laptop Dock,49.99,catalog\nOffice Chair,120,catalog\n")
	_, err := index.LoadFromCSV(path, 1.0)
	require.NoError(t, err)

	match, found := index.BestMatch("  laptop   dock ")
	require.True(t, found)
	assert.Equal(t, "Laptop Dock", match.Description)
	assert.Equal(t, 49.99, match.UnitPrice)
	assert.Equal(t, 1.0, match.Similarity)
}

func TestBestMatchFuzzy(t *testing.T) {
	index := newTestIndex(t)
	path := writeBenchmarkCSV(t, "Laptop Dock,49.99,catalog\nOffice Chair,120,catalog\n")
	_, err := index.LoadFromCSV(path, 1.0)
	require.NoError(t, err)

	match, found := index.BestMatch("office chairs")
	require.True(t, found)
	assert.Equal(t, "Office Chair", match.Description)
	assert.Greater(t, match.Similarity, 0.9)
}

func TestBestMatchNoCandidate(t *testing.T) {
	index := newTestIndex(t)
	path := writeBenchmarkCSV(t, "Laptop Dock,49.99,catalog\n")
	_, err := index.LoadFromCSV(path, 1.0)
	require.NoError(t, err)

	_, found := index.BestMatch("industrial centrifuge maintenance plan")
	assert.False(t, found)

	_, found = index.BestMatch("   ")
	assert.False(t, found)
}

func TestBestMatchRejectsDissimilarCandidates(t *testing.T) {
	index := newTestIndex(t)
	path := writeBenchmarkCSV(t, "Laptop Dock,49.99,catalog\n")
	_, err := index.LoadFromCSV(path, 1.0)
	require.NoError(t, err)

	// "office chair" sits inside the length window around "laptop dock"
	// but shares almost nothing with it.
	_, found := index.BestMatch("office chair")
	assert.False(t, found)
}

func TestLoadFromCSVResetsMatchCache(t *testing.T) {
	index := newTestIndex(t)
	first := writeBenchmarkCSV(t, "Laptop Dock,49.99,catalog\n")
	_, err := index.LoadFromCSV(first, 1.0)
	require.NoError(t, err)

	match, found := index.BestMatch("laptop dock")
	require.True(t, found)
	assert.Equal(t, 49.99, match.UnitPrice)

	second := writeBenchmarkCSV(t, "Laptop Dock,39.99,updated\n")
	_, err = index.LoadFromCSV(second, 1.0)
	require.NoError(t, err)

	match, found = index.BestMatch("laptop dock")
	require.True(t, found)
	assert.Equal(t, 39.99, match.UnitPrice)
	assert.Equal(t, "updated", match.Source)
}