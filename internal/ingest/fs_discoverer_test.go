package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverPathHashesContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	c := filepath.Join(dir, "c.pdf")
	require.NoError(t, os.WriteFile(a, []byte("invoice body"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("invoice body"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("invoice body!"), 0o644))

	d := NewFSDiscoverer(nil)
	ctx := context.Background()

	docA, err := d.DiscoverPath(ctx, a)
	require.NoError(t, err)
	docB, err := d.DiscoverPath(ctx, b)
	require.NoError(t, err)
	docC, err := d.DiscoverPath(ctx, c)
	require.NoError(t, err)

	assert.Equal(t, docA.ContentHash, docB.ContentHash, "identical bytes hash identically regardless of name")
	assert.NotEqual(t, docA.ContentHash, docC.ContentHash, "one byte of difference changes the hash")
	assert.NotEqual(t, docA.ID, docB.ID, "identity is per discovery, not per content")
	assert.Equal(t, "pdf", docA.FileExt)
	assert.Equal(t, int64(12), docA.Size)
}

func TestDiscoverPathRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	d := NewFSDiscoverer(nil)
	_, err := d.DiscoverPath(context.Background(), path)
	require.Error(t, err)
}

func TestDiscoverDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.PNG"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cache", "hidden.pdf"), []byte("h"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.csv"), []byte("v,1"), 0o644))

	d := NewFSDiscoverer(nil)
	docs, stats, err := d.DiscoverDirectory(context.Background(), dir, true)
	require.NoError(t, err)

	assert.Len(t, docs, 3, "a.pdf, b.PNG, sub/c.csv")
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Zero(t, stats.Failed)

	exts := map[string]int{}
	for _, doc := range docs {
		exts[doc.FileExt]++
	}
	assert.Equal(t, map[string]int{"pdf": 1, "png": 1, "csv": 1}, exts, "extensions are normalized to lowercase")
}

func TestDiscoverDirectoryIncludesHiddenWhenAsked(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cache", "hidden.pdf"), []byte("h"), 0o644))

	d := NewFSDiscoverer(nil)
	docs, _, err := d.DiscoverDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
