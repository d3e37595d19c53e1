package vibezstd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func cacheStatsFor(role string, dictID uint32) (ContextCacheKeyStats, bool) {
	for _, s := range ContextCacheStats() {
		if s.Role == role && s.DictID == dictID {
			return s, true
		}
	}
	return ContextCacheKeyStats{}, false
}

func TestContextCacheKeys(t *testing.T) {
	ClearContextCache()

	data := bytes.Repeat([]byte("cache keyed contexts "), 100)
	compressed := Compress(nil, data)
	decompressed, err := Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	s, ok := cacheStatsFor("compress", 0)
	require.True(t, ok)
	require.GreaterOrEqual(t, s.Created, int64(1))

	s, ok = cacheStatsFor("decompress", 0)
	require.True(t, ok)
	require.GreaterOrEqual(t, s.Created, int64(1))
}

func TestContextCacheDictKeys(t *testing.T) {
	ClearContextCache()

	dictA := BuildDict(dictSamples("cache dict a"), 8*1024)
	require.NotEmpty(t, dictA)
	dictB := BuildDict(dictSamples("cache dict b"), 8*1024)
	require.NotEmpty(t, dictB)

	cdA, err := NewCDict(dictA)
	require.NoError(t, err)
	defer cdA.Release()
	cdB, err := NewCDict(dictB)
	require.NoError(t, err)
	defer cdB.Release()
	require.NotEqual(t, cdA.ID(), cdB.ID())

	ddA, err := NewDDict(dictA)
	require.NoError(t, err)
	defer ddA.Release()

	data := bytes.Repeat([]byte("cache dict a sample 5 "), 100)
	frame := CompressDict(nil, data, cdA)
	CompressDict(nil, data, cdB)
	decompressed, err := DecompressDict(nil, frame, ddA)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	for _, want := range []struct {
		role   string
		dictID uint32
	}{
		{"compress", cdA.ID()},
		{"compress", cdB.ID()},
		{"decompress", ddA.ID()},
	} {
		s, ok := cacheStatsFor(want.role, want.dictID)
		require.True(t, ok, "missing cache key %s/%d", want.role, want.dictID)
		require.GreaterOrEqual(t, s.Created, int64(1))
	}
}

func TestClearContextCache(t *testing.T) {
	Compress(nil, []byte("populate the cache"))
	require.NotEmpty(t, ContextCacheStats())

	ClearContextCache()
	require.Empty(t, ContextCacheStats())

	// The cache repopulates transparently.
	data := []byte("works after clearing")
	decompressed, err := Decompress(nil, Compress(nil, data))
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}
