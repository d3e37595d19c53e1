package vibezstd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCCtxCompressRoundTrip(t *testing.T) {
	cctx, err := NewCCtxParams(map[string]int{
		"compression_level": 19,
		"checksum_flag":     1,
	})
	require.NoError(t, err)
	defer cctx.Release()

	data := bytes.Repeat([]byte("context round trip "), 300)
	compressed, err := cctx.Compress(nil, data)
	require.NoError(t, err)

	decompressed, err := Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestNewCCtxParamsInvalid(t *testing.T) {
	_, err := NewCCtxParams(map[string]int{"no_such_param": 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown parameter: no_such_param")

	_, err = NewCCtxParams(map[string]int{"compression_level": 1 << 30})
	require.Error(t, err)
	require.Contains(t, err.Error(), "compression_level must be between")
}

func TestCCtxReuseAcrossResets(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	require.NoError(t, cctx.Set("compression_level", 9))

	data := bytes.Repeat([]byte("reusable context "), 200)
	for i := 0; i < 3; i++ {
		compressed, err := cctx.Compress(nil, data)
		require.NoError(t, err)

		decompressed, err := Decompress(nil, compressed)
		require.NoError(t, err)
		require.Equal(t, data, decompressed)

		require.NoError(t, cctx.Reset(ZSTD_reset_session_only))
	}
}

func TestCCtxUseDict(t *testing.T) {
	samples := dictSamples("cctx dict")
	dict := BuildDict(samples, 4*1024)
	require.NotEmpty(t, dict)

	cd, err := NewCDict(dict)
	require.NoError(t, err)
	defer cd.Release()
	dd, err := NewDDict(dict)
	require.NoError(t, err)
	defer dd.Release()

	cctx := NewCCtx()
	defer cctx.Release()
	require.NoError(t, cctx.UseDict(cd))

	data := []byte("cctx dict sample 42 and some more text")
	compressed, err := cctx.Compress(nil, data)
	require.NoError(t, err)

	require.Equal(t, cd.ID(), GetDictIDFromFrame(compressed))

	decompressed, err := DecompressDict(nil, compressed, dd)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// Session reset detaches the dictionary.
	require.NoError(t, cctx.Reset(ZSTD_reset_session_only))
	compressed, err = cctx.Compress(nil, data)
	require.NoError(t, err)
	require.Zero(t, GetDictIDFromFrame(compressed))
}

func TestCCtxDCtxPrefix(t *testing.T) {
	prefix := bytes.Repeat([]byte("shared prefix material "), 50)
	data := append([]byte(nil), prefix[:200]...)
	data = append(data, []byte("payload referencing the prefix")...)

	cctx := NewCCtx()
	defer cctx.Release()
	require.NoError(t, cctx.UsePrefix(prefix))

	compressed, err := cctx.Compress(nil, data)
	require.NoError(t, err)

	dctx := NewDCtx()
	defer dctx.Release()
	require.NoError(t, dctx.UsePrefix(prefix))

	decompressed, err := dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// The prefix was consumed by that frame; plain frames still work.
	compressed2, err := cctx.Compress(nil, data)
	require.NoError(t, err)
	decompressed2, err := dctx.Decompress(nil, compressed2)
	require.NoError(t, err)
	require.Equal(t, data, decompressed2)
}

func TestCCtxPledgedSrcSize(t *testing.T) {
	data := []byte("pledged payload")

	cctx := NewCCtx()
	defer cctx.Release()

	require.NoError(t, cctx.SetPledgedSrcSize(uint64(len(data))))
	compressed, err := cctx.Compress(nil, data)
	require.NoError(t, err)

	size, err := GetFrameContentSize(compressed)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), size)

	// A broken pledge is a codec error.
	require.NoError(t, cctx.Reset(ZSTD_reset_session_only))
	require.NoError(t, cctx.SetPledgedSrcSize(uint64(len(data)+10)))
	_, err = cctx.Compress(nil, data)
	require.Error(t, err)

	// The context survives the failed frame.
	compressed, err = cctx.Compress(nil, data)
	require.NoError(t, err)
	decompressed, err := Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestCCtxParamsSnapshot(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	require.Empty(t, cctx.Params())

	// Aliases report under their canonical names.
	require.NoError(t, cctx.Set("level", 7))
	require.NoError(t, cctx.SetBool("checksum", true))
	require.NoError(t, cctx.Set("window_log", 20))
	require.Equal(t, map[string]int{
		"compression_level": 7,
		"checksum_flag":     1,
		"window_log":        20,
	}, cctx.Params())

	// A session reset keeps parameters; a parameter reset clears them.
	require.NoError(t, cctx.Reset(ZSTD_reset_session_only))
	require.Equal(t, 7, cctx.Params()["compression_level"])
	require.NoError(t, cctx.Reset(ZSTD_reset_parameters))
	require.Empty(t, cctx.Params())
}

func TestEstimateContextMemory(t *testing.T) {
	small := EstimateCCtxMemory(1)
	big := EstimateCCtxMemory(19)
	require.Greater(t, small, uint64(0))
	require.GreaterOrEqual(t, big, small)

	require.Greater(t, EstimateDCtxMemory(), uint64(0))
}
