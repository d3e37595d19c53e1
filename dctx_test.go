package vibezstd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// streamingFrame produces a frame with no content size in its header.
func streamingFrame(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := NewWriter(&buf)
	defer zw.Release()
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = GetFrameContentSize(buf.Bytes())
	require.Error(t, err, "streaming frames must not declare a content size")
	return buf.Bytes()
}

func TestDCtxDecompressKnownSize(t *testing.T) {
	data := bytes.Repeat([]byte("known size frame "), 400)
	compressed := Compress(nil, data)

	dctx := NewDCtx()
	defer dctx.Release()

	decompressed, err := dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// The context is reusable.
	decompressed, err = dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestDecompressUnknownSizeGrowth(t *testing.T) {
	data := bytes.Repeat([]byte("unknown size frame payload "), 4000)
	compressed := streamingFrame(t, data)

	// One-shot path.
	decompressed, err := Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// A tiny starting capacity forces the doubling loop through many rounds.
	dctx := NewDCtx()
	defer dctx.Release()
	decompressed, err = dctx.DecompressCapacity(nil, compressed, 1)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestInitialCapacityPrecedence(t *testing.T) {
	data := bytes.Repeat([]byte("capacity chain "), 100)
	compressed := streamingFrame(t, data)

	require.NoError(t, SetDefaultInitialCapacity(16))
	t.Cleanup(ResetDefaultInitialCapacity)
	require.Equal(t, 16, DefaultInitialCapacity())

	dctx := NewDCtx()
	defer dctx.Release()

	// Process-wide default applies when nothing overrides it.
	decompressed, err := dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// Per-context override.
	require.NoError(t, dctx.SetInitialCapacity(64))
	require.Equal(t, 64, dctx.InitialCapacity())
	decompressed, err = dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)

	// Per-call override wins over both.
	decompressed, err = dctx.DecompressCapacity(nil, compressed, 7)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestInitialCapacityValidation(t *testing.T) {
	err := SetDefaultInitialCapacity(0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "initial capacity must be positive (got 0)")

	dctx := NewDCtx()
	defer dctx.Release()

	err = dctx.SetInitialCapacity(-3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "initial capacity must be positive (got -3)")

	_, err = dctx.DecompressCapacity(nil, nil, -1)
	require.Error(t, err)
	require.True(t, IsParameterError(err))
}

func TestWindowLogMaxRejectsLargeWindows(t *testing.T) {
	// Not very compressible, so the frame needs a real window.
	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(i*2654435761 + i>>8)
	}
	compressed := Compress(nil, data)

	min, _, err := DParamBounds("window_log_max")
	require.NoError(t, err)

	dctx, err := NewDCtxParams(map[string]int{"window_log_max": min})
	require.NoError(t, err)
	defer dctx.Release()

	_, err = dctx.Decompress(nil, compressed)
	require.Error(t, err)

	// Raising the limit again makes the same frame decodable.
	require.NoError(t, dctx.Set("window_log_max", 31))
	decompressed, err := dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestDCtxUseDict(t *testing.T) {
	samples := dictSamples("dctx dict")
	dict := BuildDict(samples, 4*1024)
	require.NotEmpty(t, dict)

	cd, err := NewCDict(dict)
	require.NoError(t, err)
	defer cd.Release()
	dd, err := NewDDict(dict)
	require.NoError(t, err)
	defer dd.Release()

	data := []byte("dctx dict sample 7 plus trailing content")
	compressed := CompressDict(nil, data, cd)

	dctx := NewDCtx()
	defer dctx.Release()

	// Without a dictionary the mismatch is detected before any codec work.
	_, err = dctx.Decompress(nil, compressed)
	require.True(t, IsDictionaryMismatchError(err))

	require.NoError(t, dctx.UseDict(dd))
	decompressed, err := dctx.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}
