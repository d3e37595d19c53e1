package vibezstd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamCompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte("stream helpers "), 2000)

	var compressed bytes.Buffer
	require.NoError(t, StreamCompress(&compressed, bytes.NewReader(data)))

	var decompressed bytes.Buffer
	require.NoError(t, StreamDecompress(&decompressed, bytes.NewReader(compressed.Bytes())))
	require.Equal(t, data, decompressed.Bytes())
}

func TestCompressDecompressFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.txt")
	zstPath := filepath.Join(dir, "input.txt.zst")
	outPath := filepath.Join(dir, "nested", "output.txt")

	data := bytes.Repeat([]byte("file round trip "), 3000)
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	require.NoError(t, CompressFile(srcPath, zstPath))
	compressed, err := os.ReadFile(zstPath)
	require.NoError(t, err)
	require.True(t, IsCompressed(compressed))

	require.NoError(t, DecompressFile(zstPath, outPath))
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, data, out)

	err = CompressFile(filepath.Join(dir, "missing.txt"), zstPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open source file")
}

func TestCompressString(t *testing.T) {
	compressed := CompressString("string helpers")
	s, err := DecompressString(compressed)
	require.NoError(t, err)
	require.Equal(t, "string helpers", s)

	_, err = DecompressString([]byte("not compressed"))
	require.Error(t, err)
}

func TestCompressReader(t *testing.T) {
	data := bytes.Repeat([]byte("pull-mode compression "), 1000)

	cr := NewCompressReader(bytes.NewReader(data))
	compressed, err := io.ReadAll(cr)
	require.NoError(t, err)
	require.NoError(t, cr.Close())

	decompressed, err := Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestDecompressWriter(t *testing.T) {
	data := bytes.Repeat([]byte("push-mode decompression "), 1000)
	compressed := Compress(nil, data)

	var out bytes.Buffer
	dw := NewDecompressWriter(&out)
	_, err := dw.Write(compressed)
	require.NoError(t, err)
	require.NoError(t, dw.Close())
	require.Equal(t, data, out.Bytes())
}

func TestDecompressWriterCorruptInput(t *testing.T) {
	var out bytes.Buffer
	dw := NewDecompressWriter(&out)

	// Once the decode side fails, further writes must error out instead of
	// blocking on the pipe.
	garbage := bytes.Repeat([]byte("not a zstd stream "), 64)
	var werr error
	for i := 0; i < 16 && werr == nil; i++ {
		_, werr = dw.Write(garbage)
	}
	require.Error(t, werr)
	require.Error(t, dw.Close())
}

func TestCompressWithContext(t *testing.T) {
	data := bytes.Repeat([]byte("context helpers "), 500)

	compressed, err := CompressWithContext(context.Background(), nil, data)
	require.NoError(t, err)

	decompressed, err := DecompressWithContext(context.Background(), nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}

func TestBatchCompressDecompress(t *testing.T) {
	var inputs [][]byte
	for i := 0; i < 20; i++ {
		inputs = append(inputs, bytes.Repeat([]byte(fmt.Sprintf("batch item %d ", i)), 50))
	}

	compressed := BatchCompress(inputs)
	require.Len(t, compressed, len(inputs))

	decompressed, err := BatchDecompress(compressed)
	require.NoError(t, err)
	require.Equal(t, inputs, decompressed)

	compressed[3] = []byte("corrupted entry")
	_, err = BatchDecompress(compressed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decompress item 3")
}

func TestThreadSafeWriter(t *testing.T) {
	var buf bytes.Buffer
	tsw := NewThreadSafeWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk := bytes.Repeat([]byte(fmt.Sprintf("writer %d ", i)), 100)
			_, err := tsw.Write(chunk)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, tsw.Close())

	_, err := tsw.Write([]byte("late"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "writer is closed")

	decompressed, err := Decompress(nil, buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 8*9*100, len(decompressed))
}

func TestThreadSafeReader(t *testing.T) {
	data := bytes.Repeat([]byte("shared reader "), 1000)
	compressed := Compress(nil, data)

	tsr := NewThreadSafeReader(bytes.NewReader(compressed))
	out, err := io.ReadAll(tsr)
	require.NoError(t, err)
	require.Equal(t, data, out)
	require.NoError(t, tsr.Close())
}

func TestSafeDictionary(t *testing.T) {
	sd, err := NewSafeDictionary(dictSamples("safe dictionary"), 8*1024)
	require.NoError(t, err)
	defer sd.Release()

	data := bytes.Repeat([]byte("safe dictionary sample 9 "), 200)
	compressed, err := sd.Compress(nil, data)
	require.NoError(t, err)

	decompressed, err := sd.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, data, decompressed)
}
