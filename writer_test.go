package vibezstd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterStreamingEquivalence(t *testing.T) {
	data := bytes.Repeat([]byte("streaming equivalence payload "), 2000)

	for _, chunkSize := range []int{1, 7, 100, 4096, len(data)} {
		var buf bytes.Buffer
		zw := NewWriterLevel(&buf, 5)

		for i := 0; i < len(data); i += chunkSize {
			end := i + chunkSize
			if end > len(data) {
				end = len(data)
			}
			n, err := zw.Write(data[i:end])
			require.NoError(t, err, "chunk size %d", chunkSize)
			require.Equal(t, end-i, n)
		}
		require.NoError(t, zw.Close())
		zw.Release()

		decompressed, err := Decompress(nil, buf.Bytes())
		require.NoError(t, err, "chunk size %d", chunkSize)
		require.Equal(t, data, decompressed, "chunk size %d", chunkSize)
	}
}

func TestWriterEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	zw := NewWriter(&buf)
	defer zw.Release()

	require.NoError(t, zw.Close())
	require.NotZero(t, buf.Len(), "an empty stream is still a valid frame")

	decompressed, err := Decompress(nil, buf.Bytes())
	require.NoError(t, err)
	require.Empty(t, decompressed)
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	zw := NewWriter(&buf)
	defer zw.Release()

	_, err := zw.Write([]byte("flush me"))
	require.NoError(t, err)
	require.NoError(t, zw.Flush())

	// Flushed data is decodable mid-stream.
	zr := NewReader(bytes.NewReader(buf.Bytes()))
	defer zr.Release()
	chunk, err := zr.ReadChunk(1024)
	require.NoError(t, err)
	require.Equal(t, []byte("flush me"), chunk)

	require.NoError(t, zw.Close())
	decompressed, err := Decompress(nil, buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte("flush me"), decompressed)
}

func TestWriterFinishedStream(t *testing.T) {
	var buf bytes.Buffer
	zw := NewWriter(&buf)
	defer zw.Release()

	_, err := zw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	// Close is idempotent.
	require.NoError(t, zw.Close())

	_, err = zw.Write([]byte("more"))
	require.Error(t, err)
	require.True(t, IsStreamStateError(err))
	require.Contains(t, err.Error(), "write on a finished stream")

	err = zw.Flush()
	require.Error(t, err)
	require.True(t, IsStreamStateError(err))
}

func TestWriterReset(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	zw := NewWriterLevel(&buf1, 3)
	defer zw.Release()

	_, err := zw.Write([]byte("first stream"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zw.Reset(&buf2, nil, 9)
	_, err = zw.Write([]byte("second stream"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	d1, err := Decompress(nil, buf1.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte("first stream"), d1)

	d2, err := Decompress(nil, buf2.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte("second stream"), d2)
}

func TestWriterPledgedSrcSize(t *testing.T) {
	data := bytes.Repeat([]byte("pledged streaming "), 50)

	var buf bytes.Buffer
	zw := NewWriterParams(&buf, &WriterParams{PledgedSrcSize: uint64(len(data))})
	defer zw.Release()

	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	// The pledge puts the content size into the frame header.
	size, err := GetFrameContentSize(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), size)
}

func TestWriterDict(t *testing.T) {
	samples := dictSamples("writer dict")
	dict := BuildDict(samples, 4*1024)
	require.NotEmpty(t, dict)

	cd, err := NewCDict(dict)
	require.NoError(t, err)
	defer cd.Release()
	dd, err := NewDDict(dict)
	require.NoError(t, err)
	defer dd.Release()

	data := bytes.Repeat([]byte("writer dict sample 3 "), 100)

	var buf bytes.Buffer
	zw := NewWriterDict(&buf, cd)
	defer zw.Release()
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr := NewReaderDict(bytes.NewReader(buf.Bytes()), dd)
	defer zr.Release()
	var out bytes.Buffer
	_, err = zr.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, data, out.Bytes())
}
