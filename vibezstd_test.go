package vibezstd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func TestDecompressSmallBlockWithoutSingleSegmentFlag(t *testing.T) {
	// See https://github.com/VictoriaMetrics/VictoriaMetrics/issues/281 for details.
	cblockHex := "28B52FFD00007D000038C0A907DFD40300015407022B0E02"
	dblockHexExpected := "C0A907DFD4030000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"000000000000000000000000000000000"

	cblock := mustUnhex(cblockHex)
	dblockExpected := mustUnhex(dblockHexExpected)

	t.Run("empty-dst-buf", func(t *testing.T) {
		dblock, err := Decompress(nil, cblock)
		if err != nil {
			t.Fatalf("unexpected error when decompressing with empty initial buffer: %s", err)
		}
		if string(dblock) != string(dblockExpected) {
			t.Fatalf("unexpected decompressed block;\ngot\n%X\nwant\n%X", dblock, dblockExpected)
		}
	})
	t.Run("small-dst-buf", func(t *testing.T) {
		buf := make([]byte, len(dblockExpected)/2)
		dblock, err := Decompress(buf[:0], cblock)
		if err != nil {
			t.Fatalf("unexpected error when decompressing into a small buffer: %s", err)
		}
		if string(dblock) != string(dblockExpected) {
			t.Fatalf("unexpected decompressed block;\ngot\n%X\nwant\n%X", dblock, dblockExpected)
		}
	})
	t.Run("enough-dst-buf", func(t *testing.T) {
		buf := make([]byte, len(dblockExpected))
		dblock, err := Decompress(buf[:0], cblock)
		if err != nil {
			t.Fatalf("unexpected error when decompressing into a big enough buffer: %s", err)
		}
		if string(dblock) != string(dblockExpected) {
			t.Fatalf("unexpected decompressed block;\ngot\n%X\nwant\n%X", dblock, dblockExpected)
		}
	})
}

func mustUnhex(dataHex string) []byte {
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		panic(fmt.Errorf("BUG: cannot unhex %q: %s", dataHex, err))
	}
	return data
}

func TestCompressDecompress(t *testing.T) {
	for _, data := range []string{
		"",
		"a",
		"foo bar baz",
		string(bytes.Repeat([]byte("zstd roundtrip "), 1000)),
	} {
		compressed := Compress(nil, []byte(data))
		decompressed, err := Decompress(nil, compressed)
		if err != nil {
			t.Fatalf("cannot decompress %d bytes: %s", len(data), err)
		}
		if string(decompressed) != data {
			t.Fatalf("unexpected decompressed data for input of %d bytes", len(data))
		}
	}
}

func TestCompressLevel(t *testing.T) {
	data := bytes.Repeat([]byte("level sweep test data "), 500)
	for _, level := range []int{-3, 1, 3, 9, 19, 22} {
		compressed := CompressLevel(nil, data, level)
		decompressed, err := Decompress(nil, compressed)
		if err != nil {
			t.Fatalf("cannot decompress data compressed at level %d: %s", level, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("unexpected decompressed data at level %d", level)
		}
	}
}

func TestCompressAppendsToDst(t *testing.T) {
	prefix := []byte("prefix")
	data := []byte("payload to compress")

	compressed := Compress(append([]byte(nil), prefix...), data)
	if !bytes.HasPrefix(compressed, prefix) {
		t.Fatalf("compressed output does not retain the dst prefix")
	}

	decompressed, err := Decompress(append([]byte(nil), prefix...), compressed[len(prefix):])
	if err != nil {
		t.Fatalf("cannot decompress: %s", err)
	}
	if string(decompressed) != string(prefix)+string(data) {
		t.Fatalf("unexpected decompressed data: %q", decompressed)
	}
}

func TestCompressDecompressMultiFrames(t *testing.T) {
	var dataOrig []byte
	var compressed []byte
	for i := 0; i < 3; i++ {
		chunk := bytes.Repeat([]byte(fmt.Sprintf("frame %d payload ", i)), 100)
		dataOrig = append(dataOrig, chunk...)
		compressed = Compress(compressed, chunk)
	}

	decompressed, err := Decompress(nil, compressed)
	if err != nil {
		t.Fatalf("cannot decompress concatenated frames: %s", err)
	}
	if !bytes.Equal(decompressed, dataOrig) {
		t.Fatalf("unexpected decompressed data; got %d bytes, want %d bytes", len(decompressed), len(dataOrig))
	}
}

func TestDecompressInvalidData(t *testing.T) {
	if _, err := Decompress(nil, []byte("invalid compressed data")); err == nil {
		t.Fatalf("expected an error when decompressing invalid data")
	}

	// Valid magic, corrupted body.
	compressed := Compress(nil, bytes.Repeat([]byte("abcd"), 100))
	corrupted := append([]byte(nil), compressed...)
	for i := len(corrupted) / 2; i < len(corrupted); i++ {
		corrupted[i] ^= 0xFF
	}
	if _, err := Decompress(nil, corrupted); err == nil {
		t.Fatalf("expected an error when decompressing corrupted data")
	}
}

func TestDecompressHugeDeclaredContentSize(t *testing.T) {
	// Hand-built single-segment frame with an 8-byte content size field and
	// an empty raw last block. The declared size is a lie either way; it must
	// surface as an error, not a panic or a giant allocation.
	frameWithDeclaredSize := func(size uint64) []byte {
		frame := []byte{
			0x28, 0xB5, 0x2F, 0xFD, // frame magic
			0xE0, // single segment, 8-byte content size
		}
		for i := 0; i < 8; i++ {
			frame = append(frame, byte(size>>(8*i)))
		}
		return append(frame, 0x01, 0x00, 0x00) // last block, raw, empty
	}

	// Overflows int when naively converted.
	if _, err := Decompress(nil, frameWithDeclaredSize(1<<63)); err == nil {
		t.Fatalf("expected an error for a frame declaring 2^63 bytes of content")
	}
	// Fits in int but would attempt a terabyte allocation.
	if _, err := Decompress(nil, frameWithDeclaredSize(1<<40)); err == nil {
		t.Fatalf("expected an error for a frame declaring 2^40 bytes of content")
	}
}

func TestCompressDecompressDistinctConcurrentDicts(t *testing.T) {
	// Build multiple distinct dicts.
	var cdicts []*CDict
	var ddicts []*DDict
	defer func() {
		for _, cd := range cdicts {
			cd.Release()
		}
		for _, dd := range ddicts {
			dd.Release()
		}
	}()
	for i := 0; i < 4; i++ {
		var samples [][]byte
		for j := 0; j < 1000; j++ {
			sample := fmt.Sprintf("this is %d,%d sample", j, i)
			samples = append(samples, []byte(sample))
		}
		dict := BuildDict(samples, 4*1024)
		cd, err := NewCDict(dict)
		if err != nil {
			t.Fatalf("cannot create CDict: %s", err)
		}
		cdicts = append(cdicts, cd)
		dd, err := NewDDict(dict)
		if err != nil {
			t.Fatalf("cannot create DDict: %s", err)
		}
		ddicts = append(ddicts, dd)
	}

	// Build data for the compression.
	var bb bytes.Buffer
	i := 0
	for bb.Len() < 1e4 {
		fmt.Fprintf(&bb, "%d sample line this is %d", bb.Len(), i)
		i++
	}
	data := bb.Bytes()

	// Run concurrent goroutines compressing/decompressing with distinct dicts.
	ch := make(chan error, len(cdicts))
	for i := 0; i < cap(ch); i++ {
		go func(cd *CDict, dd *DDict) {
			ch <- testCompressDecompressDistinctConcurrentDicts(cd, dd, data)
		}(cdicts[i], ddicts[i])
	}

	// Wait for goroutines to finish.
	for i := 0; i < cap(ch); i++ {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timeout")
		}
	}
}

func testCompressDecompressDistinctConcurrentDicts(cd *CDict, dd *DDict, data []byte) error {
	var compressedData, decompressedData []byte
	for j := 0; j < 10; j++ {
		compressedData = CompressDict(compressedData[:0], data, cd)

		var err error
		decompressedData, err = DecompressDict(decompressedData[:0], compressedData, dd)
		if err != nil {
			return fmt.Errorf("cannot decompress data: %s", err)
		}
		if !bytes.Equal(decompressedData, data) {
			return fmt.Errorf("unexpected decompressed data; got\n%q; want\n%q", decompressedData, data)
		}
	}
	return nil
}
