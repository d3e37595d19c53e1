package main

import (
	"bytes"
	"fmt"
	"io"
	"log"

	vibezstd "github.com/kreynolds/vibe-zstd-sub000"
)

func main() {
	data := bytes.Repeat([]byte("This is a test of streaming compression.\n"), 1000)
	fmt.Printf("Original size: %d bytes\n", len(data))

	// Compress using streaming.
	var compressed bytes.Buffer
	writer := vibezstd.NewWriter(&compressed)
	defer writer.Release()

	chunkSize := 1024
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := writer.Write(data[i:end]); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}

	fmt.Printf("Compressed size: %d bytes\n", compressed.Len())
	fmt.Printf("Compression ratio: %.2fx\n\n", float64(len(data))/float64(compressed.Len()))

	// Decompress chunk by chunk: memory stays bounded no matter how large the
	// stream is.
	reader := vibezstd.NewReader(bytes.NewReader(compressed.Bytes()))
	defer reader.Release()

	var decompressed bytes.Buffer
	for {
		chunk, err := reader.ReadChunk(4096)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("ReadChunk failed: %v", err)
		}
		decompressed.Write(chunk)
	}

	fmt.Printf("Decompressed size: %d bytes\n", decompressed.Len())

	// Line-oriented reading over the same stream.
	lines := 0
	lineReader := vibezstd.NewReader(bytes.NewReader(compressed.Bytes()))
	defer lineReader.Release()
	if err := lineReader.ForEachLine(func(line string) error {
		lines++
		return nil
	}); err != nil {
		log.Fatalf("ForEachLine failed: %v", err)
	}
	fmt.Printf("Lines in stream: %d\n", lines)

	if bytes.Equal(decompressed.Bytes(), data) {
		fmt.Println("\n✓ Success: Data matches after streaming compression/decompression")
	} else {
		fmt.Println("\n✗ Error: Data mismatch after streaming compression/decompression")
	}
}
