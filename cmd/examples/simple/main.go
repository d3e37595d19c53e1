package main

import (
	"fmt"
	"log"

	vibezstd "github.com/kreynolds/vibe-zstd-sub000"
)

func main() {
	data := []byte("Hello, World! This is a simple compression example.")
	fmt.Printf("Original data: %s\n", data)
	fmt.Printf("Original size: %d bytes\n\n", len(data))

	compressed := vibezstd.Compress(nil, data)
	fmt.Printf("Compressed size: %d bytes\n", len(compressed))
	fmt.Printf("Compression ratio: %.2fx\n\n", float64(len(data))/float64(len(compressed)))

	decompressed, err := vibezstd.Decompress(nil, compressed)
	if err != nil {
		log.Fatalf("Decompression failed: %v", err)
	}

	fmt.Printf("Decompressed data: %s\n", decompressed)

	// Skippable frames carry application metadata that decoders ignore.
	withMeta, err := vibezstd.WriteSkippableFrame(nil, []byte(`{"source":"example"}`), 0)
	if err != nil {
		log.Fatalf("WriteSkippableFrame failed: %v", err)
	}
	withMeta = append(withMeta, compressed...)

	again, err := vibezstd.Decompress(nil, withMeta)
	if err != nil {
		log.Fatalf("Decompression with leading metadata failed: %v", err)
	}

	if string(again) == string(data) {
		fmt.Println("\n✓ Success: Data matches, skippable metadata was ignored")
	} else {
		fmt.Println("\n✗ Error: Data mismatch")
	}
}
