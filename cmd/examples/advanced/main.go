package main

import (
	"fmt"
	"log"

	vibezstd "github.com/kreynolds/vibe-zstd-sub000"
)

func main() {
	data := []byte("This example demonstrates the advanced compression API with named parameters.")
	fmt.Printf("Original size: %d bytes\n\n", len(data))

	// Every tunable is reachable by name, with bounds reported by the codec.
	for _, name := range vibezstd.CompressionParameterNames() {
		min, max, err := vibezstd.CParamBounds(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-30s [%d, %d]\n", name, min, max)
	}
	fmt.Println()

	cctx, err := vibezstd.NewCCtxParams(map[string]int{
		"compression_level": 19,
		"checksum_flag":     1,
		"window_log":        20,
		"strategy":          int(vibezstd.ZSTD_btultra2),
	})
	if err != nil {
		log.Fatalf("Failed to configure context: %v", err)
	}
	defer cctx.Release()

	compressed, err := cctx.Compress(nil, data)
	if err != nil {
		log.Fatalf("Compression failed: %v", err)
	}
	fmt.Printf("Compressed size: %d bytes\n", len(compressed))

	// Out-of-range values are rejected with the valid range in the message.
	if err := cctx.Set("compression_level", 9999); err != nil {
		fmt.Printf("Expected rejection: %v\n\n", err)
	}

	// Session-only reset keeps the validated parameter set.
	if err := cctx.Reset(vibezstd.ZSTD_reset_session_only); err != nil {
		log.Fatalf("Failed to reset session: %v", err)
	}

	pledgedData := []byte("Data with known size")
	if err := cctx.SetPledgedSrcSize(uint64(len(pledgedData))); err != nil {
		log.Fatalf("Failed to set pledged size: %v", err)
	}
	compressedPledged, err := cctx.Compress(nil, pledgedData)
	if err != nil {
		log.Fatalf("Compression with pledged size failed: %v", err)
	}
	fmt.Printf("Compressed with pledged size: %d bytes\n", len(compressedPledged))

	decompressed, err := vibezstd.Decompress(nil, compressed)
	if err != nil {
		log.Fatalf("Decompression failed: %v", err)
	}
	if string(decompressed) == string(data) {
		fmt.Println("\n✓ Success: Data matches after advanced compression/decompression")
	}
}
