package main

import (
	"errors"
	"fmt"
	"log"

	vibezstd "github.com/kreynolds/vibe-zstd-sub000"
)

func main() {
	samples := [][]byte{
		[]byte("The quick brown fox jumps over the lazy dog."),
		[]byte("The quick brown fox runs through the forest."),
		[]byte("The lazy dog sleeps under the tree."),
		[]byte("The brown fox is quick and clever."),
		[]byte("The dog is lazy but loyal."),
	}

	dict := vibezstd.BuildDict(samples, 1024)
	if dict == nil {
		log.Fatal("Failed to build dictionary")
	}
	fmt.Printf("Dictionary size: %d bytes, id %d\n\n", len(dict), vibezstd.GetDictID(dict))

	cd, err := vibezstd.NewCDict(dict)
	if err != nil {
		log.Fatalf("Failed to create compression dictionary: %v", err)
	}
	defer cd.Release()

	dd, err := vibezstd.NewDDict(dict)
	if err != nil {
		log.Fatalf("Failed to create decompression dictionary: %v", err)
	}
	defer dd.Release()

	testData := []byte("The quick brown fox and the lazy dog are friends.")

	compressedWithDict := vibezstd.CompressDict(nil, testData, cd)
	compressedWithoutDict := vibezstd.Compress(nil, testData)
	fmt.Printf("Compressed with dictionary:    %d bytes\n", len(compressedWithDict))
	fmt.Printf("Compressed without dictionary: %d bytes\n\n", len(compressedWithoutDict))

	decompressed, err := vibezstd.DecompressDict(nil, compressedWithDict, dd)
	if err != nil {
		log.Fatalf("Decompression failed: %v", err)
	}
	fmt.Printf("Decompressed: %s\n\n", decompressed)

	// Mismatch detection: the frame names the dictionary it needs before any
	// codec work happens.
	_, err = vibezstd.Decompress(nil, compressedWithDict)
	var mismatch *vibezstd.DictionaryMismatchError
	if errors.As(err, &mismatch) {
		fmt.Printf("Expected failure without dictionary: %v\n", err)
	} else {
		log.Fatalf("Expected a dictionary mismatch error, got: %v", err)
	}

	if string(decompressed) == string(testData) {
		fmt.Println("\n✓ Success: Dictionary compression/decompression works correctly")
	}
}
