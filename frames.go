package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

// Wrapper functions for frame inspection
static unsigned long long ZSTD_getFrameContentSize_wrapper3(void *src, size_t srcSize) {
    return ZSTD_getFrameContentSize((const void*)src, srcSize);
}

static size_t ZSTD_findFrameCompressedSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_findFrameCompressedSize((const void*)src, srcSize);
}

static size_t ZSTD_writeSkippableFrame_wrapper(void *dst, size_t dstCapacity,
        void *src, size_t srcSize, unsigned magicVariant) {
    return ZSTD_writeSkippableFrame(dst, dstCapacity, (const void*)src, srcSize, magicVariant);
}

static size_t ZSTD_readSkippableFrame_wrapper(void *dst, size_t dstCapacity,
        unsigned *magicVariant, void *src, size_t srcSize) {
    return ZSTD_readSkippableFrame(dst, dstCapacity, magicVariant, (const void*)src, srcSize);
}
*/
import "C"

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

const (
	zstdFrameMagic     = 0xFD2FB528
	skippableMagicBase = 0x184D2A50
	skippableMagicMask = 0xFFFFFFF0
)

// CompressBound returns the worst-case compressed size for srcSize input
// bytes.
func CompressBound(srcSize int) int {
	return int(C.ZSTD_compressBound(C.size_t(srcSize)))
}

// FrameInfo contains information about a ZSTD frame
type FrameInfo struct {
	ContentSize    uint64 // Uncompressed size, 0 if unknown
	CompressedSize uint64 // Compressed frame size
	HasContentSize bool   // Whether content size is available
	HasChecksum    bool   // Whether frame has checksum
	DictionaryID   uint32 // Dictionary ID, 0 if none
}

// GetFrameContentSize returns the uncompressed content size from a ZSTD frame header.
// Returns the content size if available, or an error if:
// - The frame is invalid
// - Content size is unknown (not stored in frame header)
// - Input is too small to contain a valid frame header
func GetFrameContentSize(src []byte) (uint64, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("empty input")
	}

	if len(src) < 4 {
		return 0, fmt.Errorf("input too small for ZSTD frame header")
	}

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_getFrameContentSize_wrapper3(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	switch uint64(result) {
	case uint64(C.ZSTD_CONTENTSIZE_ERROR):
		return 0, fmt.Errorf("invalid ZSTD frame or corrupted data")
	case uint64(C.ZSTD_CONTENTSIZE_UNKNOWN):
		return 0, fmt.Errorf("content size unknown (not stored in frame header)")
	default:
		return uint64(result), nil
	}
}

// FindFrameCompressedSize scans the frame starting at src[0] and returns its
// exact compressed size, which is useful when walking concatenated frames.
// Skippable frames are measured too.
func FindFrameCompressedSize(src []byte) (uint64, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("empty input")
	}

	if len(src) < 4 {
		return 0, fmt.Errorf("input too small for ZSTD frame header")
	}

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_findFrameCompressedSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	if zstdIsError(result) {
		ctx := ErrorContext{
			InputSize: len(src),
		}
		return 0, mapZstdError(result, "frame compressed size detection", ctx)
	}

	return uint64(result), nil
}

// GetFrameCompressedSize returns the compressed size of a ZSTD frame.
func GetFrameCompressedSize(src []byte) (uint64, error) {
	return FindFrameCompressedSize(src)
}

// GetDecompressedSize is a legacy alias for GetFrameContentSize.
// It attempts to get the decompressed size from the frame header.
// Returns 0 if the size is unknown or the frame is invalid.
func GetDecompressedSize(src []byte) uint64 {
	if len(src) == 0 {
		return 0
	}

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_getFrameContentSize_wrapper3(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	switch uint64(result) {
	case uint64(C.ZSTD_CONTENTSIZE_ERROR), uint64(C.ZSTD_CONTENTSIZE_UNKNOWN):
		return 0
	default:
		return uint64(result)
	}
}

// GetFrameInfo extracts comprehensive information about a ZSTD frame.
func GetFrameInfo(src []byte) (*FrameInfo, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if len(src) < 4 {
		return nil, fmt.Errorf("input too small for ZSTD frame header")
	}

	magic := binary.LittleEndian.Uint32(src)
	if magic != zstdFrameMagic {
		return nil, fmt.Errorf("invalid ZSTD magic number: 0x%08x", magic)
	}

	info := &FrameInfo{}

	contentSize, err := GetFrameContentSize(src)
	if err != nil {
		if err.Error() == "content size unknown (not stored in frame header)" {
			info.HasContentSize = false
			info.ContentSize = 0
		} else {
			return nil, fmt.Errorf("failed to get frame info: %w", err)
		}
	} else {
		info.HasContentSize = true
		info.ContentSize = contentSize
	}

	compressedSize, err := FindFrameCompressedSize(src)
	if err != nil {
		return nil, fmt.Errorf("failed to get compressed size: %w", err)
	}
	info.CompressedSize = compressedSize

	if len(src) >= 6 {
		frameHeaderDescriptor := src[4]

		// Bit 2: Checksum flag
		info.HasChecksum = (frameHeaderDescriptor & 0x04) != 0
	}
	info.DictionaryID = GetDictIDFromFrame(src)

	return info, nil
}

// IsValidZSTDFrame checks if the input starts with a valid ZSTD frame.
// This is a lightweight check that only examines the magic number.
func IsValidZSTDFrame(src []byte) bool {
	if len(src) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(src) == zstdFrameMagic
}

// ValidateFrameHeader performs comprehensive validation of a ZSTD frame header.
// Returns detailed error information if the frame is invalid.
func ValidateFrameHeader(src []byte) error {
	if len(src) == 0 {
		return fmt.Errorf("empty input")
	}

	if len(src) < 4 {
		return fmt.Errorf("input too small: need at least 4 bytes for magic number, got %d", len(src))
	}

	magic := binary.LittleEndian.Uint32(src)
	if magic != zstdFrameMagic {
		return fmt.Errorf("invalid ZSTD magic number: expected 0x%08X, got 0x%08x", uint32(zstdFrameMagic), magic)
	}

	if _, err := GetFrameInfo(src); err != nil {
		return fmt.Errorf("frame validation failed: %w", err)
	}

	return nil
}

// IsSkippableFrame reports whether src starts with a skippable frame.
func IsSkippableFrame(src []byte) bool {
	if len(src) < 8 {
		return false
	}
	return binary.LittleEndian.Uint32(src)&skippableMagicMask == skippableMagicBase
}

// WriteSkippableFrame appends a skippable frame carrying payload to dst.
// magicVariant selects one of the 16 skippable magic numbers and must be in
// [0, 15]. Decoders silently skip such frames, so the payload can carry
// application metadata alongside compressed frames.
func WriteSkippableFrame(dst, payload []byte, magicVariant int) ([]byte, error) {
	if magicVariant < 0 || magicVariant > 15 {
		return nil, newArgumentError("write skippable frame",
			fmt.Sprintf("magic variant %d out of bounds (valid: 0-15)", magicVariant))
	}

	frameLen := len(payload) + 8
	dstLen := len(dst)
	if cap(dst) < dstLen+frameLen {
		grown := make([]byte, dstLen, dstLen+frameLen)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:dstLen+frameLen]

	var srcPtr unsafe.Pointer
	if len(payload) > 0 {
		srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&payload))
		srcPtr = unsafe.Pointer(srcHdr.Data)
	}
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))

	result := C.ZSTD_writeSkippableFrame_wrapper(
		unsafe.Add(unsafe.Pointer(dstHdr.Data), dstLen), C.size_t(frameLen),
		srcPtr, C.size_t(len(payload)),
		C.unsigned(magicVariant))
	runtime.KeepAlive(dst)
	runtime.KeepAlive(payload)

	if zstdIsError(result) {
		return dst[:dstLen], mapZstdError(result, "write skippable frame", ErrorContext{
			InputSize: len(payload),
		})
	}
	return dst[:dstLen+int(result)], nil
}

// ReadSkippableFrame extracts the payload and magic variant of the skippable
// frame at src[0].
func ReadSkippableFrame(src []byte) ([]byte, int, error) {
	if !IsSkippableFrame(src) {
		return nil, 0, newArgumentError("read skippable frame",
			"input does not start with a skippable frame")
	}

	payloadLen := binary.LittleEndian.Uint32(src[4:8])
	if uint64(len(src)) < 8+uint64(payloadLen) {
		return nil, 0, &CorruptionError{&ZstdError{
			Code:        int(C.ZSTD_error_srcSize_wrong),
			Operation:   "read skippable frame",
			Message:     "truncated skippable frame: declared payload exceeds input",
			Recoverable: false,
			Suggestion:  "verify data integrity during transmission or storage",
			Context:     ErrorContext{InputSize: len(src)},
		}}
	}

	out := make([]byte, payloadLen)
	var outPtr unsafe.Pointer
	if payloadLen > 0 {
		outPtr = unsafe.Pointer(&out[0])
	}
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	var variant C.unsigned
	result := C.ZSTD_readSkippableFrame_wrapper(
		outPtr, C.size_t(payloadLen),
		&variant,
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)
	runtime.KeepAlive(out)

	if zstdIsError(result) {
		return nil, 0, mapZstdError(result, "read skippable frame", ErrorContext{
			InputSize: len(src),
		})
	}
	return out[:int(result)], int(variant), nil
}

// SkippableFrame is one skippable frame found while scanning concatenated
// frames.
type SkippableFrame struct {
	Payload      []byte
	MagicVariant int
	Offset       int // byte offset of the frame start within the scanned data
}

// SkippableFrames walks the concatenated frames in data and returns every
// skippable frame with its payload, magic variant and offset. Compressed
// frames are measured and stepped over without being decoded.
func SkippableFrames(data []byte) ([]SkippableFrame, error) {
	var frames []SkippableFrame
	offset := 0
	for offset < len(data) {
		rest := data[offset:]
		if IsSkippableFrame(rest) {
			payloadLen := binary.LittleEndian.Uint32(rest[4:8])
			if uint64(len(rest)) < 8+uint64(payloadLen) {
				return nil, &CorruptionError{&ZstdError{
					Code:        int(C.ZSTD_error_srcSize_wrong),
					Operation:   "scan skippable frames",
					Message:     "truncated skippable frame: declared payload exceeds input",
					Recoverable: false,
					Suggestion:  "verify data integrity during transmission or storage",
					Context:     ErrorContext{InputSize: len(data)},
				}}
			}
			frames = append(frames, SkippableFrame{
				Payload:      append([]byte(nil), rest[8:8+payloadLen]...),
				MagicVariant: int(binary.LittleEndian.Uint32(rest) - skippableMagicBase),
				Offset:       offset,
			})
			offset += 8 + int(payloadLen)
			continue
		}

		frameSize, err := FindFrameCompressedSize(rest)
		if err != nil {
			return nil, err
		}
		offset += int(frameSize)
	}
	return frames, nil
}

// skipSkippableFrames returns src with any leading skippable frames removed.
// If skippable frames were present but nothing follows them, the input held
// no compressed payload at all and that is reported as an error rather than
// as an empty decompression.
func skipSkippableFrames(src []byte) ([]byte, error) {
	rest := src
	skipped := false
	for IsSkippableFrame(rest) {
		frameLen := 8 + uint64(binary.LittleEndian.Uint32(rest[4:8]))
		if frameLen > uint64(len(rest)) {
			return nil, &CorruptionError{&ZstdError{
				Code:        int(C.ZSTD_error_srcSize_wrong),
				Operation:   "skip skippable frames",
				Message:     "truncated skippable frame: declared payload exceeds input",
				Recoverable: false,
				Suggestion:  "verify data integrity during transmission or storage",
				Context:     ErrorContext{InputSize: len(src)},
			}}
		}
		rest = rest[frameLen:]
		skipped = true
	}
	if skipped && len(rest) == 0 {
		return nil, &FrameError{&ZstdError{
			Code:        int(C.ZSTD_error_frameParameter_unsupported),
			Operation:   "decompress",
			Message:     fmt.Sprintf("no compressed frame found in %d bytes (only skippable frames)", len(src)),
			Recoverable: false,
			Suggestion:  "pass data that contains at least one compressed frame",
			Context:     ErrorContext{InputSize: len(src)},
		}}
	}
	return rest, nil
}
