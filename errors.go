package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>
*/
import "C"

import (
	"fmt"
)

// ZstdError carries the codec's diagnostic for a failed operation.
type ZstdError struct {
	Code        int          // ZSTD error code
	Operation   string       // What operation failed
	Message     string       // Human-readable message from ZSTD
	Recoverable bool         // Whether the error can be recovered from
	Suggestion  string       // Actionable suggestion for resolution
	Context     ErrorContext // Additional context information
}

// ErrorContext provides additional context for ZSTD errors.
type ErrorContext struct {
	InputSize        int    // Size of input data
	OutputSize       int    // Size of output buffer
	CompressionLevel int    // Compression level used
	DictionaryID     uint32 // Dictionary ID if applicable
}

// Error implements the error interface.
func (e *ZstdError) Error() string {
	return fmt.Sprintf("ZSTD %s error: %s (code %d)", e.Operation, e.Message, e.Code)
}

// IsRecoverable returns whether the error can potentially be recovered from.
func (e *ZstdError) IsRecoverable() bool {
	return e.Recoverable
}

// Specific error types for each category.
type CorruptionError struct{ *ZstdError }  // Data corruption detected
type MemoryError struct{ *ZstdError }      // Memory allocation issues
type BufferError struct{ *ZstdError }      // Buffer size issues
type ParameterError struct{ *ZstdError }   // Parameter validation
type DictionaryError struct{ *ZstdError }  // Dictionary problems
type StreamStateError struct{ *ZstdError } // Stream protocol misuse
type VersionError struct{ *ZstdError }     // Version compatibility
type FrameError struct{ *ZstdError }       // Frame format issues

// DictionaryMismatchError reports a frame whose embedded dictionary id does not
// match the dictionary supplied by the caller. SuppliedID is 0 when no
// dictionary was supplied at all.
type DictionaryMismatchError struct {
	RequiredID uint32
	SuppliedID uint32
}

func (e *DictionaryMismatchError) Error() string {
	if e.SuppliedID == 0 {
		return fmt.Sprintf("frame requires dictionary id %d but no dictionary was supplied", e.RequiredID)
	}
	return fmt.Sprintf("dictionary mismatch: frame requires dictionary id %d, supplied dictionary has id %d",
		e.RequiredID, e.SuppliedID)
}

// newArgumentError builds a locally detected argument error (unknown parameter
// name, out-of-bounds value, invalid skippable-frame variant, bad chunk size).
// It reuses the out-of-bound parameter code so callers can classify it the
// same way as codec-reported parameter failures.
func newArgumentError(operation, message string) *ParameterError {
	return &ParameterError{&ZstdError{
		Code:        int(C.ZSTD_error_parameter_outOfBound),
		Operation:   operation,
		Message:     message,
		Recoverable: true,
		Suggestion:  "fix the argument at the call site",
	}}
}

// newStreamStateError builds a programmer-error for stream protocol misuse,
// e.g. writing to a finished stream.
func newStreamStateError(operation, message string) *StreamStateError {
	return &StreamStateError{&ZstdError{
		Code:        int(C.ZSTD_error_stage_wrong),
		Operation:   operation,
		Message:     message,
		Recoverable: false,
		Suggestion:  "fix the call ordering at the call site",
	}}
}

// mapZstdError converts ZSTD error codes to typed Go errors with context.
func mapZstdError(result C.size_t, operation string, ctx ErrorContext) error {
	if !zstdIsError(result) {
		return nil
	}

	code := int(C.ZSTD_getErrorCode(result))

	baseError := &ZstdError{
		Code:      code,
		Operation: operation,
		Message:   errStr(result),
		Context:   ctx,
	}

	switch code {
	// Buffer and size errors
	case 70: // ZSTD_error_dstSize_tooSmall
		baseError.Recoverable = true
		baseError.Suggestion = fmt.Sprintf("Increase destination buffer size (current: %d bytes)", ctx.OutputSize)
		return &BufferError{baseError}

	case 72: // ZSTD_error_srcSize_wrong
		baseError.Recoverable = false
		baseError.Suggestion = "Input size is invalid or truncated"
		return &BufferError{baseError}

	case 74, 104, 105: // dstBuffer_null, dstBuffer_wrong, srcBuffer_wrong
		baseError.Recoverable = true
		baseError.Suggestion = "Buffer configuration is incorrect"
		return &BufferError{baseError}

	// Memory allocation errors
	case 64: // ZSTD_error_memory_allocation
		baseError.Recoverable = false
		baseError.Suggestion = fmt.Sprintf("Reduce compression level (current: %d) or free system memory",
			ctx.CompressionLevel)
		return &MemoryError{baseError}

	case 66: // ZSTD_error_workSpace_tooSmall
		baseError.Recoverable = true
		baseError.Suggestion = "Increase workspace size for the context"
		return &MemoryError{baseError}

	// Corruption and data integrity errors
	case 20: // ZSTD_error_corruption_detected
		baseError.Recoverable = false
		baseError.Suggestion = "Input data is corrupted and cannot be decompressed"
		return &CorruptionError{baseError}

	case 22: // ZSTD_error_checksum_wrong
		baseError.Recoverable = false
		baseError.Suggestion = "Data integrity check failed - possible corruption or tampering"
		return &CorruptionError{baseError}

	case 24, 50: // literals_headerWrong, stabilityCondition_notRespected
		baseError.Recoverable = false
		baseError.Suggestion = "Compressed data is internally inconsistent"
		return &CorruptionError{baseError}

	// Dictionary errors
	case 30: // ZSTD_error_dictionary_corrupted
		baseError.Recoverable = false
		baseError.Suggestion = "Dictionary data is corrupted - obtain a valid dictionary"
		return &DictionaryError{baseError}

	case 32: // ZSTD_error_dictionary_wrong
		baseError.Recoverable = true
		if ctx.DictionaryID != 0 {
			baseError.Suggestion = fmt.Sprintf("Wrong dictionary (expected ID: %d) - use the correct dictionary", ctx.DictionaryID)
		} else {
			baseError.Suggestion = "Frame requires a dictionary but none was provided"
		}
		return &DictionaryError{baseError}

	case 34: // ZSTD_error_dictionaryCreation_failed
		baseError.Recoverable = false
		baseError.Suggestion = "Dictionary creation failed - check training sample quality"
		return &DictionaryError{baseError}

	// Parameter errors
	case 40, 41, 42, 44, 46, 48, 49:
		baseError.Recoverable = true
		baseError.Suggestion = "Parameter value or combination is invalid - check constraints"
		return &ParameterError{baseError}

	// Frame and format errors
	case 10: // ZSTD_error_prefix_unknown
		baseError.Recoverable = false
		baseError.Suggestion = "Data does not start with a valid ZSTD magic number"
		return &FrameError{baseError}

	case 14: // ZSTD_error_frameParameter_unsupported
		baseError.Recoverable = false
		baseError.Suggestion = "Frame uses unsupported parameters"
		return &FrameError{baseError}

	case 16: // ZSTD_error_frameParameter_windowTooLarge
		baseError.Recoverable = false
		baseError.Suggestion = "Frame window size exceeds the configured maximum"
		return &FrameError{baseError}

	case 100: // ZSTD_error_frameIndex_tooLarge
		baseError.Recoverable = false
		baseError.Suggestion = "Frame index is too large"
		return &FrameError{baseError}

	// Stream state errors
	case 60: // ZSTD_error_stage_wrong
		baseError.Recoverable = true
		baseError.Suggestion = "Operation not valid in current stream stage"
		return &StreamStateError{baseError}

	case 62: // ZSTD_error_init_missing
		baseError.Recoverable = true
		baseError.Suggestion = "Stream context not properly initialized"
		return &StreamStateError{baseError}

	case 80: // ZSTD_error_noForwardProgress_destFull
		baseError.Recoverable = true
		baseError.Suggestion = "No progress possible - destination buffer is full"
		return &StreamStateError{baseError}

	case 82: // ZSTD_error_noForwardProgress_inputEmpty
		baseError.Recoverable = true
		baseError.Suggestion = "No progress possible - input buffer is empty"
		return &StreamStateError{baseError}

	// Version compatibility errors
	case 12: // ZSTD_error_version_unsupported
		baseError.Recoverable = false
		baseError.Suggestion = "Data was compressed with an unsupported ZSTD version"
		return &VersionError{baseError}

	case 1: // ZSTD_error_GENERIC
		baseError.Recoverable = false
		baseError.Suggestion = "Generic ZSTD error - check input data and parameters"
		return baseError

	default:
		baseError.Recoverable = false
		baseError.Suggestion = fmt.Sprintf("Unknown ZSTD error code %d - check ZSTD documentation", code)
		return baseError
	}
}

// Convenience functions for error type checking.
func IsCorruptionError(err error) bool  { _, ok := err.(*CorruptionError); return ok }
func IsMemoryError(err error) bool      { _, ok := err.(*MemoryError); return ok }
func IsBufferError(err error) bool      { _, ok := err.(*BufferError); return ok }
func IsParameterError(err error) bool   { _, ok := err.(*ParameterError); return ok }
func IsDictionaryError(err error) bool  { _, ok := err.(*DictionaryError); return ok }
func IsStreamStateError(err error) bool { _, ok := err.(*StreamStateError); return ok }
func IsVersionError(err error) bool     { _, ok := err.(*VersionError); return ok }
func IsFrameError(err error) bool       { _, ok := err.(*FrameError); return ok }

func IsDictionaryMismatchError(err error) bool {
	_, ok := err.(*DictionaryMismatchError)
	return ok
}

func errStr(result C.size_t) string {
	errCode := C.ZSTD_getErrorCode(result)
	errCStr := C.ZSTD_getErrorString(errCode)
	return C.GoString(errCStr)
}
