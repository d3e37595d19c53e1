package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

#include <stdlib.h>

static size_t ZSTD_DCtx_refPrefix_wrapper(void *dctx, const void *prefix, size_t prefixSize) {
    return ZSTD_DCtx_refPrefix((ZSTD_DCtx*)dctx, prefix, prefixSize);
}

static size_t ZSTD_DCtx_refDDict_wrapper(void *dctx, const void *ddict) {
    return ZSTD_DCtx_refDDict((ZSTD_DCtx*)dctx, (const ZSTD_DDict*)ddict);
}

static size_t ZSTD_decompressStream_simple(void *dctx,
        void *dst, size_t dstCapacity, size_t *dstPos,
        const void *src, size_t srcSize, size_t *srcPos) {
    ZSTD_outBuffer out = { dst, dstCapacity, *dstPos };
    ZSTD_inBuffer in = { src, srcSize, *srcPos };
    size_t result = ZSTD_decompressStream((ZSTD_DCtx*)dctx, &out, &in);
    *dstPos = out.pos;
    *srcPos = in.pos;
    return result;
}
*/
import "C"

import (
	"fmt"
	"reflect"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// defaultInitialCapacity is the process-wide starting destination size for
// decompressing frames that do not declare their content size. 0 means "use
// the codec's suggested output-buffer size". Read at decompression time,
// never mutated implicitly.
var defaultInitialCapacity atomic.Int64

// SetDefaultInitialCapacity sets the process-wide initial capacity for
// unknown-size frames. The value must be positive.
func SetDefaultInitialCapacity(n int) error {
	if n <= 0 {
		return newArgumentError("set default initial capacity",
			fmt.Sprintf("initial capacity must be positive (got %d)", n))
	}
	defaultInitialCapacity.Store(int64(n))
	return nil
}

// ResetDefaultInitialCapacity restores the codec's built-in default.
func ResetDefaultInitialCapacity() {
	defaultInitialCapacity.Store(0)
}

// DefaultInitialCapacity returns the effective process-wide initial capacity
// for unknown-size frames.
func DefaultInitialCapacity() int {
	if n := defaultInitialCapacity.Load(); n > 0 {
		return int(n)
	}
	return int(C.ZSTD_DStreamOutSize())
}

// resolveInitialCapacity applies the precedence chain: per-call value,
// per-context value, process-wide default, codec default.
func resolveInitialCapacity(perCall, perContext int) int {
	if perCall > 0 {
		return perCall
	}
	if perContext > 0 {
		return perContext
	}
	return DefaultInitialCapacity()
}

// DCtx owns one codec decoder session. Like CCtx it is reusable but not
// concurrency-safe.
type DCtx struct {
	*dctxWrapper

	// initialCapacity overrides the process-wide default for unknown-size
	// frames when positive.
	initialCapacity int

	dict      *DDict
	prefixPtr unsafe.Pointer
	prefixLen int
}

// NewDCtx creates a new decompression context.
// The returned context must be released by calling Release() when no longer needed.
func NewDCtx() *DCtx {
	return &DCtx{
		dctxWrapper: newDCtx().(*dctxWrapper),
	}
}

// NewDCtxParams creates a decompression context and applies the given
// name-keyed options, e.g. {"window_log_max": 27}.
func NewDCtxParams(options map[string]int) (*DCtx, error) {
	dctx := NewDCtx()
	for name, value := range options {
		if err := dctx.Set(name, value); err != nil {
			dctx.Release()
			return nil, err
		}
	}
	return dctx, nil
}

// Release frees the codec session. The context must not be used afterwards.
func (dctx *DCtx) Release() {
	if dctx == nil || dctx.dctxWrapper == nil {
		return
	}
	dctx.freePrefix()
	dctx.dict = nil
	freeDCtx(dctx.dctxWrapper)
	dctx.dctxWrapper = nil
}

// Reset drives the same three-state reset machine as CCtx.Reset, applied to
// decoder parameters and in-flight frame state.
func (dctx *DCtx) Reset(directive ZSTD_ResetDirective) error {
	if err := checkResetDirective(directive); err != nil {
		return err
	}

	result := C.ZSTD_DCtx_reset(dctx.dctx, C.ZSTD_ResetDirective(directive))
	if err := mapZstdError(result, "reset context", ErrorContext{}); err != nil {
		return err
	}

	if directive == ZSTD_reset_session_only || directive == ZSTD_reset_session_and_parameters {
		dctx.freePrefix()
		dctx.dict = nil
	}

	return nil
}

// Set sets a decompression parameter by registry name, validating against the
// codec-reported bounds.
func (dctx *DCtx) Set(name string, value int) error {
	desc, err := lookupDParam(name)
	if err != nil {
		return err
	}
	if err := checkDParamValue(name, desc, value); err != nil {
		return err
	}
	result := C.ZSTD_DCtx_setParameter(dctx.dctx, C.ZSTD_dParameter(desc.param), C.int(value))
	return mapZstdError(result, "set parameter", ErrorContext{})
}

// Get returns the current value of a decompression parameter by registry name.
func (dctx *DCtx) Get(name string) (int, error) {
	desc, err := lookupDParam(name)
	if err != nil {
		return 0, err
	}
	var value C.int
	result := C.ZSTD_DCtx_getParameter(dctx.dctx, C.ZSTD_dParameter(desc.param), &value)
	if err := mapZstdError(result, "get parameter", ErrorContext{}); err != nil {
		return 0, err
	}
	return int(value), nil
}

// ParamBounds returns the codec-reported {min, max} for a named parameter.
func (dctx *DCtx) ParamBounds(name string) (min, max int, err error) {
	return DParamBounds(name)
}

// SetInitialCapacity overrides the process-wide initial capacity for
// unknown-size frames on this context. The value must be positive.
func (dctx *DCtx) SetInitialCapacity(n int) error {
	if n <= 0 {
		return newArgumentError("set initial capacity",
			fmt.Sprintf("initial capacity must be positive (got %d)", n))
	}
	dctx.initialCapacity = n
	return nil
}

// InitialCapacity returns this context's override, or 0 when the process-wide
// default applies.
func (dctx *DCtx) InitialCapacity() int {
	return dctx.initialCapacity
}

// UseDict makes the context decompress with dd until the session is reset.
// Passing nil returns the context to dictionary-less decompression.
func (dctx *DCtx) UseDict(dd *DDict) error {
	var p unsafe.Pointer
	if dd != nil {
		if !dd.acquireRef() {
			return &DictionaryError{&ZstdError{
				Code:        32,
				Operation:   "reference dictionary",
				Message:     "dictionary has been released",
				Recoverable: false,
				Suggestion:  "keep the DDict alive while contexts reference it",
			}}
		}
		p = unsafe.Pointer(dd.p)
		dd.releaseRef()
	}
	result := C.ZSTD_DCtx_refDDict_wrapper(unsafe.Pointer(dctx.dctx), p)
	if err := mapZstdError(result, "reference dictionary", ErrorContext{}); err != nil {
		return err
	}
	dctx.dict = dd
	return nil
}

// UsePrefix attaches a one-shot prefix that must match the prefix used at
// compression time. Applies to the next frame only.
func (dctx *DCtx) UsePrefix(prefix []byte) error {
	dctx.freePrefix()
	if len(prefix) == 0 {
		return nil
	}

	dctx.prefixPtr = C.CBytes(prefix)
	dctx.prefixLen = len(prefix)

	result := C.ZSTD_DCtx_refPrefix_wrapper(unsafe.Pointer(dctx.dctx), dctx.prefixPtr, C.size_t(dctx.prefixLen))
	if err := mapZstdError(result, "reference prefix", ErrorContext{InputSize: len(prefix)}); err != nil {
		dctx.freePrefix()
		return err
	}
	return nil
}

func (dctx *DCtx) freePrefix() {
	if dctx.prefixPtr != nil {
		C.free(dctx.prefixPtr)
		dctx.prefixPtr = nil
		dctx.prefixLen = 0
	}
}

// Decompress appends the decompressed frame to dst, skipping leading
// skippable frames and validating the context's dictionary against the
// frame's embedded dictionary id.
func (dctx *DCtx) Decompress(dst, src []byte) ([]byte, error) {
	return dctx.DecompressCapacity(dst, src, 0)
}

// DecompressCapacity is Decompress with a per-call initial capacity for
// unknown-size frames, taking precedence over both the context's and the
// process-wide defaults. 0 means "no per-call override".
func (dctx *DCtx) DecompressCapacity(dst, src []byte, initialCapacity int) ([]byte, error) {
	if initialCapacity < 0 {
		return dst, newArgumentError("decompression",
			fmt.Sprintf("initial capacity must be positive (got %d)", initialCapacity))
	}

	payload, err := skipSkippableFrames(src)
	if err != nil {
		return dst, err
	}

	dd, err := resolveFrameDictionary(payload, dctx.dict)
	if err != nil {
		return dst, err
	}

	// The prefix (if any) stands in for a dictionary and is consumed by this
	// frame; the session keeps honoring an attached DDict afterwards.
	dst, err = decompress(dctx.dctxWrapper, dst, payload, dd,
		resolveInitialCapacity(initialCapacity, dctx.initialCapacity))
	dctx.freePrefix()
	return dst, err
}

// decompressUnknownSize handles frames that do not declare their content
// size: decompress incrementally, doubling the destination only when the
// codec reports more output pending.
func decompressUnknownSize(dw *dctxWrapper, dst, src []byte, dd *DDict, initialCapacity int) ([]byte, error) {
	if dd != nil {
		if !dd.acquireRef() {
			return dst, &DictionaryError{&ZstdError{
				Code:        32,
				Operation:   "decompression",
				Message:     "dictionary has been released",
				Recoverable: false,
				Suggestion:  "keep the DDict alive while decompressing",
			}}
		}
		defer dd.releaseRef()

		result := C.ZSTD_DCtx_refDDict_wrapper(unsafe.Pointer(dw.dctx), unsafe.Pointer(dd.p))
		if err := mapZstdError(result, "reference dictionary", ErrorContext{}); err != nil {
			return dst, err
		}
	}
	defer C.ZSTD_DCtx_reset(dw.dctx, C.ZSTD_ResetDirective(ZSTD_reset_session_only))

	if initialCapacity <= 0 {
		initialCapacity = DefaultInitialCapacity()
	}

	dstLen := len(dst)
	out := make([]byte, initialCapacity)
	var outPos, srcPos C.size_t

	for {
		outHdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
		srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
		prevOutPos, prevSrcPos := outPos, srcPos

		result := C.ZSTD_decompressStream_simple(unsafe.Pointer(dw.dctx),
			unsafe.Pointer(outHdr.Data), C.size_t(len(out)), &outPos,
			unsafe.Pointer(srcHdr.Data), C.size_t(len(src)), &srcPos)
		runtime.KeepAlive(out)
		runtime.KeepAlive(src)

		if zstdIsError(result) {
			return dst, mapZstdError(result, "decompression", ErrorContext{
				InputSize:  len(src),
				OutputSize: len(out),
			})
		}
		if result == 0 && int(srcPos) == len(src) {
			// All frames fully decoded.
			break
		}
		if int(outPos) == len(out) {
			// Destination exhausted with output still pending: double it.
			grown := make([]byte, len(out)*2)
			copy(grown, out[:outPos])
			out = grown
			continue
		}
		if result == 0 {
			// Frame complete with input remaining: a concatenated frame follows.
			continue
		}
		if int(srcPos) == len(src) {
			// Input exhausted but the codec still expects more.
			return dst, &CorruptionError{&ZstdError{
				Code:        int(C.ZSTD_error_srcSize_wrong),
				Operation:   "decompression",
				Message:     "truncated frame: input ended before the frame was complete",
				Recoverable: false,
				Suggestion:  "supply the complete compressed frame",
				Context:     ErrorContext{InputSize: len(src)},
			}}
		}
		if outPos == prevOutPos && srcPos == prevSrcPos {
			// No forward progress; refuse to spin.
			return dst, &CorruptionError{&ZstdError{
				Code:        int(C.ZSTD_error_corruption_detected),
				Operation:   "decompression",
				Message:     "decoder made no progress on the supplied frame",
				Recoverable: false,
				Suggestion:  "verify the input bytes form a valid zstd frame",
				Context:     ErrorContext{InputSize: len(src)},
			}}
		}
	}

	dst = append(dst[:dstLen], out[:outPos]...)
	return dst, nil
}
