package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>

#include <stdlib.h>

static size_t ZSTD_CCtx_refPrefix_wrapper(void *cctx, const void *prefix, size_t prefixSize) {
    return ZSTD_CCtx_refPrefix((ZSTD_CCtx*)cctx, prefix, prefixSize);
}

static size_t ZSTD_CCtx_refCDict_wrapper(void *cctx, const void *cdict) {
    return ZSTD_CCtx_refCDict((ZSTD_CCtx*)cctx, (const ZSTD_CDict*)cdict);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// CCtx owns one codec encoder session. It is reusable across many
// compressions (Reset with ZSTD_reset_session_only keeps the validated
// parameter set) but must not be used concurrently from multiple goroutines.
type CCtx struct {
	*cctxWrapper

	paramsMutex   sync.RWMutex
	currentParams map[CParameter]int

	// Session-scoped references that must stay valid until the next
	// compression completes.
	dict      *CDict
	prefixPtr unsafe.Pointer
	prefixLen int
}

// NewCCtx creates a new compression context.
// The returned context must be released by calling Release() when no longer needed.
func NewCCtx() *CCtx {
	return &CCtx{
		cctxWrapper:   newCCtx().(*cctxWrapper),
		currentParams: make(map[CParameter]int),
	}
}

// NewCCtxParams creates a compression context and applies the given
// name-keyed options, e.g. {"compression_level": 19, "checksum_flag": 1}.
func NewCCtxParams(options map[string]int) (*CCtx, error) {
	cctx := NewCCtx()
	for name, value := range options {
		if err := cctx.Set(name, value); err != nil {
			cctx.Release()
			return nil, err
		}
	}
	return cctx, nil
}

// Release frees the codec session. The context must not be used afterwards.
func (cctx *CCtx) Release() {
	if cctx == nil || cctx.cctxWrapper == nil {
		return
	}
	cctx.freePrefix()
	cctx.dict = nil

	cctx.paramsMutex.Lock()
	cctx.currentParams = nil
	cctx.paramsMutex.Unlock()

	freeCCtx(cctx.cctxWrapper)
	cctx.cctxWrapper = nil
}

// Reset drives the context's three-state reset machine:
// ZSTD_reset_session_only clears in-flight frame state and keeps parameters,
// ZSTD_reset_parameters restores every parameter to its codec default, and
// ZSTD_reset_session_and_parameters does both.
func (cctx *CCtx) Reset(directive ZSTD_ResetDirective) error {
	if err := checkResetDirective(directive); err != nil {
		return err
	}

	result := C.ZSTD_CCtx_reset(cctx.cctx, C.ZSTD_ResetDirective(directive))
	if err := mapZstdError(result, "reset context", ErrorContext{}); err != nil {
		return err
	}

	// Session-scoped dictionary/prefix references die with the session.
	if directive == ZSTD_reset_session_only || directive == ZSTD_reset_session_and_parameters {
		cctx.freePrefix()
		cctx.dict = nil
	}

	if directive == ZSTD_reset_parameters || directive == ZSTD_reset_session_and_parameters {
		cctx.paramsMutex.Lock()
		cctx.currentParams = make(map[CParameter]int)
		cctx.paramsMutex.Unlock()
	}

	return nil
}

// Set sets a compression parameter by registry name, validating the value
// against the codec-reported bounds first.
func (cctx *CCtx) Set(name string, value int) error {
	desc, err := lookupCParam(name)
	if err != nil {
		return err
	}
	if err := checkCParamValue(name, desc, value); err != nil {
		return err
	}
	return cctx.SetParameter(desc.param, value)
}

// SetBool sets a boolean-flavored parameter, coercing to the codec's 0/1
// representation.
func (cctx *CCtx) SetBool(name string, value bool) error {
	desc, err := lookupCParam(name)
	if err != nil {
		return err
	}
	return cctx.SetParameter(desc.param, boolToParam(value))
}

// Get returns the current value of a compression parameter by registry name.
func (cctx *CCtx) Get(name string) (int, error) {
	desc, err := lookupCParam(name)
	if err != nil {
		return 0, err
	}
	var value C.int
	result := C.ZSTD_CCtx_getParameter(cctx.cctx, C.ZSTD_cParameter(desc.param), &value)
	if err := mapZstdError(result, "get parameter", ErrorContext{}); err != nil {
		return 0, err
	}
	return int(value), nil
}

// GetBool returns a boolean-flavored parameter as a bool.
func (cctx *CCtx) GetBool(name string) (bool, error) {
	v, err := cctx.Get(name)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ParamBounds returns the codec-reported {min, max} for a named parameter.
func (cctx *CCtx) ParamBounds(name string) (min, max int, err error) {
	return CParamBounds(name)
}

// SetParameter sets a compression parameter by codec slot.
func (cctx *CCtx) SetParameter(param CParameter, value int) error {
	result := C.ZSTD_CCtx_setParameter(cctx.cctx, C.ZSTD_cParameter(param), C.int(value))
	if err := mapZstdError(result, "set parameter", ErrorContext{CompressionLevel: value}); err != nil {
		return err
	}

	// Multi-threaded sessions share the process-wide worker pool.
	if param == ZSTD_c_nbWorkers && value > 0 {
		useThreadPool(cctx.cctx)
	}

	cctx.paramsMutex.Lock()
	if cctx.currentParams == nil {
		cctx.currentParams = make(map[CParameter]int)
	}
	cctx.currentParams[param] = value
	cctx.paramsMutex.Unlock()

	return nil
}

// Params returns a snapshot of every parameter explicitly set on the context
// since its last parameter reset, keyed by canonical registry name. Parameters
// left at their codec defaults do not appear.
func (cctx *CCtx) Params() map[string]int {
	cctx.paramsMutex.RLock()
	defer cctx.paramsMutex.RUnlock()

	params := make(map[string]int, len(cctx.currentParams))
	for param, value := range cctx.currentParams {
		if name, ok := cParamName(param); ok {
			params[name] = value
		}
	}
	return params
}

// UseDict makes the context compress with cd until the session is reset.
// Passing nil returns the context to dictionary-less compression.
func (cctx *CCtx) UseDict(cd *CDict) error {
	var p unsafe.Pointer
	if cd != nil {
		if !cd.acquireRef() {
			return &DictionaryError{&ZstdError{
				Code:        32,
				Operation:   "reference dictionary",
				Message:     "dictionary has been released",
				Recoverable: false,
				Suggestion:  "keep the CDict alive while contexts reference it",
			}}
		}
		p = unsafe.Pointer(cd.p)
		cd.releaseRef()
	}
	result := C.ZSTD_CCtx_refCDict_wrapper(unsafe.Pointer(cctx.cctx), p)
	if err := mapZstdError(result, "reference dictionary", ErrorContext{}); err != nil {
		return err
	}
	cctx.dict = cd
	return nil
}

// UsePrefix attaches a lightweight one-shot dictionary substitute. The prefix
// applies to the next frame only and is consumed by it; re-apply before each
// subsequent compression.
func (cctx *CCtx) UsePrefix(prefix []byte) error {
	cctx.freePrefix()
	if len(prefix) == 0 {
		return nil
	}

	// The codec references the prefix bytes until the next frame completes,
	// so they are copied into C memory rather than pinning a Go slice.
	cctx.prefixPtr = C.CBytes(prefix)
	cctx.prefixLen = len(prefix)

	result := C.ZSTD_CCtx_refPrefix_wrapper(unsafe.Pointer(cctx.cctx), cctx.prefixPtr, C.size_t(cctx.prefixLen))
	if err := mapZstdError(result, "reference prefix", ErrorContext{InputSize: len(prefix)}); err != nil {
		cctx.freePrefix()
		return err
	}
	return nil
}

func (cctx *CCtx) freePrefix() {
	if cctx.prefixPtr != nil {
		C.free(cctx.prefixPtr)
		cctx.prefixPtr = nil
		cctx.prefixLen = 0
	}
}

// SetPledgedSrcSize declares the total input size of the next frame, letting
// the codec embed a content-size header. The pledge is valid for one frame
// and the codec errors out if it is not respected.
func (cctx *CCtx) SetPledgedSrcSize(pledgedSrcSize uint64) error {
	result := C.ZSTD_CCtx_setPledgedSrcSize(cctx.cctx, C.ulonglong(pledgedSrcSize))
	if err := mapZstdError(result, "set pledged source size", ErrorContext{InputSize: int(pledgedSrcSize)}); err != nil {
		return err
	}
	return nil
}

// Compress appends compressed src to dst using the context's configured
// parameters, referenced dictionary and prefix, and any pledged size.
func (cctx *CCtx) Compress(dst, src []byte) ([]byte, error) {
	dst, err := compress2(cctx.cctxWrapper, dst, src)
	// A prefix is consumed by the frame it was applied to.
	cctx.freePrefix()
	if err != nil {
		// A failed frame leaves the session mid-stream; clear it so the
		// context stays reusable. Session-scoped references die with it.
		C.ZSTD_CCtx_reset(cctx.cctx, C.ZSTD_ResetDirective(ZSTD_reset_session_only))
		cctx.dict = nil
	}
	return dst, err
}

// EstimateCCtxMemory predicts the memory footprint of a compression context
// at the given level, without constructing one.
func EstimateCCtxMemory(compressionLevel int) uint64 {
	return uint64(C.ZSTD_estimateCCtxSize(C.int(compressionLevel)))
}

// EstimateDCtxMemory predicts the memory footprint of a decompression
// context.
func EstimateDCtxMemory() uint64 {
	return uint64(C.ZSTD_estimateDCtxSize())
}
