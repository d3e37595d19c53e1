// Package vibezstd provides Go bindings for the Zstandard compression
// library: one-shot helpers, reusable compression/decompression contexts
// with a name-driven parameter registry, streaming Writer/Reader,
// dictionaries (training included), and skippable-frame utilities.
package vibezstd

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

// The following *_wrapper functions allow avoiding memory allocations
// during calls from Go.
// See https://github.com/golang/go/issues/24450 .

static size_t ZSTD_compressCCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize, int compressionLevel) {
    return ZSTD_compressCCtx((ZSTD_CCtx*)ctx, dst, dstCapacity, src, srcSize, compressionLevel);
}

static size_t ZSTD_compressStream2_once(void *ctx, void *dst, size_t dstCapacity, size_t *dstPos, const void *src, size_t srcSize) {
    ZSTD_outBuffer out = { dst, dstCapacity, 0 };
    ZSTD_inBuffer in = { src, srcSize, 0 };
    size_t result = ZSTD_compressStream2((ZSTD_CCtx*)ctx, &out, &in, ZSTD_e_end);
    *dstPos = out.pos;
    return result;
}

static size_t ZSTD_compress_usingCDict_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize, void *cdict) {
    return ZSTD_compress_usingCDict((ZSTD_CCtx*)ctx, (void*)dst, dstCapacity, (const void*)src, srcSize, (const ZSTD_CDict*)cdict);
}

static size_t ZSTD_decompressDCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize) {
    return ZSTD_decompressDCtx((ZSTD_DCtx*)ctx, (void*)dst, dstCapacity, (const void*)src, srcSize);
}

static size_t ZSTD_decompress_usingDDict_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize, void *ddict) {
    return ZSTD_decompress_usingDDict((ZSTD_DCtx*)ctx, (void*)dst, dstCapacity, (const void*)src, srcSize, (const ZSTD_DDict*)ddict);
}

static unsigned long long ZSTD_findDecompressedSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_findDecompressedSize((const void*)src, srcSize);
}

*/
import "C"

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

// DefaultCompressionLevel is the default compression level.
const DefaultCompressionLevel = 3 // Obtained from ZSTD_CLEVEL_DEFAULT.

// maxDeclaredContentSize caps how much a frame header's declared content size
// may pre-allocate in one shot. Larger declarations are decoded incrementally.
const maxDeclaredContentSize = 1 << 30

// Compress appends compressed src to dst and returns the result.
func Compress(dst, src []byte) []byte {
	return CompressDictLevel(dst, src, nil, DefaultCompressionLevel)
}

// CompressLevel appends compressed src to dst and returns the result.
//
// The given compressionLevel is used for the compression.
func CompressLevel(dst, src []byte, compressionLevel int) []byte {
	return CompressDictLevel(dst, src, nil, compressionLevel)
}

// CompressDict appends compressed src to dst and returns the result.
//
// The given dictionary is used for the compression.
func CompressDict(dst, src []byte, cd *CDict) []byte {
	return CompressDictLevel(dst, src, cd, 0)
}

// CompressDictLevel appends compressed src to dst using the given dictionary
// and compression level. The working context is borrowed from the keyed
// context cache, so repeated calls with the same dictionary reuse the same
// codec session.
func CompressDictLevel(dst, src []byte, cd *CDict, compressionLevel int) []byte {
	cw := borrowCCtx(cdictCacheKey(cd))
	dst = compress(cw, dst, src, cd, compressionLevel)
	returnCCtx(cdictCacheKey(cd), cw)
	return dst
}

func newCCtx() interface{} {
	cctx := C.ZSTD_createCCtx()
	cw := &cctxWrapper{
		cctx: cctx,
	}
	runtime.SetFinalizer(cw, freeCCtx)
	return cw
}

func freeCCtx(cw *cctxWrapper) {
	C.ZSTD_freeCCtx(cw.cctx)
	cw.cctx = nil
}

type cctxWrapper struct {
	cctx *C.ZSTD_CCtx
}

func newDCtx() interface{} {
	dctx := C.ZSTD_createDCtx()
	dw := &dctxWrapper{
		dctx: dctx,
	}
	runtime.SetFinalizer(dw, freeDCtx)
	return dw
}

func freeDCtx(dw *dctxWrapper) {
	C.ZSTD_freeDCtx(dw.dctx)
	dw.dctx = nil
}

type dctxWrapper struct {
	dctx *C.ZSTD_DCtx
}

func compress(cw *cctxWrapper, dst, src []byte, cd *CDict, compressionLevel int) []byte {
	// ZSTD handles empty input correctly by creating valid frames, so don't skip it.

	dstLen := len(dst)
	if cap(dst) > dstLen {
		// Fast path - try compressing without dst resize.
		result := compressInternal(cw, dst[dstLen:cap(dst)], src, cd, compressionLevel, false)
		compressedSize := int(result)
		if compressedSize >= 0 {
			// All OK.
			return dst[:dstLen+compressedSize]
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			ctx := ErrorContext{
				InputSize:  len(src),
				OutputSize: cap(dst) - dstLen,
			}
			if cd != nil {
				ctx.CompressionLevel = cd.compressionLevel
			}
			err := mapZstdError(result, "compression", ctx)
			panic(fmt.Errorf("BUG: unexpected error during compression with cd=%p: %w", cd, err))
		}
	}

	// Slow path - resize dst to fit compressed data using the buffer pool.
	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound

	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)

		if dstLen > 0 {
			newBuf = newBuf[:dstLen]
			copy(newBuf, dst[:dstLen])
		}

		if cap(dst) > 0 && len(dst) > 0 {
			PutBuffer(dst[:0])
		}

		dst = newBuf[:dstLen]
	}

	result := compressInternal(cw, dst[dstLen:dstLen+compressBound], src, cd, compressionLevel, true)
	compressedSize := int(result)
	dst = dst[:dstLen+compressedSize]

	return OptimizeBuffer(dst)
}

func compress2(cw *cctxWrapper, dst, src []byte) ([]byte, error) {
	dstLen := len(dst)

	ctx := ErrorContext{
		InputSize:  len(src),
		OutputSize: cap(dst) - dstLen,
	}

	// The frame is finished with a single ZSTD_e_end streaming call, which
	// honors a pledged source size set while the session was idle;
	// ZSTD_compress2 resets the session first and would drop the pledge.
	// A compressBound-sized destination guarantees the call completes the
	// frame, so a partial attempt never leaves the session mid-stream.
	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound

	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)

		if dstLen > 0 {
			newBuf = newBuf[:dstLen]
			copy(newBuf, dst[:dstLen])
		}

		if cap(dst) > 0 && len(dst) > 0 {
			PutBuffer(dst[:0])
		}

		dst = newBuf[:dstLen]
	}

	result := compress2Internal(cw, dst[dstLen:dstLen+compressBound], src)
	if zstdIsError(result) {
		return dst, mapZstdError(result, "compression", ctx)
	}
	dst = dst[:dstLen+int(result)]
	return OptimizeBuffer(dst), nil
}

func compressInternal(cw *cctxWrapper, dst, src []byte, cd *CDict, compressionLevel int, mustSucceed bool) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	if cd != nil {
		if !cd.acquireRef() {
			// Dictionary was released.
			return C.size_t(C.ZSTD_error_GENERIC)
		}
		defer cd.releaseRef()

		if cd.p == nil {
			return C.size_t(C.ZSTD_error_GENERIC)
		}

		result := C.ZSTD_compress_usingCDict_wrapper(
			unsafe.Pointer(cw.cctx),
			unsafe.Pointer(dstHdr.Data),
			C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data),
			C.size_t(len(src)),
			unsafe.Pointer(cd.p))
		// Prevent from GC'ing of dst and src during CGO call above.
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		if mustSucceed {
			ensureNoError("ZSTD_compress_usingCDict", result)
		}
		return result
	}
	result := C.ZSTD_compressCCtx_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)),
		C.int(compressionLevel))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	if mustSucceed {
		ensureNoError("ZSTD_compressCCtx", result)
	}
	return result
}

func compress2Internal(cw *cctxWrapper, dst, src []byte) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	var dstPos C.size_t
	result := C.ZSTD_compressStream2_once(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		&dstPos,
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	if zstdIsError(result) {
		return result
	}
	if result != 0 {
		// Unreachable with a compressBound-sized destination.
		errCode := C.size_t(C.ZSTD_error_dstSize_tooSmall)
		return -errCode
	}
	return dstPos
}

// Decompress appends decompressed src to dst and returns the result.
//
// Leading skippable frames in src are skipped transparently.
func Decompress(dst, src []byte) ([]byte, error) {
	return DecompressDict(dst, src, nil)
}

// DecompressDict appends decompressed src to dst and returns the result.
//
// The given dictionary dd is used for the decompression. The frame's embedded
// dictionary id is checked against dd before any codec call; a mismatch or a
// missing dictionary yields a *DictionaryMismatchError naming the ids
// involved. A dictionary supplied for a frame that needs none is ignored.
func DecompressDict(dst, src []byte, dd *DDict) ([]byte, error) {
	payload, err := skipSkippableFrames(src)
	if err != nil {
		return dst, err
	}

	dd, err = resolveFrameDictionary(payload, dd)
	if err != nil {
		return dst, err
	}

	dw := borrowDCtx(ddictCacheKey(dd))
	dst, err = decompress(dw, dst, payload, dd, 0)
	returnDCtx(ddictCacheKey(dd), dw)
	return dst, err
}

// resolveFrameDictionary validates the supplied dictionary against the
// frame's embedded dictionary id and returns the dictionary that should
// actually be used (nil when the frame needs none).
func resolveFrameDictionary(frame []byte, dd *DDict) (*DDict, error) {
	frameID := GetDictIDFromFrame(frame)
	if frameID == 0 {
		// Raw-content dictionaries have id 0 and cannot be told apart from
		// "no dictionary", so they are passed through.
		if dd != nil && dd.ID() != 0 {
			return nil, nil
		}
		return dd, nil
	}
	if dd == nil {
		return nil, &DictionaryMismatchError{RequiredID: frameID}
	}
	if id := dd.ID(); id != 0 && id != frameID {
		return nil, &DictionaryMismatchError{RequiredID: frameID, SuppliedID: id}
	}
	return dd, nil
}

// decompress appends the decompressed frame to dst. initialCapacity is the
// starting destination size for frames that do not declare their content
// size; 0 means "resolve via the process-wide default chain".
func decompress(dw *dctxWrapper, dst, src []byte, dd *DDict, initialCapacity int) ([]byte, error) {
	dstLen := len(dst)

	ctx := ErrorContext{
		InputSize:  len(src),
		OutputSize: cap(dst) - dstLen,
	}
	if dd != nil {
		ctx.DictionaryID = dd.ID()
	}

	// ZSTD_findDecompressedSize sums the content sizes of every concatenated
	// frame, so multi-frame inputs decompress in one shot.
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	contentSize := uint64(C.ZSTD_findDecompressedSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src))))
	// Prevent from GC'ing of src during CGO call above.
	runtime.KeepAlive(src)

	switch contentSize {
	case uint64(C.ZSTD_CONTENTSIZE_UNKNOWN):
		return decompressUnknownSize(dw, dst, src, dd, initialCapacity)
	case uint64(C.ZSTD_CONTENTSIZE_ERROR):
		return dst, &CorruptionError{&ZstdError{
			Code:        int(C.ZSTD_error_prefix_unknown),
			Operation:   "decompression",
			Message:     "invalid compressed data: not a valid zstd frame",
			Recoverable: false,
			Suggestion:  "verify the input bytes form a complete zstd frame",
			Context:     ctx,
		}}
	}

	if cap(dst) > dstLen && uint64(cap(dst)-dstLen) > contentSize {
		// Fast path - decompress into the spare capacity of dst.
		result := decompressInternal(dw, dst[dstLen:cap(dst)], src, dd)
		decompressedSize := int(result)
		if decompressedSize >= 0 {
			return dst[:dstLen+decompressedSize], nil
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			return dst[:dstLen], mapZstdError(result, "decompression", ctx)
		}
	}

	// The declared content size comes from an untrusted header; anything past
	// the sanity bound goes through the growth loop, which only allocates
	// what the frame actually produces.
	if contentSize > maxDeclaredContentSize {
		return decompressUnknownSize(dw, dst, src, dd, initialCapacity)
	}

	// Slow path - the declared content size tells exactly how much room is
	// needed; allocate it once.
	decompressBound := int(contentSize) + 1
	requiredTotal := dstLen + decompressBound

	if cap(dst) < requiredTotal {
		newBuf := GetDecompressBuffer(requiredTotal)
		newBuf = newBuf[:requiredTotal]
		copy(newBuf, dst[:dstLen])

		if cap(dst) > 0 && len(dst) > 0 {
			PutBuffer(dst[:0])
		}

		dst = newBuf[:dstLen]
	}

	result := decompressInternal(dw, dst[dstLen:dstLen+decompressBound], src, dd)
	decompressedSize := int(result)
	if decompressedSize >= 0 {
		dst = dst[:dstLen+decompressedSize]
		return OptimizeBuffer(dst), nil
	}

	return dst[:dstLen], mapZstdError(result, "decompression", ctx)
}

func decompressInternal(dw *dctxWrapper, dst, src []byte, dd *DDict) C.size_t {
	var (
		dstHdr = (*reflect.SliceHeader)(unsafe.Pointer(&dst))
		srcHdr = (*reflect.SliceHeader)(unsafe.Pointer(&src))
		n      C.size_t
	)
	if dd != nil {
		if !dd.acquireRef() {
			// Dictionary was released.
			return C.size_t(C.ZSTD_error_GENERIC)
		}
		defer dd.releaseRef()

		if dd.p == nil {
			return C.size_t(C.ZSTD_error_GENERIC)
		}

		n = C.ZSTD_decompress_usingDDict_wrapper(
			unsafe.Pointer(dw.dctx),
			unsafe.Pointer(dstHdr.Data),
			C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data),
			C.size_t(len(src)),
			unsafe.Pointer(dd.p))
	} else {
		n = C.ZSTD_decompressDCtx_wrapper(
			unsafe.Pointer(dw.dctx),
			unsafe.Pointer(dstHdr.Data),
			C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data),
			C.size_t(len(src)))
	}
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	return n
}

func ensureNoError(funcName string, result C.size_t) {
	if zstdIsError(result) {
		ctx := ErrorContext{}
		err := mapZstdError(result, funcName, ctx)
		panic(fmt.Errorf("BUG: unexpected error in %s: %w", funcName, err))
	}
}

func zstdIsError(result C.size_t) bool {
	if int(result) >= 0 {
		// Fast path - avoid calling C function.
		return false
	}
	return C.ZSTD_isError(result) != 0
}
