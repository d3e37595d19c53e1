package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>

static size_t ZSTD_compressStream2_simple(void *cctx,
        void *dst, size_t dstCapacity, size_t *dstPos,
        const void *src, size_t srcSize, size_t *srcPos,
        int endOp) {
    ZSTD_outBuffer out = { dst, dstCapacity, *dstPos };
    ZSTD_inBuffer in = { src, srcSize, *srcPos };
    size_t result = ZSTD_compressStream2((ZSTD_CCtx*)cctx, &out, &in, (ZSTD_EndDirective)endOp);
    *dstPos = out.pos;
    *srcPos = in.pos;
    return result;
}

static size_t ZSTD_CCtx_refCDict_wrapper2(void *cctx, const void *cdict) {
    return ZSTD_CCtx_refCDict((ZSTD_CCtx*)cctx, (const ZSTD_CDict*)cdict);
}
*/
import "C"

import (
	"io"
	"reflect"
	"runtime"
	"unsafe"
)

const (
	zstdContinue = 0 // ZSTD_e_continue
	zstdFlush    = 1 // ZSTD_e_flush
	zstdEnd      = 2 // ZSTD_e_end
)

// WriterParams configures a Writer.
type WriterParams struct {
	// CompressionLevel is the level passed to the codec. 0 means
	// DefaultCompressionLevel.
	CompressionLevel int

	// NbWorkers spawns background compression workers when positive; the
	// workers come from the process-wide shared thread pool.
	NbWorkers int

	// Dict is an optional compression dictionary.
	Dict *CDict

	// PledgedSrcSize declares the total input size of the frame, letting the
	// codec embed a content-size header. 0 leaves the size unknown.
	PledgedSrcSize uint64
}

// Writer turns repeated Write calls plus a final Close into one valid codec
// frame delivered incrementally to the sink. Close must be called or the
// produced bytes are not a decodable frame.
//
// Writer is not safe for concurrent use.
type Writer struct {
	w  io.Writer
	cw *cctxWrapper

	dict           *CDict
	level          int
	nbWorkers      int
	pledgedSrcSize uint64

	outBuf   []byte
	finished bool
}

// NewWriter returns a Writer compressing to w at the default level.
func NewWriter(w io.Writer) *Writer {
	return NewWriterParams(w, nil)
}

// NewWriterLevel returns a Writer compressing to w at the given level.
func NewWriterLevel(w io.Writer, compressionLevel int) *Writer {
	return NewWriterParams(w, &WriterParams{CompressionLevel: compressionLevel})
}

// NewWriterDict returns a Writer compressing to w with the given dictionary.
func NewWriterDict(w io.Writer, cd *CDict) *Writer {
	return NewWriterParams(w, &WriterParams{Dict: cd})
}

// NewWriterParams returns a Writer configured by params. A nil params means
// defaults.
func NewWriterParams(w io.Writer, params *WriterParams) *Writer {
	if params == nil {
		params = &WriterParams{}
	}
	zw := &Writer{
		cw:     newCCtx().(*cctxWrapper),
		outBuf: make([]byte, int(C.ZSTD_CStreamOutSize())),
	}
	zw.initialize(w, params)
	return zw
}

func (zw *Writer) initialize(w io.Writer, params *WriterParams) {
	zw.w = w
	zw.dict = params.Dict
	zw.level = params.CompressionLevel
	zw.nbWorkers = params.NbWorkers
	zw.pledgedSrcSize = params.PledgedSrcSize
	zw.finished = false
	zw.arm()
}

// arm configures the codec session for a fresh frame.
func (zw *Writer) arm() {
	result := C.ZSTD_CCtx_reset(zw.cw.cctx, C.ZSTD_ResetDirective(ZSTD_reset_session_only))
	ensureNoError("ZSTD_CCtx_reset", result)

	level := zw.level
	if level == 0 {
		level = DefaultCompressionLevel
	}
	result = C.ZSTD_CCtx_setParameter(zw.cw.cctx, C.ZSTD_cParameter(ZSTD_c_compressionLevel), C.int(level))
	ensureNoError("ZSTD_CCtx_setParameter", result)

	if zw.nbWorkers > 0 {
		result = C.ZSTD_CCtx_setParameter(zw.cw.cctx, C.ZSTD_cParameter(ZSTD_c_nbWorkers), C.int(zw.nbWorkers))
		ensureNoError("ZSTD_CCtx_setParameter", result)
		useThreadPool(zw.cw.cctx)
	}

	if zw.pledgedSrcSize > 0 {
		result = C.ZSTD_CCtx_setPledgedSrcSize(zw.cw.cctx, C.ulonglong(zw.pledgedSrcSize))
		ensureNoError("ZSTD_CCtx_setPledgedSrcSize", result)
	}

	var dictPtr unsafe.Pointer
	if zw.dict != nil && zw.dict.acquireRef() {
		dictPtr = unsafe.Pointer(zw.dict.p)
		zw.dict.releaseRef()
	}
	result = C.ZSTD_CCtx_refCDict_wrapper2(unsafe.Pointer(zw.cw.cctx), dictPtr)
	ensureNoError("ZSTD_CCtx_refCDict", result)
}

// Reset discards the in-flight frame (if any) and re-arms the Writer to
// compress a new frame to w with the given dictionary and level.
func (zw *Writer) Reset(w io.Writer, cd *CDict, compressionLevel int) {
	zw.initialize(w, &WriterParams{
		CompressionLevel: compressionLevel,
		NbWorkers:        zw.nbWorkers,
		Dict:             cd,
	})
}

// Write compresses p, pushing any produced output to the sink immediately.
// It implements io.Writer.
func (zw *Writer) Write(p []byte) (int, error) {
	if zw.finished {
		return 0, newStreamStateError("write", "write on a finished stream")
	}

	var srcPos C.size_t
	for int(srcPos) < len(p) {
		var outPos C.size_t
		outHdr := (*reflect.SliceHeader)(unsafe.Pointer(&zw.outBuf))
		srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&p))

		result := C.ZSTD_compressStream2_simple(unsafe.Pointer(zw.cw.cctx),
			unsafe.Pointer(outHdr.Data), C.size_t(len(zw.outBuf)), &outPos,
			unsafe.Pointer(srcHdr.Data), C.size_t(len(p)), &srcPos,
			zstdContinue)
		runtime.KeepAlive(zw.outBuf)
		runtime.KeepAlive(p)

		if zstdIsError(result) {
			return int(srcPos), mapZstdError(result, "stream compression", ErrorContext{
				InputSize: len(p),
			})
		}
		if outPos > 0 {
			if _, err := zw.w.Write(zw.outBuf[:outPos]); err != nil {
				return int(srcPos), err
			}
		}
	}
	return len(p), nil
}

// Flush makes the codec emit its internally buffered compressed data without
// ending the frame, draining until nothing is pending.
func (zw *Writer) Flush() error {
	if zw.finished {
		return newStreamStateError("flush", "flush on a finished stream")
	}
	return zw.drain(zstdFlush, "stream flush")
}

// Close finalizes the frame (end marker, checksum if enabled) and drains all
// remaining output to the sink. Further Write/Flush calls fail.
func (zw *Writer) Close() error {
	if zw.finished {
		return nil
	}
	if err := zw.drain(zstdEnd, "stream finish"); err != nil {
		return err
	}
	zw.finished = true
	return nil
}

func (zw *Writer) drain(endOp C.int, operation string) error {
	for {
		var outPos, srcPos C.size_t
		outHdr := (*reflect.SliceHeader)(unsafe.Pointer(&zw.outBuf))

		result := C.ZSTD_compressStream2_simple(unsafe.Pointer(zw.cw.cctx),
			unsafe.Pointer(outHdr.Data), C.size_t(len(zw.outBuf)), &outPos,
			nil, 0, &srcPos,
			endOp)
		runtime.KeepAlive(zw.outBuf)

		if zstdIsError(result) {
			return mapZstdError(result, operation, ErrorContext{})
		}
		if outPos > 0 {
			if _, err := zw.w.Write(zw.outBuf[:outPos]); err != nil {
				return err
			}
		}
		if result == 0 {
			return nil
		}
	}
}

// Release frees the codec session. The Writer must not be used afterwards.
func (zw *Writer) Release() {
	if zw.cw == nil {
		return
	}
	freeCCtx(zw.cw)
	zw.cw = nil
	zw.w = nil
	zw.dict = nil
}
