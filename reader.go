package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

static size_t ZSTD_decompressStream_simple2(void *dctx,
        void *dst, size_t dstCapacity, size_t *dstPos,
        const void *src, size_t srcSize, size_t *srcPos) {
    ZSTD_outBuffer out = { dst, dstCapacity, *dstPos };
    ZSTD_inBuffer in = { src, srcSize, *srcPos };
    size_t result = ZSTD_decompressStream((ZSTD_DCtx*)dctx, &out, &in);
    *dstPos = out.pos;
    *srcPos = in.pos;
    return result;
}

static size_t ZSTD_DCtx_refDDict_wrapper2(void *dctx, const void *ddict) {
    return ZSTD_DCtx_refDDict((ZSTD_DCtx*)dctx, (const ZSTD_DDict*)ddict);
}
*/
import "C"

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// defaultChunkSize is the process-wide default output chunk size for Reader
// calls that specify no explicit size. 0 means "use the codec's suggested
// output-buffer size".
var defaultChunkSize atomic.Int64

// SetDefaultChunkSize sets the process-wide default Reader chunk size. The
// value must be positive.
func SetDefaultChunkSize(n int) error {
	if n <= 0 {
		return newArgumentError("set default chunk size",
			fmt.Sprintf("chunk size must be positive (got %d)", n))
	}
	defaultChunkSize.Store(int64(n))
	return nil
}

// ResetDefaultChunkSize restores the codec's built-in default.
func ResetDefaultChunkSize() {
	defaultChunkSize.Store(0)
}

// DefaultChunkSize returns the effective process-wide Reader chunk size.
func DefaultChunkSize() int {
	if n := defaultChunkSize.Load(); n > 0 {
		return int(n)
	}
	return int(C.ZSTD_DStreamOutSize())
}

// ReaderParams configures a Reader.
type ReaderParams struct {
	// Dict is an optional decompression dictionary.
	Dict *DDict

	// InitialChunkSize overrides the process-wide default chunk size for
	// this Reader when positive. Negative values are rejected.
	InitialChunkSize int
}

// Reader turns repeated reads pulling from a source into decompressed
// chunks with bounded memory: output is produced one chunk at a time and the
// whole stream is never buffered, regardless of frame size.
//
// Reader is not safe for concurrent use.
type Reader struct {
	r  io.Reader
	dw *dctxWrapper

	dict      *DDict
	chunkSize int

	inBuf []byte
	inPos int
	inLen int

	// carry holds decompressed bytes produced past what the caller consumed
	// (line helpers and io.Reader reads).
	carry []byte

	started   bool // the source yielded at least one byte
	srcEOF    bool // the source returned io.EOF
	frameDone bool // the codec reported the frame complete
	eos       bool // end-of-stream already reported to the caller
}

// NewReader returns a Reader decompressing from r.
func NewReader(r io.Reader) *Reader {
	zr, _ := NewReaderParams(r, nil)
	return zr
}

// NewReaderDict returns a Reader decompressing from r with the given
// dictionary.
func NewReaderDict(r io.Reader, dd *DDict) *Reader {
	zr, _ := NewReaderParams(r, &ReaderParams{Dict: dd})
	return zr
}

// NewReaderParams returns a Reader configured by params. A nil params means
// defaults. A negative InitialChunkSize is an argument error.
func NewReaderParams(r io.Reader, params *ReaderParams) (*Reader, error) {
	if params == nil {
		params = &ReaderParams{}
	}
	if params.InitialChunkSize < 0 {
		return nil, newArgumentError("new reader",
			fmt.Sprintf("initial chunk size must be positive (got %d)", params.InitialChunkSize))
	}
	zr := &Reader{
		dw:    newDCtx().(*dctxWrapper),
		inBuf: make([]byte, int(C.ZSTD_DStreamInSize())),
	}
	zr.reset(r, params.Dict, params.InitialChunkSize)
	return zr, nil
}

// Reset re-arms the Reader to decompress a new stream from r with the given
// dictionary, keeping the instance chunk size.
func (zr *Reader) Reset(r io.Reader, dd *DDict) {
	zr.reset(r, dd, zr.chunkSize)
}

func (zr *Reader) reset(r io.Reader, dd *DDict, chunkSize int) {
	result := C.ZSTD_DCtx_reset(zr.dw.dctx, C.ZSTD_ResetDirective(ZSTD_reset_session_only))
	ensureNoError("ZSTD_DCtx_reset", result)

	var dictPtr unsafe.Pointer
	if dd != nil && dd.acquireRef() {
		dictPtr = unsafe.Pointer(dd.p)
		dd.releaseRef()
	}
	result = C.ZSTD_DCtx_refDDict_wrapper2(unsafe.Pointer(zr.dw.dctx), dictPtr)
	ensureNoError("ZSTD_DCtx_refDDict", result)

	zr.r = r
	zr.dict = dd
	zr.chunkSize = chunkSize
	zr.inPos = 0
	zr.inLen = 0
	zr.carry = zr.carry[:0]
	zr.started = false
	zr.srcEOF = false
	zr.frameDone = false
	zr.eos = false
}

// Release frees the codec session. The Reader must not be used afterwards.
func (zr *Reader) Release() {
	if zr.dw == nil {
		return
	}
	freeDCtx(zr.dw)
	zr.dw = nil
	zr.r = nil
	zr.dict = nil
}

// effectiveChunkSize resolves the output chunk size: explicit per-call size,
// then the instance's configured size, then the process-wide default, then
// the codec's suggestion. The order is part of the documented contract.
func (zr *Reader) effectiveChunkSize(size int) int {
	if size > 0 {
		return size
	}
	if zr.chunkSize > 0 {
		return zr.chunkSize
	}
	return DefaultChunkSize()
}

// refill pulls the next block from the source into the input buffer. It
// returns false on source EOF.
func (zr *Reader) refill() (bool, error) {
	if zr.srcEOF {
		return false, nil
	}
	n, err := zr.r.Read(zr.inBuf)
	zr.inPos = 0
	zr.inLen = n
	if n > 0 {
		zr.started = true
	}
	if err != nil {
		if err == io.EOF {
			zr.srcEOF = true
			return n > 0, nil
		}
		return false, err
	}
	return true, nil
}

// ReadChunk decompresses and returns up to one chunk of output. size > 0
// bounds the read; size == 0 resolves the chunk size via the precedence
// chain. At end of stream it returns (nil, io.EOF), idempotently.
func (zr *Reader) ReadChunk(size int) ([]byte, error) {
	if size < 0 {
		return nil, newArgumentError("read",
			fmt.Sprintf("read size must be positive (got %d)", size))
	}
	if zr.eos && len(zr.carry) == 0 {
		return nil, io.EOF
	}

	want := zr.effectiveChunkSize(size)
	out := make([]byte, want)

	// Serve carried-over bytes first.
	n := copy(out, zr.carry)
	if n > 0 {
		zr.carry = zr.carry[:copy(zr.carry, zr.carry[n:])]
		if size == 0 {
			// Unbounded read: one chunk's worth is enough.
			return out[:n], nil
		}
	}

	n, err := zr.fill(out, n, size > 0)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, zr.endOfStream()
	}
	return out[:n], nil
}

// endOfStream classifies exhaustion: a source that ended mid-frame is a
// corruption error, not a clean end of stream.
func (zr *Reader) endOfStream() error {
	if zr.started && !zr.frameDone {
		return &CorruptionError{&ZstdError{
			Code:        int(C.ZSTD_error_srcSize_wrong),
			Operation:   "stream decompression",
			Message:     "truncated stream: source ended before the frame was complete",
			Recoverable: false,
			Suggestion:  "supply the complete compressed stream",
		}}
	}
	zr.eos = true
	return io.EOF
}

// fill drives the codec state machine, writing into out starting at offset n.
// When bounded is true it keeps going until out is full (or the stream ends);
// otherwise it stops once any output has been produced.
func (zr *Reader) fill(out []byte, n int, bounded bool) (int, error) {
	for n < len(out) {
		if zr.inPos >= zr.inLen {
			ok, err := zr.refill()
			if err != nil {
				return n, err
			}
			if !ok {
				// Source EOF: whatever was produced is all there is.
				break
			}
		}
		// Input past a completed frame belongs to the next concatenated frame.
		zr.frameDone = false

		outPos := C.size_t(n)
		srcPos := C.size_t(zr.inPos)
		outHdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
		inHdr := (*reflect.SliceHeader)(unsafe.Pointer(&zr.inBuf))

		result := C.ZSTD_decompressStream_simple2(unsafe.Pointer(zr.dw.dctx),
			unsafe.Pointer(outHdr.Data), C.size_t(len(out)), &outPos,
			unsafe.Pointer(inHdr.Data), C.size_t(zr.inLen), &srcPos)
		runtime.KeepAlive(out)
		runtime.KeepAlive(zr.inBuf)

		if zstdIsError(result) {
			return n, mapZstdError(result, "stream decompression", ErrorContext{
				InputSize:  zr.inLen,
				OutputSize: len(out),
			})
		}

		produced := int(outPos) - n
		consumed := int(srcPos) - zr.inPos
		n = int(outPos)
		zr.inPos = int(srcPos)

		if result == 0 {
			// Frame complete: stop regardless of accumulated size.
			zr.frameDone = true
			break
		}
		if produced == 0 && consumed == 0 {
			// Zero progress: refill input rather than spin.
			continue
		}
		if !bounded && produced > 0 {
			// Unbounded read returns one chunk, never the whole frame.
			break
		}
	}
	return n, nil
}

// Read implements io.Reader.
func (zr *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if zr.eos && len(zr.carry) == 0 {
		return 0, io.EOF
	}

	n := copy(p, zr.carry)
	if n > 0 {
		zr.carry = zr.carry[:copy(zr.carry, zr.carry[n:])]
		return n, nil
	}

	n, err := zr.fill(p, 0, true)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, zr.endOfStream()
	}
	return n, nil
}

// ReadPartial is the bounded read form that fails, rather than reporting
// end-of-stream, when nothing could be read at all.
func (zr *Reader) ReadPartial(size int) ([]byte, error) {
	if size <= 0 {
		return nil, newArgumentError("readpartial",
			fmt.Sprintf("read size must be positive (got %d)", size))
	}
	b, err := zr.ReadChunk(size)
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return b, err
}

// ReadLine returns the next decompressed line including its trailing '\n'
// when present. Bytes are buffered internally only up to the next separator.
// At end of stream it returns ("", io.EOF).
func (zr *Reader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(zr.carry, '\n'); i >= 0 {
			line := string(zr.carry[:i+1])
			zr.carry = zr.carry[:copy(zr.carry, zr.carry[i+1:])]
			return line, nil
		}

		chunk, err := zr.nextChunkForCarry()
		if err == io.EOF {
			if len(zr.carry) > 0 {
				line := string(zr.carry)
				zr.carry = zr.carry[:0]
				return line, nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		zr.carry = append(zr.carry, chunk...)
	}
}

// nextChunkForCarry produces one chunk directly from the codec, bypassing
// the carry buffer (the caller owns it).
func (zr *Reader) nextChunkForCarry() ([]byte, error) {
	if zr.eos {
		return nil, io.EOF
	}
	out := make([]byte, zr.effectiveChunkSize(0))
	n, err := zr.fill(out, 0, false)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, zr.endOfStream()
	}
	return out[:n], nil
}

// ForEachLine calls fn for every decompressed line until end of stream or
// until fn returns an error.
func (zr *Reader) ForEachLine(fn func(line string) error) error {
	for {
		line, err := zr.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}

// EOF reports whether both the source and the codec are exhausted and no
// buffered bytes remain.
func (zr *Reader) EOF() bool {
	if len(zr.carry) > 0 {
		return false
	}
	if zr.eos {
		return true
	}
	return zr.frameDone && zr.srcEOF && zr.inPos >= zr.inLen
}

// WriteTo decompresses the whole stream to w chunk by chunk. It implements
// io.WriterTo.
func (zr *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := zr.ReadChunk(0)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}
