package vibezstd

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// ThreadSafeWriter wraps Writer with a mutex so multiple goroutines can share
// one compression stream.
type ThreadSafeWriter struct {
	writer *Writer
	mu     sync.Mutex
	closed int32 // atomic
}

// NewThreadSafeWriter creates a thread-safe writer.
func NewThreadSafeWriter(w io.Writer) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		writer: NewWriter(w),
	}
}

// NewThreadSafeWriterLevel creates a thread-safe writer with the given
// compression level.
func NewThreadSafeWriterLevel(w io.Writer, compressionLevel int) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		writer: NewWriterLevel(w, compressionLevel),
	}
}

// Write implements io.Writer.
func (tsw *ThreadSafeWriter) Write(p []byte) (int, error) {
	if atomic.LoadInt32(&tsw.closed) != 0 {
		return 0, errors.New("writer is closed")
	}

	tsw.mu.Lock()
	defer tsw.mu.Unlock()

	return tsw.writer.Write(p)
}

// Flush flushes pending data.
func (tsw *ThreadSafeWriter) Flush() error {
	if atomic.LoadInt32(&tsw.closed) != 0 {
		return errors.New("writer is closed")
	}

	tsw.mu.Lock()
	defer tsw.mu.Unlock()

	return tsw.writer.Flush()
}

// Close finalizes the frame and releases the underlying writer.
func (tsw *ThreadSafeWriter) Close() error {
	if !atomic.CompareAndSwapInt32(&tsw.closed, 0, 1) {
		return errors.New("writer already closed")
	}

	tsw.mu.Lock()
	defer tsw.mu.Unlock()

	err := tsw.writer.Close()
	tsw.writer.Release()
	return err
}

// ThreadSafeReader wraps Reader with a mutex so multiple goroutines can share
// one decompression stream.
type ThreadSafeReader struct {
	reader *Reader
	mu     sync.Mutex
	closed int32 // atomic
}

// NewThreadSafeReader creates a thread-safe reader.
func NewThreadSafeReader(r io.Reader) *ThreadSafeReader {
	return &ThreadSafeReader{
		reader: NewReader(r),
	}
}

// Read implements io.Reader.
func (tsr *ThreadSafeReader) Read(p []byte) (int, error) {
	if atomic.LoadInt32(&tsr.closed) != 0 {
		return 0, errors.New("reader is closed")
	}

	tsr.mu.Lock()
	defer tsr.mu.Unlock()

	return tsr.reader.Read(p)
}

// Close releases the underlying reader.
func (tsr *ThreadSafeReader) Close() error {
	if !atomic.CompareAndSwapInt32(&tsr.closed, 0, 1) {
		return errors.New("reader already closed")
	}

	tsr.mu.Lock()
	defer tsr.mu.Unlock()

	tsr.reader.Release()
	return nil
}

// SafeDictionary bundles the compression and decompression sides of one
// trained dictionary behind a shared reference count.
type SafeDictionary struct {
	cdict    *CDict
	ddict    *DDict
	refCount int32
	mu       sync.RWMutex
}

// NewSafeDictionary trains a dictionary from samples and builds both
// compression and decompression digests from it.
func NewSafeDictionary(samples [][]byte, dictSize int) (*SafeDictionary, error) {
	dict := BuildDict(samples, dictSize)
	if len(dict) == 0 {
		return nil, errors.New("failed to build dictionary")
	}

	cdict, err := NewCDict(dict)
	if err != nil {
		return nil, fmt.Errorf("failed to create compression dictionary: %w", err)
	}

	ddict, err := NewDDict(dict)
	if err != nil {
		cdict.Release()
		return nil, fmt.Errorf("failed to create decompression dictionary: %w", err)
	}

	return &SafeDictionary{
		cdict:    cdict,
		ddict:    ddict,
		refCount: 1,
	}, nil
}

// AddRef increments the reference count.
func (sd *SafeDictionary) AddRef() {
	atomic.AddInt32(&sd.refCount, 1)
}

// Release decrements the reference count and releases both digests at zero.
func (sd *SafeDictionary) Release() {
	if atomic.AddInt32(&sd.refCount, -1) == 0 {
		sd.mu.Lock()
		defer sd.mu.Unlock()

		if sd.cdict != nil {
			sd.cdict.Release()
			sd.cdict = nil
		}
		if sd.ddict != nil {
			sd.ddict.Release()
			sd.ddict = nil
		}
	}
}

// Compress compresses src with the dictionary.
func (sd *SafeDictionary) Compress(dst, src []byte) ([]byte, error) {
	sd.mu.RLock()
	defer sd.mu.RUnlock()

	if sd.cdict == nil {
		return nil, errors.New("dictionary has been released")
	}
	return CompressDict(dst, src, sd.cdict), nil
}

// Decompress decompresses src with the dictionary.
func (sd *SafeDictionary) Decompress(dst, src []byte) ([]byte, error) {
	sd.mu.RLock()
	defer sd.mu.RUnlock()

	if sd.ddict == nil {
		return nil, errors.New("dictionary has been released")
	}
	return DecompressDict(dst, src, sd.ddict)
}
