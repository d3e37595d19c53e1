package vibezstd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// StreamCompress compresses everything read from r into a single frame
// written to w.
func StreamCompress(w io.Writer, r io.Reader) error {
	return StreamCompressLevel(w, r, DefaultCompressionLevel)
}

// StreamCompressLevel is StreamCompress with an explicit compression level.
func StreamCompressLevel(w io.Writer, r io.Reader, compressionLevel int) error {
	zw := NewWriterLevel(w, compressionLevel)
	defer zw.Release()

	if _, err := io.Copy(zw, r); err != nil {
		return err
	}
	return zw.Close()
}

// StreamDecompress decompresses everything read from r into w.
func StreamDecompress(w io.Writer, r io.Reader) error {
	zr := NewReader(r)
	defer zr.Release()

	_, err := zr.WriteTo(w)
	return err
}

// CompressFile compresses srcPath into dstPath using streaming, so the file
// never has to fit in memory.
func CompressFile(srcPath, dstPath string) error {
	return CompressFileLevel(srcPath, dstPath, DefaultCompressionLevel)
}

// CompressFileLevel is CompressFile with an explicit compression level.
func CompressFileLevel(srcPath, dstPath string, compressionLevel int) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if err := StreamCompressLevel(dst, src, compressionLevel); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// DecompressFile decompresses srcPath into dstPath using streaming.
func DecompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if err := StreamDecompress(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// CompressString compresses a string.
func CompressString(s string) []byte {
	return Compress(nil, []byte(s))
}

// DecompressString decompresses to a string.
func DecompressString(data []byte) (string, error) {
	result, err := Decompress(nil, data)
	if err != nil {
		return "", err
	}
	return string(result), nil
}

// CompressReader wraps a reader so that reading from it yields the compressed
// form of the wrapped reader's bytes.
type CompressReader struct {
	reader io.Reader
	writer *Writer
	buffer *bytes.Buffer
	closed bool
	mu     sync.Mutex
}

// NewCompressReader creates a reader that compresses data on the fly.
func NewCompressReader(r io.Reader) *CompressReader {
	buf := &bytes.Buffer{}
	return &CompressReader{
		reader: r,
		writer: NewWriter(buf),
		buffer: buf,
	}
}

// Read implements io.Reader.
func (cr *CompressReader) Read(p []byte) (int, error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	for cr.buffer.Len() == 0 {
		if cr.closed {
			return 0, io.EOF
		}

		temp := make([]byte, 32*1024)
		n, err := cr.reader.Read(temp)
		if n > 0 {
			if _, werr := cr.writer.Write(temp[:n]); werr != nil {
				return 0, werr
			}
			if ferr := cr.writer.Flush(); ferr != nil {
				return 0, ferr
			}
		}
		if err == io.EOF {
			cr.closed = true
			if cerr := cr.writer.Close(); cerr != nil {
				return 0, cerr
			}
			break
		}
		if err != nil {
			return 0, err
		}
	}

	return cr.buffer.Read(p)
}

// Close releases the underlying compression session.
func (cr *CompressReader) Close() error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	var err error
	if !cr.closed {
		cr.closed = true
		err = cr.writer.Close()
	}
	cr.writer.Release()
	return err
}

// DecompressWriter wraps a writer so that compressed bytes written to it come
// out decompressed on the wrapped writer.
type DecompressWriter struct {
	writer io.Writer
	reader *Reader
	pipe   *io.PipeWriter
	done   chan error
}

// NewDecompressWriter creates a writer that decompresses data on the fly.
func NewDecompressWriter(w io.Writer) *DecompressWriter {
	pr, pw := io.Pipe()
	dw := &DecompressWriter{
		writer: w,
		reader: NewReader(pr),
		pipe:   pw,
		done:   make(chan error, 1),
	}

	go func() {
		_, err := io.Copy(w, dw.reader)
		// Close the read side before reporting, otherwise a decode error
		// would leave in-flight Write calls blocked on the pipe forever.
		pr.CloseWithError(err)
		dw.done <- err
		dw.reader.Release()
	}()

	return dw
}

// Write implements io.Writer.
func (dw *DecompressWriter) Write(p []byte) (int, error) {
	return dw.pipe.Write(p)
}

// Close flushes the remaining compressed input and waits for the
// decompression goroutine to finish.
func (dw *DecompressWriter) Close() error {
	err := dw.pipe.Close()
	if werr := <-dw.done; werr != nil && err == nil {
		err = werr
	}
	return err
}

// CompressWithContext compresses with context for cancellation. The
// compression itself is not interruptible; cancellation abandons the result.
func CompressWithContext(ctx context.Context, dst, src []byte) ([]byte, error) {
	done := make(chan []byte, 1)

	go func() {
		done <- Compress(dst, src)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-done:
		return result, nil
	}
}

// DecompressWithContext decompresses with context for cancellation.
func DecompressWithContext(ctx context.Context, dst, src []byte) ([]byte, error) {
	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		data, err := Decompress(dst, src)
		done <- outcome{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.data, o.err
	}
}

// BatchCompress compresses multiple inputs in parallel.
func BatchCompress(inputs [][]byte) [][]byte {
	results := make([][]byte, len(inputs))
	var wg sync.WaitGroup

	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = Compress(nil, inputs[idx])
		}(i)
	}
	wg.Wait()

	return results
}

// BatchDecompress decompresses multiple inputs in parallel.
func BatchDecompress(inputs [][]byte) ([][]byte, error) {
	results := make([][]byte, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup

	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = Decompress(nil, inputs[idx])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to decompress item %d: %w", i, err)
		}
	}
	return results, nil
}

// IsCompressed checks if data starts with a zstd compressed frame.
func IsCompressed(data []byte) bool {
	return IsValidZSTDFrame(data)
}
