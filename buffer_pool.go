package vibezstd

import (
	"sync"
	"sync/atomic"
)

// bufferPool manages reusable byte slices with size-based pools.
type bufferPool struct {
	pools    []*sync.Pool // size classes: 1KB, 2KB, 4KB, ... 512KB
	maxItems int64        // maximum items per pool to prevent unbounded growth
	counts   []int64      // current count per pool (atomic)
}

var globalBufferPool = &bufferPool{
	pools:    make([]*sync.Pool, 10),
	maxItems: 50,
	counts:   make([]int64, 10),
}

func init() {
	for i := range globalBufferPool.pools {
		size := 1024 << i
		globalBufferPool.pools[i] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, size)
			},
		}
	}
}

// GetBuffer returns a buffer with at least minCapacity.
// The returned buffer has zero length but guaranteed capacity.
func GetBuffer(minCapacity int) []byte {
	if minCapacity <= 0 {
		return nil
	}

	for i, pool := range globalBufferPool.pools {
		poolSize := 1024 << i
		if poolSize >= minCapacity {
			if buf := pool.Get(); buf != nil {
				b := buf.([]byte)
				if cap(b) >= minCapacity {
					atomic.AddInt64(&globalBufferPool.counts[i], -1)
					return b[:0]
				}
			}
			return make([]byte, 0, poolSize)
		}
	}

	// Very large buffers (>512KB) are allocated directly.
	return make([]byte, 0, minCapacity)
}

// PutBuffer returns a buffer to the pool for reuse.
// The buffer must not be used after calling PutBuffer.
func PutBuffer(buf []byte) {
	if buf == nil {
		return
	}

	capacity := cap(buf)
	for i, pool := range globalBufferPool.pools {
		poolSize := 1024 << i
		if poolSize == capacity {
			if atomic.LoadInt64(&globalBufferPool.counts[i]) < globalBufferPool.maxItems {
				pool.Put(buf[:0])
				atomic.AddInt64(&globalBufferPool.counts[i], 1)
			}
			return
		}
	}

	// Non-standard size, let GC handle it.
}

// GetCompressBuffer returns a buffer sized for compression output of
// inputSize bytes.
func GetCompressBuffer(inputSize int) []byte {
	estimatedSize := inputSize + (inputSize >> 8) + 64
	return GetBuffer(estimatedSize)
}

// GetDecompressBuffer returns a buffer sized for decompression output, using
// the decompressed-size hint when available.
func GetDecompressBuffer(hint int) []byte {
	if hint <= 0 {
		hint = 64 * 1024
	}
	return GetBuffer(hint)
}

// OptimizeBuffer trades a mostly-empty buffer for a tighter one, returning
// the original when the waste is below half the capacity.
func OptimizeBuffer(buf []byte) []byte {
	if buf == nil {
		return nil
	}

	length := len(buf)
	capacity := cap(buf)

	if capacity > length*2 && length > 0 {
		newBuf := GetBuffer(length)
		if cap(newBuf) < length {
			return buf
		}
		newBuf = newBuf[:length]
		copy(newBuf, buf)

		PutBuffer(buf[:0])
		return newBuf
	}

	return buf
}

// BufferPoolStats describes buffer pool occupancy per size class.
type BufferPoolStats struct {
	PoolCounts   []int64 // items in each pool
	TotalBuffers int64   // total buffers across all pools
	PoolSizes    []int   // size class of each pool in bytes
}

// GetBufferPoolStats returns current buffer pool statistics.
func GetBufferPoolStats() BufferPoolStats {
	stats := BufferPoolStats{
		PoolCounts: make([]int64, len(globalBufferPool.pools)),
		PoolSizes:  make([]int, len(globalBufferPool.pools)),
	}

	for i := range globalBufferPool.pools {
		stats.PoolCounts[i] = atomic.LoadInt64(&globalBufferPool.counts[i])
		stats.TotalBuffers += stats.PoolCounts[i]
		stats.PoolSizes[i] = 1024 << i
	}

	return stats
}

// ClearBufferPools drops all pooled buffers (useful for testing).
func ClearBufferPools() {
	for i := range globalBufferPool.pools {
		size := 1024 << i
		globalBufferPool.pools[i] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, size)
			},
		}
		atomic.StoreInt64(&globalBufferPool.counts[i], 0)
	}
}
