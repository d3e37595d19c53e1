package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>

#include <stdint.h>  // for uintptr_t

static ZSTD_threadPool* ZSTD_createThreadPool_wrapper(size_t numThreads) {
    return ZSTD_createThreadPool(numThreads);
}

static size_t ZSTD_CCtx_refThreadPool_wrapper(uintptr_t cctx, uintptr_t pool) {
    return ZSTD_CCtx_refThreadPool((ZSTD_CCtx*)cctx, (ZSTD_threadPool*)pool);
}
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"
)

// Process-wide shared worker pool, referenced by every multi-threaded
// compression session instead of spawning per-session threads.
var (
	globalThreadPool     *C.ZSTD_threadPool
	globalThreadPoolOnce sync.Once
)

// getGlobalThreadPool returns the shared worker pool, creating it on first use
// with one thread per CPU.
func getGlobalThreadPool() *C.ZSTD_threadPool {
	globalThreadPoolOnce.Do(func() {
		globalThreadPool = C.ZSTD_createThreadPool_wrapper(C.size_t(runtime.NumCPU()))
	})
	return globalThreadPool
}

// useThreadPool points the compression context at the shared worker pool.
// Called whenever nb_workers is set above zero.
func useThreadPool(cctx *C.ZSTD_CCtx) {
	pool := getGlobalThreadPool()
	if pool != nil {
		result := C.ZSTD_CCtx_refThreadPool_wrapper(
			C.uintptr_t(uintptr(unsafe.Pointer(cctx))),
			C.uintptr_t(uintptr(unsafe.Pointer(pool))))
		ensureNoError("ZSTD_CCtx_refThreadPool", result)
	}
}
