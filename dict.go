package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>

#define ZDICT_STATIC_LINKING_ONLY
#include <zdict.h>

#include <string.h>

// The following *_wrapper functions allow avoiding memory allocations
// during calls from Go.
// See https://github.com/golang/go/issues/24450 .

static ZSTD_CDict* ZSTD_createCDict_wrapper(void *dictBuffer, size_t dictSize, int compressionLevel) {
	return ZSTD_createCDict((const void *)dictBuffer, dictSize, compressionLevel);
}

static ZSTD_DDict* ZSTD_createDDict_wrapper(void *dictBuffer, size_t dictSize) {
	return ZSTD_createDDict((const void *)dictBuffer, dictSize);
}

static ZSTD_CDict* ZSTD_createCDict_byReference_wrapper(void *dictBuffer, size_t dictSize, int compressionLevel) {
	return ZSTD_createCDict_byReference((const void *)dictBuffer, dictSize, compressionLevel);
}

static ZSTD_DDict* ZSTD_createDDict_byReference_wrapper(void *dictBuffer, size_t dictSize) {
	return ZSTD_createDDict_byReference((const void *)dictBuffer, dictSize);
}

static size_t ZDICT_trainFromBuffer_cover_wrapper(void *dict, size_t dictCapacity,
		void *samples, size_t *samplesSizes, unsigned nbSamples,
		unsigned k, unsigned d, unsigned steps, int nbThreads,
		double splitPoint, unsigned shrinkDict, unsigned shrinkDictMaxRegression) {
	ZDICT_cover_params_t params;
	memset(&params, 0, sizeof(params));
	params.k = k;
	params.d = d;
	params.steps = steps;
	params.nbThreads = nbThreads;
	params.splitPoint = splitPoint;
	params.shrinkDict = shrinkDict;
	params.shrinkDictMaxRegression = shrinkDictMaxRegression;
	return ZDICT_optimizeTrainFromBuffer_cover(dict, dictCapacity,
		(const void *)samples, (const size_t *)samplesSizes, nbSamples, &params);
}

static size_t ZDICT_trainFromBuffer_fastCover_wrapper(void *dict, size_t dictCapacity,
		void *samples, size_t *samplesSizes, unsigned nbSamples,
		unsigned k, unsigned d, unsigned f, unsigned steps, int nbThreads,
		double splitPoint, unsigned accel, unsigned shrinkDict, unsigned shrinkDictMaxRegression) {
	ZDICT_fastCover_params_t params;
	memset(&params, 0, sizeof(params));
	params.k = k;
	params.d = d;
	params.f = f;
	params.steps = steps;
	params.nbThreads = nbThreads;
	params.splitPoint = splitPoint;
	params.accel = accel;
	params.shrinkDict = shrinkDict;
	params.shrinkDictMaxRegression = shrinkDictMaxRegression;
	return ZDICT_optimizeTrainFromBuffer_fastCover(dict, dictCapacity,
		(const void *)samples, (const size_t *)samplesSizes, nbSamples, &params);
}

static unsigned ZDICT_getDictID_wrapper(void *dict, size_t dictSize) {
	return ZDICT_getDictID((const void *)dict, dictSize);
}

static size_t ZDICT_getDictHeaderSize_wrapper(void *dict, size_t dictSize) {
	return ZDICT_getDictHeaderSize((const void *)dict, dictSize);
}

static unsigned ZSTD_getDictID_fromFrame_wrapper(void *src, size_t srcSize) {
	return ZSTD_getDictID_fromFrame((const void *)src, srcSize);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

const minDictLen = C.ZDICT_DICTSIZE_MIN

// DefaultDictSize is the trained-dictionary size used when callers give no
// explicit budget.
const DefaultDictSize = 112 * 1024

// BuildDict returns a dictionary trained from the given samples.
//
// The resulting dictionary size will be close to desiredDictLen.
//
// The returned dictionary may be passed to NewCDict* and NewDDict*.
func BuildDict(samples [][]byte, desiredDictLen int) []byte {
	dict, samplesBuf, samplesSizes := prepareTraining(samples, desiredDictLen)

	// Run ZDICT_trainFromBuffer under lock, since it looks like it
	// is unsafe for concurrent usage (it just randomly crashes).
	// TODO: remove this restriction.

	buildDictLock.Lock()
	result := C.ZDICT_trainFromBuffer(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)),
		unsafe.Pointer(&samplesBuf[0]),
		&samplesSizes[0],
		C.unsigned(len(samplesSizes)))
	buildDictLock.Unlock()
	if C.ZDICT_isError(result) != 0 {
		// Return empty dictionary, since the original samples are too small.
		return nil
	}

	return dict[:int(result)]
}

// CoverParams tunes the cover dictionary-training algorithm. Zero values let
// the trainer optimize the parameter itself.
type CoverParams struct {
	K                       int // segment size
	D                       int // dmer size
	Steps                   int // optimization steps
	NbThreads               int
	SplitPoint              float64 // fraction of samples used for training (0 means default)
	ShrinkDict              bool
	ShrinkDictMaxRegression int
}

// BuildDictCover trains a dictionary with the cover algorithm. A nil params
// lets the trainer pick everything.
func BuildDictCover(samples [][]byte, desiredDictLen int, params *CoverParams) ([]byte, error) {
	if len(samples) == 0 {
		return nil, newArgumentError("train dictionary", "samples cannot be empty")
	}
	if params == nil {
		params = &CoverParams{}
	}
	dict, samplesBuf, samplesSizes := prepareTraining(samples, desiredDictLen)

	buildDictLock.Lock()
	result := C.ZDICT_trainFromBuffer_cover_wrapper(
		unsafe.Pointer(&dict[0]), C.size_t(len(dict)),
		unsafe.Pointer(&samplesBuf[0]), &samplesSizes[0], C.unsigned(len(samplesSizes)),
		C.unsigned(params.K), C.unsigned(params.D), C.unsigned(params.Steps),
		C.int(params.NbThreads), C.double(params.SplitPoint),
		C.unsigned(boolToParam(params.ShrinkDict)), C.unsigned(params.ShrinkDictMaxRegression))
	buildDictLock.Unlock()
	if C.ZDICT_isError(result) != 0 {
		return nil, &DictionaryError{&ZstdError{
			Code:        34,
			Operation:   "train dictionary (cover)",
			Message:     C.GoString(C.ZDICT_getErrorName(result)),
			Recoverable: false,
			Suggestion:  "supply more or larger samples, or loosen the cover parameters",
		}}
	}
	return dict[:int(result)], nil
}

// FastCoverParams tunes the fast-cover dictionary-training algorithm.
type FastCoverParams struct {
	K                       int
	D                       int
	F                       int // log of the frequency array size
	Steps                   int
	NbThreads               int
	SplitPoint              float64
	Accel                   int // acceleration, 1..10
	ShrinkDict              bool
	ShrinkDictMaxRegression int
}

// BuildDictFastCover trains a dictionary with the fast-cover algorithm. A nil
// params lets the trainer pick everything.
func BuildDictFastCover(samples [][]byte, desiredDictLen int, params *FastCoverParams) ([]byte, error) {
	if len(samples) == 0 {
		return nil, newArgumentError("train dictionary", "samples cannot be empty")
	}
	if params == nil {
		params = &FastCoverParams{}
	}
	dict, samplesBuf, samplesSizes := prepareTraining(samples, desiredDictLen)

	buildDictLock.Lock()
	result := C.ZDICT_trainFromBuffer_fastCover_wrapper(
		unsafe.Pointer(&dict[0]), C.size_t(len(dict)),
		unsafe.Pointer(&samplesBuf[0]), &samplesSizes[0], C.unsigned(len(samplesSizes)),
		C.unsigned(params.K), C.unsigned(params.D), C.unsigned(params.F),
		C.unsigned(params.Steps), C.int(params.NbThreads), C.double(params.SplitPoint),
		C.unsigned(params.Accel),
		C.unsigned(boolToParam(params.ShrinkDict)), C.unsigned(params.ShrinkDictMaxRegression))
	buildDictLock.Unlock()
	if C.ZDICT_isError(result) != 0 {
		return nil, &DictionaryError{&ZstdError{
			Code:        34,
			Operation:   "train dictionary (fast cover)",
			Message:     C.GoString(C.ZDICT_getErrorName(result)),
			Recoverable: false,
			Suggestion:  "supply more or larger samples, or loosen the fast-cover parameters",
		}}
	}
	return dict[:int(result)], nil
}

// prepareTraining flattens samples into the single buffer + sizes array shape
// ZDICT wants, padding with fake samples when the corpus is too small for the
// trainer to accept.
func prepareTraining(samples [][]byte, desiredDictLen int) ([]byte, []byte, []C.size_t) {
	if desiredDictLen < minDictLen {
		desiredDictLen = minDictLen
	}
	dict := make([]byte, desiredDictLen)

	samplesBufLen := 0
	for _, sample := range samples {
		samplesBufLen += len(sample)
	}

	samplesBuf := make([]byte, 0, samplesBufLen)
	samplesSizes := make([]C.size_t, 0, len(samples))
	for _, sample := range samples {
		if len(sample) == 0 {
			// Skip empty samples.
			continue
		}
		samplesBuf = append(samplesBuf, sample...)
		samplesSizes = append(samplesSizes, C.size_t(len(sample)))
	}

	minSamplesBufLen := int(C.ZDICT_CONTENTSIZE_MIN)
	if minSamplesBufLen < minDictLen {
		minSamplesBufLen = minDictLen
	}
	for samplesBufLen < minSamplesBufLen {
		fakeSample := []byte(fmt.Sprintf("this is a fake sample %d", samplesBufLen))
		samplesBuf = append(samplesBuf, fakeSample...)
		samplesSizes = append(samplesSizes, C.size_t(len(fakeSample)))
		samplesBufLen += len(fakeSample)
	}

	return dict, samplesBuf, samplesSizes
}

var buildDictLock sync.Mutex

// GetDictID returns the id embedded in a trained dictionary blob, or 0 for
// raw content.
func GetDictID(dict []byte) uint32 {
	if len(dict) == 0 {
		return 0
	}
	id := C.ZDICT_getDictID_wrapper(unsafe.Pointer(&dict[0]), C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	return uint32(id)
}

// GetDictIDFromFrame returns the dictionary id a frame was compressed with,
// or 0 when the frame needs no dictionary (or hides the id).
func GetDictIDFromFrame(src []byte) uint32 {
	if len(src) == 0 {
		return 0
	}
	id := C.ZSTD_getDictID_fromFrame_wrapper(unsafe.Pointer(&src[0]), C.size_t(len(src)))
	runtime.KeepAlive(src)
	return uint32(id)
}

// DictHeaderSize returns the size of the entropy-table header of a trained
// dictionary blob.
func DictHeaderSize(dict []byte) (int, error) {
	if len(dict) == 0 {
		return 0, newArgumentError("dict header size", "dict cannot be empty")
	}
	result := C.ZDICT_getDictHeaderSize_wrapper(unsafe.Pointer(&dict[0]), C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	if C.ZDICT_isError(result) != 0 {
		return 0, &DictionaryError{&ZstdError{
			Code:        30,
			Operation:   "dict header size",
			Message:     C.GoString(C.ZDICT_getErrorName(result)),
			Recoverable: false,
			Suggestion:  "pass a trained dictionary blob",
		}}
	}
	return int(result), nil
}

// EstimateCDictMemory predicts the memory footprint of a compression
// dictionary built from dictSize bytes at the given level, without building
// it.
func EstimateCDictMemory(dictSize, compressionLevel int) uint64 {
	return uint64(C.ZSTD_estimateCDictSize(C.size_t(dictSize), C.int(compressionLevel)))
}

// EstimateDDictMemory predicts the memory footprint of a decompression
// dictionary built from dictSize bytes.
func EstimateDDictMemory(dictSize int) uint64 {
	return uint64(C.ZSTD_estimateDDictSize(C.size_t(dictSize), C.ZSTD_dlm_byCopy))
}

// CDict is a dictionary used for compression.
//
// A single CDict may be re-used in concurrently running goroutines.
type CDict struct {
	p                *C.ZSTD_CDict
	compressionLevel int
	refCount         int64 // atomic reference counter
	released         int64 // atomic flag indicating if dictionary is released
	generation       int64 // atomic generation counter to prevent ABA problem

	// byRefData pins caller-owned dict bytes for by-reference dictionaries.
	byRefData []byte
}

// NewCDict creates new CDict from the given dict.
//
// Call Release when the returned dict is no longer used.
func NewCDict(dict []byte) (*CDict, error) {
	return NewCDictLevel(dict, DefaultCompressionLevel)
}

// NewCDictLevel creates new CDict from the given dict
// using the given compressionLevel.
//
// Call Release when the returned dict is no longer used.
func NewCDictLevel(dict []byte, compressionLevel int) (*CDict, error) {
	if len(dict) == 0 {
		return nil, newArgumentError("new dictionary", "dict cannot be empty")
	}

	cd := &CDict{
		p: C.ZSTD_createCDict_wrapper(
			unsafe.Pointer(&dict[0]),
			C.size_t(len(dict)),
			C.int(compressionLevel)),
		compressionLevel: compressionLevel,
		refCount:         1,
	}
	// Prevent from GC'ing of dict during CGO call above.
	runtime.KeepAlive(dict)
	runtime.SetFinalizer(cd, freeCDict)
	return cd, nil
}

// NewCDictByRef creates new CDict from the given dict without copying the
// dict data. The dict bytes are pinned by the returned CDict.
//
// Call Release when the returned dict is no longer used.
func NewCDictByRef(dict []byte) (*CDict, error) {
	return NewCDictByRefLevel(dict, DefaultCompressionLevel)
}

// NewCDictByRefLevel is NewCDictByRef with an explicit compression level.
func NewCDictByRefLevel(dict []byte, compressionLevel int) (*CDict, error) {
	if len(dict) == 0 {
		return nil, newArgumentError("new dictionary", "dict cannot be empty")
	}

	cd := &CDict{
		p: C.ZSTD_createCDict_byReference_wrapper(
			unsafe.Pointer(&dict[0]),
			C.size_t(len(dict)),
			C.int(compressionLevel)),
		compressionLevel: compressionLevel,
		refCount:         1,
		byRefData:        dict,
	}
	runtime.KeepAlive(dict)
	runtime.SetFinalizer(cd, freeCDict)
	return cd, nil
}

// Size returns the dictionary's in-memory footprint, which differs from the
// trained blob length.
func (cd *CDict) Size() uint64 {
	if !cd.acquireRef() {
		return 0
	}
	defer cd.releaseRef()
	return uint64(C.ZSTD_sizeof_CDict(cd.p))
}

// ID returns the dictionary id, 0 for raw/untrained content.
func (cd *CDict) ID() uint32 {
	if !cd.acquireRef() {
		return 0
	}
	defer cd.releaseRef()
	return uint32(C.ZSTD_getDictID_fromCDict(cd.p))
}

// acquireRef safely acquires a reference to the dictionary.
// Returns true if successful, false if dictionary is already released.
// Uses a generation counter to prevent the ABA problem where the dictionary
// is freed and reallocated.
func (cd *CDict) acquireRef() bool {
	for {
		generation := atomic.LoadInt64(&cd.generation)

		if atomic.LoadInt64(&cd.released) != 0 {
			return false
		}

		oldCount := atomic.LoadInt64(&cd.refCount)
		if oldCount <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt64(&cd.refCount, oldCount, oldCount+1) {
			if atomic.LoadInt64(&cd.generation) != generation {
				atomic.AddInt64(&cd.refCount, -1)
				return false
			}
			if atomic.LoadInt64(&cd.released) != 0 {
				atomic.AddInt64(&cd.refCount, -1)
				return false
			}
			return true
		}
	}
}

// releaseRef drops one reference, freeing the dictionary on the last one.
func (cd *CDict) releaseRef() {
	newCount := atomic.AddInt64(&cd.refCount, -1)
	if newCount == 0 {
		if cd.p != nil {
			result := C.ZSTD_freeCDict(cd.p)
			ensureNoError("ZSTD_freeCDict", result)
			cd.p = nil
		}
		cd.byRefData = nil
	} else if newCount < 0 {
		panic("BUG: CDict reference count went negative")
	}
}

// Release releases resources occupied by cd.
//
// cd cannot be used after the release.
func (cd *CDict) Release() {
	if cd == nil {
		return
	}
	if !atomic.CompareAndSwapInt64(&cd.released, 0, 1) {
		return
	}
	atomic.AddInt64(&cd.generation, 1)
	cd.releaseRef()
}

func freeCDict(v interface{}) {
	v.(*CDict).Release()
}

// DDict is a dictionary used for decompression.
//
// A single DDict may be re-used in concurrently running goroutines.
type DDict struct {
	p          *C.ZSTD_DDict
	refCount   int64 // atomic reference counter
	released   int64 // atomic flag indicating if dictionary is released
	generation int64 // atomic generation counter to prevent ABA problem

	byRefData []byte
}

// NewDDict creates new DDict from the given dict.
//
// Call Release when the returned dict is no longer needed.
func NewDDict(dict []byte) (*DDict, error) {
	if len(dict) == 0 {
		return nil, newArgumentError("new dictionary", "dict cannot be empty")
	}

	dd := &DDict{
		p: C.ZSTD_createDDict_wrapper(
			unsafe.Pointer(&dict[0]),
			C.size_t(len(dict))),
		refCount: 1,
	}
	// Prevent from GC'ing of dict during CGO call above.
	runtime.KeepAlive(dict)
	runtime.SetFinalizer(dd, freeDDict)
	return dd, nil
}

// NewDDictByRef creates new DDict from the given dict without copying the
// dict data. The dict bytes are pinned by the returned DDict.
//
// Call Release when the returned dict is no longer needed.
func NewDDictByRef(dict []byte) (*DDict, error) {
	if len(dict) == 0 {
		return nil, newArgumentError("new dictionary", "dict cannot be empty")
	}

	dd := &DDict{
		p: C.ZSTD_createDDict_byReference_wrapper(
			unsafe.Pointer(&dict[0]),
			C.size_t(len(dict))),
		refCount:  1,
		byRefData: dict,
	}
	runtime.KeepAlive(dict)
	runtime.SetFinalizer(dd, freeDDict)
	return dd, nil
}

// Size returns the dictionary's in-memory footprint.
func (dd *DDict) Size() uint64 {
	if !dd.acquireRef() {
		return 0
	}
	defer dd.releaseRef()
	return uint64(C.ZSTD_sizeof_DDict(dd.p))
}

// ID returns the dictionary id, 0 for raw/untrained content.
func (dd *DDict) ID() uint32 {
	if !dd.acquireRef() {
		return 0
	}
	defer dd.releaseRef()
	return uint32(C.ZSTD_getDictID_fromDDict(dd.p))
}

// acquireRef safely acquires a reference to the dictionary.
func (dd *DDict) acquireRef() bool {
	for {
		generation := atomic.LoadInt64(&dd.generation)

		if atomic.LoadInt64(&dd.released) != 0 {
			return false
		}

		oldCount := atomic.LoadInt64(&dd.refCount)
		if oldCount <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt64(&dd.refCount, oldCount, oldCount+1) {
			if atomic.LoadInt64(&dd.generation) != generation {
				atomic.AddInt64(&dd.refCount, -1)
				return false
			}
			if atomic.LoadInt64(&dd.released) != 0 {
				atomic.AddInt64(&dd.refCount, -1)
				return false
			}
			return true
		}
	}
}

// releaseRef drops one reference, freeing the dictionary on the last one.
func (dd *DDict) releaseRef() {
	newCount := atomic.AddInt64(&dd.refCount, -1)
	if newCount == 0 {
		if dd.p != nil {
			result := C.ZSTD_freeDDict(dd.p)
			ensureNoError("ZSTD_freeDDict", result)
			dd.p = nil
		}
		dd.byRefData = nil
	} else if newCount < 0 {
		panic("BUG: DDict reference count went negative")
	}
}

// Release releases resources occupied by dd.
//
// dd cannot be used after the release.
func (dd *DDict) Release() {
	if dd == nil {
		return
	}
	if !atomic.CompareAndSwapInt64(&dd.released, 0, 1) {
		return
	}
	atomic.AddInt64(&dd.generation, 1)
	dd.releaseRef()
}

func freeDDict(v interface{}) {
	v.(*DDict).Release()
}
