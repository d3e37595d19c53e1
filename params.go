package vibezstd

/*
#cgo CFLAGS: -O3

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
*/
import "C"

import (
	"fmt"
	"sort"
)

type CParameter int

// The right way to make these enums is by importing the zstd.h header and
// assigning their values from the cgo interface. However, I cannot for the
// life of me figure out how to actually get cgo to do this.

const (
	/* Set compression parameters according to pre-defined cLevel table.
	 * Default level is ZSTD_CLEVEL_DEFAULT==3.
	 * Special: value 0 means default.
	 * Note: setting a level resets all other compression parameters to default. */
	ZSTD_c_compressionLevel CParameter = 100

	/* Maximum allowed back-reference distance, expressed as power of 2.
	 * This sets a memory budget for streaming decompression,
	 * with larger values requiring more memory and typically compressing more. */
	ZSTD_c_windowLog CParameter = 101

	/* Size of the initial probe table, as a power of 2.
	 * Resulting memory usage is (1 << (hashLog+2)). */
	ZSTD_c_hashLog CParameter = 102

	/* Size of the multi-probe search table, as a power of 2.
	 * Resulting memory usage is (1 << (chainLog+2)). */
	ZSTD_c_chainLog CParameter = 103

	/* Number of search attempts, as a power of 2.
	 * More attempts result in better and slower compression. */
	ZSTD_c_searchLog CParameter = 104

	/* Minimum size of searched matches. */
	ZSTD_c_minMatch CParameter = 105

	/* Strategy-dependent length target; see zstd.h. */
	ZSTD_c_targetLength CParameter = 106

	/* See ZSTD_strategy enum definition.
	 * The higher the value, the stronger and slower the compression. */
	ZSTD_c_strategy CParameter = 107

	/* Attempts to fit compressed block size around targetCBlockSize.
	 * No guarantee on compressed block size (default:0 == disabled). */
	ZSTD_c_targetCBlockSize CParameter = 130

	/* Long distance matching: improves ratio for large inputs at the cost of
	 * memory and window size. */
	ZSTD_c_enableLongDistanceMatching CParameter = 160
	ZSTD_c_ldmHashLog                 CParameter = 161
	ZSTD_c_ldmMinMatch                CParameter = 162
	ZSTD_c_ldmBucketSizeLog           CParameter = 163
	ZSTD_c_ldmHashRateLog             CParameter = 164

	/* Content size will be written into frame header whenever known (default:1). */
	ZSTD_c_contentSizeFlag CParameter = 200

	/* A 32-bit checksum of content is written at end of frame (default:0). */
	ZSTD_c_checksumFlag CParameter = 201

	/* When applicable, dictionary's ID is written into frame header (default:1). */
	ZSTD_c_dictIDFlag CParameter = 202

	/* Multi-threading parameters. Only useful when libzstd is compiled with
	 * ZSTD_MULTITHREAD; they return an error otherwise. */
	ZSTD_c_nbWorkers  CParameter = 400
	ZSTD_c_jobSize    CParameter = 401
	ZSTD_c_overlapLog CParameter = 402

	/* Creates periodical synchronization points to make compressed data more
	 * suitable for rsync delta transfers (default:0 == disabled).
	 * Only works when multithreading is enabled. */
	ZSTD_c_rsyncable CParameter = 500

	/* User's best guess of source size. Helps ratio when close to actual size. */
	ZSTD_c_srcSizeHint CParameter = 1004

	/* Stable input/output buffer contracts; see zstd.h. */
	ZSTD_c_stableInBuffer  CParameter = 1006
	ZSTD_c_stableOutBuffer CParameter = 1007
)

type DParameter int

const (
	/* Maximum window size the decoder will accept, as a power of 2.
	 * Protects the decoder from hostile frames requesting huge windows. */
	ZSTD_d_windowLogMax DParameter = 100
)

type ZSTD_ResetDirective int

const (
	ZSTD_reset_session_only           ZSTD_ResetDirective = 1
	ZSTD_reset_parameters             ZSTD_ResetDirective = 2
	ZSTD_reset_session_and_parameters ZSTD_ResetDirective = 3
)

type ZSTD_CompressionStrategy int

const (
	ZSTD_fast     ZSTD_CompressionStrategy = 1
	ZSTD_dfast    ZSTD_CompressionStrategy = 2
	ZSTD_greedy   ZSTD_CompressionStrategy = 3
	ZSTD_lazy     ZSTD_CompressionStrategy = 4
	ZSTD_lazy2    ZSTD_CompressionStrategy = 5
	ZSTD_btlazy2  ZSTD_CompressionStrategy = 6
	ZSTD_btopt    ZSTD_CompressionStrategy = 7
	ZSTD_btultra  ZSTD_CompressionStrategy = 8
	ZSTD_btultra2 ZSTD_CompressionStrategy = 9
	/* note : new strategies _might_ be added in the future.
	   Only the order (from fast to strong) is guaranteed */
)

// ===== Name registry =====
//
// Every settable parameter is exposed through a single name->descriptor table
// plus one generic bounds-checked setter/getter, instead of one bespoke
// accessor pair per parameter. Bounds come from the codec itself
// (ZSTD_cParam_getBounds / ZSTD_dParam_getBounds), never from hardcoded
// copies that could drift from the linked library.

type paramKind int

const (
	paramInt paramKind = iota
	paramBool
)

type cParamDesc struct {
	param CParameter
	kind  paramKind
	// canonical is set on alias entries and names the primary spelling.
	canonical string
}

type dParamDesc struct {
	param     DParameter
	kind      paramKind
	canonical string
}

// cctxParamTable maps parameter names to compression codec slots. Canonical
// spellings are snake_case as in the zstd manual; the remaining entries are
// historical aliases.
var cctxParamTable = map[string]cParamDesc{
	"compression_level":  {ZSTD_c_compressionLevel, paramInt, ""},
	"window_log":         {ZSTD_c_windowLog, paramInt, ""},
	"hash_log":           {ZSTD_c_hashLog, paramInt, ""},
	"chain_log":          {ZSTD_c_chainLog, paramInt, ""},
	"search_log":         {ZSTD_c_searchLog, paramInt, ""},
	"min_match":          {ZSTD_c_minMatch, paramInt, ""},
	"target_length":      {ZSTD_c_targetLength, paramInt, ""},
	"strategy":           {ZSTD_c_strategy, paramInt, ""},
	"target_cblock_size": {ZSTD_c_targetCBlockSize, paramInt, ""},

	"enable_long_distance_matching": {ZSTD_c_enableLongDistanceMatching, paramBool, ""},
	"ldm_hash_log":                  {ZSTD_c_ldmHashLog, paramInt, ""},
	"ldm_min_match":                 {ZSTD_c_ldmMinMatch, paramInt, ""},
	"ldm_bucket_size_log":           {ZSTD_c_ldmBucketSizeLog, paramInt, ""},
	"ldm_hash_rate_log":             {ZSTD_c_ldmHashRateLog, paramInt, ""},

	"content_size_flag": {ZSTD_c_contentSizeFlag, paramBool, ""},
	"checksum_flag":     {ZSTD_c_checksumFlag, paramBool, ""},
	"dict_id_flag":      {ZSTD_c_dictIDFlag, paramBool, ""},

	"nb_workers":  {ZSTD_c_nbWorkers, paramInt, ""},
	"job_size":    {ZSTD_c_jobSize, paramInt, ""},
	"overlap_log": {ZSTD_c_overlapLog, paramInt, ""},

	"rsyncable":     {ZSTD_c_rsyncable, paramBool, ""},
	"src_size_hint": {ZSTD_c_srcSizeHint, paramInt, ""},

	"stable_in_buffer":  {ZSTD_c_stableInBuffer, paramBool, ""},
	"stable_out_buffer": {ZSTD_c_stableOutBuffer, paramBool, ""},

	// Historical aliases.
	"level":    {ZSTD_c_compressionLevel, paramInt, "compression_level"},
	"workers":  {ZSTD_c_nbWorkers, paramInt, "nb_workers"},
	"checksum": {ZSTD_c_checksumFlag, paramBool, "checksum_flag"},
	"ldm":      {ZSTD_c_enableLongDistanceMatching, paramBool, "enable_long_distance_matching"},
}

// dctxParamTable is the decompression analog. The decoder exposes a single
// tunable.
var dctxParamTable = map[string]dParamDesc{
	"window_log_max": {ZSTD_d_windowLogMax, paramInt, ""},

	// Historical alias.
	"max_window_log": {ZSTD_d_windowLogMax, paramInt, "window_log_max"},
}

// CompressionParameterNames returns the canonical compression parameter names
// in sorted order, excluding aliases.
func CompressionParameterNames() []string {
	names := make([]string, 0, len(cctxParamTable))
	for name, desc := range cctxParamTable {
		if desc.canonical == "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DecompressionParameterNames returns the canonical decompression parameter
// names in sorted order, excluding aliases.
func DecompressionParameterNames() []string {
	names := make([]string, 0, len(dctxParamTable))
	for name, desc := range dctxParamTable {
		if desc.canonical == "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func lookupCParam(name string) (cParamDesc, error) {
	desc, ok := cctxParamTable[name]
	if !ok {
		return cParamDesc{}, newArgumentError("set parameter", fmt.Sprintf("unknown parameter: %s", name))
	}
	return desc, nil
}

// cParamName maps a compression codec slot back to its canonical registry
// name. Alias entries are skipped so the reverse mapping is unambiguous.
func cParamName(param CParameter) (string, bool) {
	for name, desc := range cctxParamTable {
		if desc.param == param && desc.canonical == "" {
			return name, true
		}
	}
	return "", false
}

func lookupDParam(name string) (dParamDesc, error) {
	desc, ok := dctxParamTable[name]
	if !ok {
		return dParamDesc{}, newArgumentError("set parameter", fmt.Sprintf("unknown parameter: %s", name))
	}
	return desc, nil
}

// cParamBounds asks the codec for the valid range of a compression parameter.
func cParamBounds(param CParameter) (int, int, error) {
	bounds := C.ZSTD_cParam_getBounds(C.ZSTD_cParameter(param))
	if C.ZSTD_isError(bounds.error) != 0 {
		return 0, 0, mapZstdError(bounds.error, "query parameter bounds", ErrorContext{})
	}
	return int(bounds.lowerBound), int(bounds.upperBound), nil
}

// dParamBounds asks the codec for the valid range of a decompression parameter.
func dParamBounds(param DParameter) (int, int, error) {
	bounds := C.ZSTD_dParam_getBounds(C.ZSTD_dParameter(param))
	if C.ZSTD_isError(bounds.error) != 0 {
		return 0, 0, mapZstdError(bounds.error, "query parameter bounds", ErrorContext{})
	}
	return int(bounds.lowerBound), int(bounds.upperBound), nil
}

// CParamBounds returns the codec-reported {min, max} for a named compression
// parameter.
func CParamBounds(name string) (min, max int, err error) {
	desc, err := lookupCParam(name)
	if err != nil {
		return 0, 0, err
	}
	return cParamBounds(desc.param)
}

// DParamBounds returns the codec-reported {min, max} for a named
// decompression parameter.
func DParamBounds(name string) (min, max int, err error) {
	desc, err := lookupDParam(name)
	if err != nil {
		return 0, 0, err
	}
	return dParamBounds(desc.param)
}

// checkCParamValue validates value against the codec-reported bounds before
// any codec call, so the error can name the parameter and its range.
func checkCParamValue(name string, desc cParamDesc, value int) error {
	min, max, err := cParamBounds(desc.param)
	if err != nil {
		return err
	}
	if value < min || value > max {
		return newArgumentError("set parameter",
			fmt.Sprintf("%s must be between %d and %d (got %d)", name, min, max, value))
	}
	return nil
}

func checkDParamValue(name string, desc dParamDesc, value int) error {
	min, max, err := dParamBounds(desc.param)
	if err != nil {
		return err
	}
	if value < min || value > max {
		return newArgumentError("set parameter",
			fmt.Sprintf("%s must be between %d and %d (got %d)", name, min, max, value))
	}
	return nil
}

// boolToParam coerces a typed boolean to the codec's 0/1 representation.
func boolToParam(v bool) int {
	if v {
		return 1
	}
	return 0
}

func checkResetDirective(directive ZSTD_ResetDirective) error {
	switch directive {
	case ZSTD_reset_session_only, ZSTD_reset_parameters, ZSTD_reset_session_and_parameters:
		return nil
	}
	return newArgumentError("reset context",
		fmt.Sprintf("invalid reset directive %d: must be 1 (session only), 2 (parameters), or 3 (session and parameters)", directive))
}
