package vibezstd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressionParameterRegistry(t *testing.T) {
	names := CompressionParameterNames()
	require.NotEmpty(t, names)
	require.Contains(t, names, "compression_level")
	require.Contains(t, names, "window_log")
	require.Contains(t, names, "checksum_flag")
	require.NotContains(t, names, "level", "aliases must not be listed as canonical")

	cctx := NewCCtx()
	defer cctx.Release()

	for _, name := range names {
		min, max, err := CParamBounds(name)
		require.NoError(t, err, "bounds for %s", name)
		require.LessOrEqual(t, min, max, "bounds for %s", name)

		require.NoError(t, cctx.Set(name, min), "setting %s to its lower bound", name)

		err = cctx.Set(name, max+1)
		require.Error(t, err, "value above the upper bound of %s", name)
		require.True(t, IsParameterError(err))
		require.Contains(t, err.Error(),
			fmt.Sprintf("%s must be between %d and %d (got %d)", name, min, max, max+1))
	}
}

func TestDecompressionParameterRegistry(t *testing.T) {
	names := DecompressionParameterNames()
	require.Equal(t, []string{"window_log_max"}, names)

	dctx := NewDCtx()
	defer dctx.Release()

	min, max, err := DParamBounds("window_log_max")
	require.NoError(t, err)
	require.Less(t, min, max)

	require.NoError(t, dctx.Set("window_log_max", min))
	got, err := dctx.Get("window_log_max")
	require.NoError(t, err)
	require.Equal(t, min, got)

	err = dctx.Set("window_log_max", max+1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "window_log_max must be between")
}

func TestUnknownParameterName(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	err := cctx.Set("bogus_setting", 1)
	require.Error(t, err)
	require.True(t, IsParameterError(err))
	require.Contains(t, err.Error(), "unknown parameter: bogus_setting")

	dctx := NewDCtx()
	defer dctx.Release()

	err = dctx.Set("bogus_setting", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown parameter: bogus_setting")
}

func TestParameterAliases(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	require.NoError(t, cctx.Set("level", 7))
	got, err := cctx.Get("compression_level")
	require.NoError(t, err)
	require.Equal(t, 7, got)

	require.NoError(t, cctx.SetBool("checksum", true))
	on, err := cctx.GetBool("checksum_flag")
	require.NoError(t, err)
	require.True(t, on)

	dctx := NewDCtx()
	defer dctx.Release()

	require.NoError(t, dctx.Set("max_window_log", 20))
	got, err = dctx.Get("window_log_max")
	require.NoError(t, err)
	require.Equal(t, 20, got)
}

func TestResetDirectiveValidation(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	for _, directive := range []ZSTD_ResetDirective{0, 4, -1} {
		err := cctx.Reset(directive)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid reset directive")
	}

	for _, directive := range []ZSTD_ResetDirective{
		ZSTD_reset_session_only,
		ZSTD_reset_parameters,
		ZSTD_reset_session_and_parameters,
	} {
		require.NoError(t, cctx.Reset(directive))
	}

	dctx := NewDCtx()
	defer dctx.Release()
	require.Error(t, dctx.Reset(0))
	require.NoError(t, dctx.Reset(ZSTD_reset_session_and_parameters))
}

func TestResetParametersRestoresDefaults(t *testing.T) {
	cctx := NewCCtx()
	defer cctx.Release()

	require.NoError(t, cctx.Set("compression_level", 19))
	got, err := cctx.Get("compression_level")
	require.NoError(t, err)
	require.Equal(t, 19, got)

	// Session-only reset keeps parameters.
	require.NoError(t, cctx.Reset(ZSTD_reset_session_only))
	got, err = cctx.Get("compression_level")
	require.NoError(t, err)
	require.Equal(t, 19, got)

	// Parameter reset restores codec defaults.
	require.NoError(t, cctx.Reset(ZSTD_reset_parameters))
	got, err = cctx.Get("compression_level")
	require.NoError(t, err)
	require.Equal(t, DefaultCompressionLevel, got)
}
