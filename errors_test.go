package vibezstd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	_, err := Decompress(nil, []byte("definitely not a zstd frame"))
	require.Error(t, err)
	require.True(t, IsCorruptionError(err))

	var zerr *ZstdError
	switch e := err.(type) {
	case *CorruptionError:
		zerr = e.ZstdError
	default:
		t.Fatalf("unexpected error type %T", err)
	}
	require.NotEmpty(t, zerr.Operation)
	require.Contains(t, zerr.Error(), zerr.Message)
	require.False(t, zerr.IsRecoverable())
}

func TestDictionaryMismatchErrorMessage(t *testing.T) {
	err := &DictionaryMismatchError{RequiredID: 42}
	require.Equal(t, "frame requires dictionary id 42 but no dictionary was supplied", err.Error())

	err = &DictionaryMismatchError{RequiredID: 42, SuppliedID: 7}
	require.Equal(t,
		"dictionary mismatch: frame requires dictionary id 42, supplied dictionary has id 7",
		err.Error())
}

func TestArgumentErrorsAreParameterErrors(t *testing.T) {
	err := newArgumentError("test op", "bad value")
	require.True(t, IsParameterError(err))
	require.True(t, err.IsRecoverable())
	require.Contains(t, err.Error(), "test op")
	require.Contains(t, err.Error(), "bad value")

	serr := newStreamStateError("test op", "out of order")
	require.True(t, IsStreamStateError(serr))
	require.False(t, serr.IsRecoverable())
}
