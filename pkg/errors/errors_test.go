package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("signup.cutoff", "Signups close 24 hours before start", http.StatusConflict)
	require.Equal(t, "Signups close 24 hours before start", err.Error())

	wrapped := err.WithInternal(stderrors.New("db down"))
	require.Contains(t, wrapped.Error(), "db down")
	require.ErrorIs(t, wrapped, wrapped.Internal)
}

func TestFromErrorPassesThroughAppError(t *testing.T) {
	require.Equal(t, ErrActivityFull, FromError(ErrActivityFull))
}

func TestFromErrorWrapsGenericError(t *testing.T) {
	err := FromError(stderrors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, err.Code)
	require.NotNil(t, err.Internal)
}

func TestFromErrorNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}
