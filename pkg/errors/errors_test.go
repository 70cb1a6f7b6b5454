package errors

import (
	"database/sql"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrValidation, "Validation failed: siteId: Site ID is required.")
	require.True(t, stderrors.Is(cloned, ErrValidation))
	require.False(t, stderrors.Is(cloned, ErrAlreadyActioned))
	require.Equal(t, http.StatusBadRequest, cloned.Status)
	require.Equal(t, "validation failed", ErrValidation.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.ErrorIs(t, appErr, sql.ErrConnDone)

	typed := Wrap(sql.ErrNoRows, ErrInvalidToken.Code, ErrInvalidToken.Status, ErrInvalidToken.Message)
	require.Same(t, typed, FromError(typed))
	require.Contains(t, typed.Error(), "no rows")
}
