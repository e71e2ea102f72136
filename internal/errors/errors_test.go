package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "verify %s", "abc"))
	})

	t.Run("wrapped keeps chain", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrInvalidToken, "verify %s", "abc")
		require.EqualError(t, err, "verify abc: invalid token")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidToken))
	})
}

func TestIsUnauthenticated(t *testing.T) {
	for _, err := range []error{
		apperrors.ErrMissingToken,
		apperrors.ErrInvalidToken,
		apperrors.ErrTokenExpired,
		apperrors.ErrTokenRevoked,
		fmt.Errorf("remote: %w", apperrors.ErrSessionLoadFailure),
	} {
		require.True(t, apperrors.IsUnauthenticated(err), err.Error())
	}

	require.False(t, apperrors.IsUnauthenticated(apperrors.ErrRoleMismatch))
	require.False(t, apperrors.IsUnauthenticated(nil))
}
