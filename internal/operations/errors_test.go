package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindNotFound, ErrNotFound},
		{KindBackup, ErrBackupFailed},
		{KindRestore, ErrRestoreFailed},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("outer: %w", &Error{Kind: tt.kind, Op: "op", Err: cause})
			require.Equal(t, tt.kind, KindOf(err))
			require.ErrorIs(t, err, tt.sentinel)
			require.ErrorIs(t, err, cause)
			for _, other := range tests {
				if other.kind != tt.kind {
					require.NotErrorIs(t, err, other.sentinel)
				}
			}
		})
	}
	require.Equal(t, KindUnknown, KindOf(cause))
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := &Error{Kind: KindBackup, Op: "inner", Err: errors.New("x")}
	require.Same(t, inner, wrap(KindBackup, "outer", inner))
	require.Nil(t, wrap(KindBackup, "outer", nil))
	require.Equal(t, "outer: x", wrap(KindRestore, "outer", errors.New("x")).Error())
}
