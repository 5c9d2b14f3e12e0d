package inject

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeEmptyTextIsNoOp(t *testing.T) {
	t.Parallel()

	require.NoError(t, Type(context.Background(), ""))
}

func TestTypeUnavailableWithoutTools(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	err := Type(context.Background(), "hello")
	require.ErrorIs(t, err, ErrUnavailable)
}
