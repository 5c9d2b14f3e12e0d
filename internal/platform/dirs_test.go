package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateDirForPrefersXDG(t *testing.T) {
	t.Parallel()

	dir, err := StateDirFor("/home/u", "/home/u/.local/state")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/u/.local/state", "voicetype"), dir)
}

func TestStateDirForFallsBackToDotDir(t *testing.T) {
	t.Parallel()

	dir, err := StateDirFor("/home/u", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/u", ".voicetype"), dir)
}

func TestStateDirForRequiresHome(t *testing.T) {
	t.Parallel()

	_, err := StateDirFor("", "")
	require.Error(t, err)
}

func TestConfigDirFor(t *testing.T) {
	t.Parallel()

	dir, err := ConfigDirFor("/home/u", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/u", ".config", "voicetype"), dir)

	dir, err = ConfigDirFor("/home/u", "/cfg")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/cfg", "voicetype"), dir)
}
