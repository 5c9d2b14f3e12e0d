package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voicetype/voicetype/internal/cli"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"voicetype\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("transcription timed out after 30s")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "voicetype", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "voicetype", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "voicetype stream", helpHintTarget(root, []string{"stream"}))
	require.Equal(t, "voicetype stream", helpHintTarget(root, []string{"stream", "--verbose"}))
}
