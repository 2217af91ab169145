package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "agora", cmd.Use)
	assert.Contains(t, cmd.Long, "content-addressed")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"init", "put", "cat", "ls", "rm",
		"start", "checkout", "status", "clear",
		"argue", "chain", "audit", "reindex",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"root", "config"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue, name)
	}
}

func TestPutCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	putCmd, _, err := cmd.Find([]string{"put"})
	require.NoError(t, err)

	idFlag := putCmd.Flags().Lookup("id")
	require.NotNil(t, idFlag)
	assert.Equal(t, "", idFlag.DefValue)
}

func TestArgueCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	argueCmd, _, err := cmd.Find([]string{"argue"})
	require.NoError(t, err)

	defaults := map[string]string{
		"session":   "",
		"agent":     "",
		"kind":      "claim",
		"structure": "deductive",
		"content":   "",
		"target":    "",
		"subtype":   "",
	}
	for name, def := range defaults {
		flag := argueCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}

	assert.Equal(t, "deductive|inductive|empirical|abductive", argueCmd.Flags().Lookup("structure").Usage)
	subtype := argueCmd.Flags().Lookup("subtype").Usage
	assert.Contains(t, subtype, "rebuts: logical|empirical|ethical")
	assert.Contains(t, subtype, "concedes_to: full|partial|conditional")
	assert.Contains(t, subtype, "supports: evidence|reasoning")
}

func TestInvalidFormat(t *testing.T) {
	stdout, stderr := captureRun(t, ExitCommandError, "--format", "xml", "status")
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `invalid format "xml"`)
}
