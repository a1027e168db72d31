package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "intrack", cmd.Use)
	assert.Contains(t, cmd.Long, "append-only event log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"init", "new", "list", "show", "comment", "edit", "close", "reopen",
		"priority", "tag", "set", "log", "merge", "merge-driver", "verify", "tui",
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

func TestListAlias(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"ls"})
	require.NoError(t, err)
	assert.Equal(t, "list", sub.Name())
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

	dirFlag := cmd.PersistentFlags().Lookup("dir")
	require.NotNil(t, dirFlag)
	assert.Equal(t, "C", dirFlag.Shorthand)
	assert.Equal(t, ".", dirFlag.DefValue)

	fileFlag := cmd.PersistentFlags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "", fileFlag.DefValue)
}

func TestNewCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	newCmd, _, err := cmd.Find([]string{"new"})
	require.NoError(t, err)

	for _, name := range []string{"title", "body", "priority", "tag", "field"} {
		assert.NotNil(t, newCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "t", newCmd.Flags().Lookup("title").Shorthand)
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)

	statusFlag := listCmd.Flags().Lookup("status")
	require.NotNil(t, statusFlag)
	assert.Equal(t, "open", statusFlag.DefValue)

	for _, name := range []string{"tag", "search", "sort", "columns"} {
		assert.NotNil(t, listCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestMergeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	mergeCmd, _, err := cmd.Find([]string{"merge"})
	require.NoError(t, err)

	outputFlag := mergeCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestVerifyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)

	assert.Equal(t, "8", verifyCmd.Flags().Lookup("shuffles").DefValue)
	assert.Equal(t, "1", verifyCmd.Flags().Lookup("seed").DefValue)
	assert.Equal(t, "4", verifyCmd.Flags().Lookup("cuts").DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
