package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_MissingTestsFlagFailsValidation(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{})
	cmd.SilenceErrors = true
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tests is required")
}

func TestNewRootCommand_BindsGroupLimitRepeatable(t *testing.T) {
	cmd := NewRootCommand()
	require.NoError(t, cmd.Flags().Set("group-limit", "a=1"))
	require.NoError(t, cmd.Flags().Set("group-limit", "b=2"))

	got, err := cmd.Flags().GetStringSlice("group-limit")
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2"}, got)
}

func TestNewRootCommand_DefaultFlagValues(t *testing.T) {
	cmd := NewRootCommand()
	threads, err := cmd.Flags().GetInt("test-threads")
	require.NoError(t, err)
	assert.Equal(t, 1, threads)

	level, err := cmd.Flags().GetString("status-level")
	require.NoError(t, err)
	assert.Equal(t, "pass", level)
}
