package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepCommandsRegistered(t *testing.T) {
	for _, name := range []string{"install", "install-rollback", "uninstall", "uninstall-rollback",
		"check-incompatible", "check-reboot", "pending-reboot", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestStepCommandsTakeData(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"install"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("data"))
}

func TestExitCode(t *testing.T) {
	var code exitCode
	err := error(rebootExitCode)
	require.True(t, errors.As(err, &code))
	assert.Equal(t, 3010, int(code))
	assert.Equal(t, "exit status 3010", err.Error())
}
