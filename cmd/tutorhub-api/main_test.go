package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "tutorhub-api version dev\n", out.String())
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd().Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "token", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestTokenCommandRequiresEmail(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})

	assert.Error(t, cmd.Execute())
}
