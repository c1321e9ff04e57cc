package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand_PrintsVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "dev\n", out.String())
}

func TestRunCommand_MissingWasmFileReturnsError(t *testing.T) {
	var errOut bytes.Buffer
	rootCmd.SetOut(&errOut)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"run", "does-not-exist.wasm"})

	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading wasm binary")
}
