package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestViperForIsolatesCommands guards the cross-command flag-binding bug:
// each command must read back its own flags, not whichever command's
// viper binding happened to run last.
func TestViperForIsolatesCommands(t *testing.T) {
	root := rootCmd()
	compileCmd, _, err := root.Find([]string{"compile"})
	require.NoError(t, err)
	compileAllCmd, _, err := root.Find([]string{"compile-all"})
	require.NoError(t, err)

	require.NoError(t, compileCmd.Flags().Set("quantize", "true"))
	require.NoError(t, compileAllCmd.Flags().Set("quantize", "false"))

	vCompile := viperFor(compileCmd)
	vCompileAll := viperFor(compileAllCmd)

	require.True(t, vCompile.GetBool("quantize"))
	require.False(t, vCompileAll.GetBool("quantize"))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["compile"])
	require.True(t, names["compile-all"])
	require.True(t, names["serve"])
}
