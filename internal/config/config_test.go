package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultsEnablesBothOptimizationPasses(t *testing.T) {
	c := Defaults()
	require.True(t, c.OptFoldCasts)
	require.True(t, c.OptUnionize)
	require.False(t, c.Quantize)
	require.Equal(t, 2, c.LoggingLevel)
}

func TestLoadOnlyOverridesSetFlags(t *testing.T) {
	v := viper.New()
	v.Set("quantize", true)

	c := Load(v)
	require.True(t, c.Quantize)
	require.True(t, c.OptFoldCasts, "unset flags must keep their default, not zero out")
}

func TestLoadReadsEnvOverride(t *testing.T) {
	t.Setenv("ONNX2C_AVR", "true")
	v := viper.New()

	c := Load(v)
	require.True(t, c.TargetAVR)
}
