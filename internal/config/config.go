// Package config holds the closed set of compilation options named in
// spec.md §6, bound by viper to CLI flags and ONNX2C_* environment
// variables (mirroring the teacher's flat pkg/config.Config/Load shape).
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete set of knobs that can change generated output.
type Config struct {
	Quantize   bool
	TargetAVR  bool
	OptFoldCasts bool
	OptUnionize  bool
	NoGlobals    bool
	OnlyInit     bool
	DimDefines   map[string]int64
	LoggingLevel int

	LogFormat string // "console" or "json"
}

// Defaults matches spec.md §6: both optimization passes on, everything
// else off, logging at its default verbosity.
func Defaults() Config {
	return Config{
		OptFoldCasts: true,
		OptUnionize:  true,
		LoggingLevel: 2,
		LogFormat:    "console",
		DimDefines:   map[string]int64{},
	}
}

// Load builds a Config from viper, which a cobra command binds to its own
// flag set before calling this. Env vars are ONNX2C_<FLAG_NAME>.
func Load(v *viper.Viper) Config {
	v.SetEnvPrefix("ONNX2C")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	c := Defaults()
	if v.IsSet("quantize") {
		c.Quantize = v.GetBool("quantize")
	}
	if v.IsSet("avr") {
		c.TargetAVR = v.GetBool("avr")
	}
	if v.IsSet("opt-fold-casts") {
		c.OptFoldCasts = v.GetBool("opt-fold-casts")
	}
	if v.IsSet("opt-unionize") {
		c.OptUnionize = v.GetBool("opt-unionize")
	}
	if v.IsSet("no-globals") {
		c.NoGlobals = v.GetBool("no-globals")
	}
	if v.IsSet("only-init") {
		c.OnlyInit = v.GetBool("only-init")
	}
	if v.IsSet("log") {
		c.LoggingLevel = v.GetInt("log")
	}
	if v.IsSet("log-format") {
		c.LogFormat = v.GetString("log-format")
	}
	for k, val := range v.GetStringMap("dim-defines") {
		if n, ok := val.(int64); ok {
			c.DimDefines[k] = n
		}
	}
	return c
}
