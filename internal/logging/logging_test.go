package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLevelForMapsFullRange(t *testing.T) {
	cases := map[int]zerolog.Level{
		-1: zerolog.ErrorLevel,
		0:  zerolog.ErrorLevel,
		1:  zerolog.WarnLevel,
		2:  zerolog.InfoLevel,
		3:  zerolog.DebugLevel,
		4:  zerolog.TraceLevel,
		9:  zerolog.TraceLevel,
	}
	for level, want := range cases {
		require.Equal(t, want, levelFor(level))
	}
}

func TestNewSetsConfiguredLevel(t *testing.T) {
	log := New(3, "json")
	require.Equal(t, zerolog.DebugLevel, log.GetLevel())
}
