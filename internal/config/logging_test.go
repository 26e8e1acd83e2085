package config

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogging_Levels(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	tests := map[string]zerolog.Level{
		"DEBUG":    zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.FatalLevel,
		"":         zerolog.InfoLevel,
		"verbose":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		setupLogging(in, &bytes.Buffer{})
		assert.Equal(t, want, zerolog.GlobalLevel(), in)
	}
}

func TestSetupLogging_Output(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	setupLogging("info", &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("uuid", "abc").Msg("solved")

	out := buf.String()
	assert.Contains(t, out, "solved")
	assert.Contains(t, out, "uuid=")
	assert.NotContains(t, out, "hidden")
}
