package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	log, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New("warn", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	zap.New(core).Info("linked", Redacted("token", "super-secret"))

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[REDACTED:12]", entries[0].ContextMap()["token"])
}

func TestPrintfLogger(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	bl := NewPrintfLogger(zap.New(core), "tgbotapi")

	bl.Printf("Endpoint: %s", "getMe")
	bl.Println("plain", "line")

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Endpoint: getMe", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "tgbotapi", entries[0].LoggerName)
}
