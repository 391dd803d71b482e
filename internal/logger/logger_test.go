package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/estim2b/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestBuild_FileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.LogConfig{
		Level:   "debug",
		Format:  "json",
		Output:  "file",
		File:    config.LogFileConfig{Path: dir, Filename: "test.log", MaxSize: 1},
		Modules: map[string]string{"serial": "warn"},
	}

	l, modules, err := build(cfg)
	require.NoError(t, err)
	require.Contains(t, modules, "serial")

	l.Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Equal(t, zapcore.DebugLevel, Level())
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	SetLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, Level())
	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, Level())
}

func TestLogExchange(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	LogExchange(l, "M3", "344:10:12:120:116:3:L:0:0:0:0:0:2.120B", 12*time.Millisecond, nil)
	LogExchange(l, "K", "", 100*time.Millisecond, errors.New("timeout"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "serial_exchange", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "M3", entries[0].ContextMap()["command"])
	assert.Equal(t, "serial_exchange_failed", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestGetLogger_Uninitialized(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithModule("nobody"))
}
