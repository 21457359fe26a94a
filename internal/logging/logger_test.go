package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"INFO", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{" warning ", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestNew_JSONToConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "forge.log")

	l, err := New(Config{Level: "info", OutputFile: path, JSONFormat: true, Console: &console})
	require.NoError(t, err)
	l.WithField("asset_id", "a1").Info("asset promoted")
	l.Debug("hidden")
	require.NoError(t, l.Close())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(console.Bytes(), &entry))
	assert.Equal(t, "asset promoted", entry["msg"])
	assert.Equal(t, "a1", entry["asset_id"])

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, console.String(), string(written))
	assert.Equal(t, path, l.FilePath())
}

func TestNew_RotatesLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0644))

	l, err := New(Config{OutputFile: path, MaxSize: 32, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer l.Close()

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)
}

func TestDebugConfig(t *testing.T) {
	var console bytes.Buffer
	cfg := DebugConfig()
	cfg.Console = &console

	l, err := New(cfg)
	require.NoError(t, err)
	defer l.Close()

	l.Debug("recount started")
	assert.Contains(t, console.String(), "recount started")
	assert.Contains(t, console.String(), "logger_test.go")
}
