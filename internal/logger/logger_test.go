package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "test message",
			fields:  Fields{"key": "value"},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "debug message",
			want:    false,
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "error occurred",
			err:     errors.New("test error"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(LevelInfo, FormatJSON, &buf)

			l.log(tt.level, tt.message, tt.fields, tt.err)

			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, FormatJSON, &buf)

	l.Error("login failed", Fields{"user": "admin", "status": 401}, errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "login failed", entry["message"])
	assert.Equal(t, "admin", entry["user"])
	assert.Equal(t, float64(401), entry["status"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelInfo, FormatConsole, &buf)

	l.Info("hello", Fields{"site": "blog"})

	out := buf.String()
	assert.True(t, strings.Contains(out, "hello"))
	assert.True(t, strings.Contains(out, "blog"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"Warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(New(LevelWarn, FormatJSON, &buf))

	Info("dropped", nil)
	assert.Zero(t, buf.Len())

	Warn("kept", Fields{"n": 1})
	assert.Contains(t, buf.String(), "kept")
}
