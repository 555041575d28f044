package common

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		_, err := ParseLevel(level)
		assert.NoError(t, err, level)
	}

	_, err := ParseLevel("loud")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	slog.New(h).Info("Run complete", "files", 2)
	assert.Contains(t, buf.String(), `"msg":"Run complete"`)
	assert.Contains(t, buf.String(), `"files":2`)

	_, err = NewHandler(&buf, slog.LevelInfo, "xml")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
