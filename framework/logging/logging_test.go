package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.WithField("module", "files").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "files", entry["module"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNew_Invalid(t *testing.T) {
	_, err := logging.New(config.LogConfig{Level: "loud", Format: "text"}, nil)
	assert.Error(t, err)

	_, err = logging.New(config.LogConfig{Level: "info", Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := logging.Discard()
	assert.NotPanics(t, func() { l.Error("nothing to see") })
}
