package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"DEBUG":   logrus.DebugLevel,
		"debug":   logrus.DebugLevel,
		"WARNING": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"ERROR":   logrus.ErrorLevel,
		"INFO":    logrus.InfoLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	l := NewLogger("WARNING", "test")
	var buf bytes.Buffer
	l.entry.Logger.SetOutput(&buf)

	l.Info("hidden %d", 1)
	l.Warning("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "component=test")
}

func TestNamedSharesOutput(t *testing.T) {
	l := NewLogger("DEBUG", "root")
	var buf bytes.Buffer
	l.entry.Logger.SetOutput(&buf)

	l.Named("child").With("stream", "ETH/USDT@1h").Debug("detected %d levels", 3)

	out := buf.String()
	assert.Contains(t, out, "component=child")
	assert.Contains(t, out, "stream=ETH/USDT@1h")
	assert.Contains(t, out, "detected 3 levels")
}
