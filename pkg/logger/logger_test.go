package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAndLevelString(t *testing.T) {
	defer Init("info")
	Init("debug")
	require.Equal(t, "debug", LevelString())
	Init("WARN")
	require.Equal(t, "warn", LevelString())
	Init("Error")
	require.Equal(t, "error", LevelString())
	Init("nonsense")
	require.Equal(t, "info", LevelString(), "unknown input falls back to info")
}

func TestLevelFilteringAndPrintln(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	defer SetOutput(os.Stdout, false)
	defer Init("info")

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg")
	Errorf("error-msg")

	out := buf.String()
	require.NotContains(t, out, "debug-msg")
	require.NotContains(t, out, "info-msg")
	require.Contains(t, out, "warn-msg")
	require.Contains(t, out, "error-msg")

	buf.Reset()
	Println("hello")
	require.NotContains(t, buf.String(), "hello", "Println maps to info and is suppressed at warn")

	Init("info")
	buf.Reset()
	Println("hello")
	require.Contains(t, buf.String(), "hello")
}

func TestWithAddsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true)
	defer SetOutput(os.Stdout, false)
	Init("debug")
	defer Init("info")

	With("op", "delete").With("item", "abc").Infof("removed %d items", 3)

	line := strings.TrimSpace(buf.String())
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	require.Equal(t, "delete", rec["op"])
	require.Equal(t, "abc", rec["item"])
	require.Equal(t, "removed 3 items", rec["message"])
	require.Equal(t, "info", rec["level"])
}
