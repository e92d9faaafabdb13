package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Process-wide leveled logger on top of zerolog.
// Console output by default; UseJSON switches to one JSON object per line.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var zlevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
	LevelFatal: zerolog.FatalLevel,
}

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	asJSON bool
	level  Level = LevelInfo
	base         = build()
)

func build() zerolog.Logger {
	w := out
	if !asJSON {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(zlevels[level]).With().Timestamp().Logger()
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values select info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
	base = build()
}

// SetOutput redirects log output. json selects structured JSON lines instead of console text.
func SetOutput(w io.Writer, json bool) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	asJSON = json
	base = build()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

func Debugf(format string, v ...interface{}) { current().Debug().Msgf(format, v...) }
func Infof(format string, v ...interface{})  { current().Info().Msgf(format, v...) }
func Warnf(format string, v ...interface{})  { current().Warn().Msgf(format, v...) }
func Errorf(format string, v ...interface{}) { current().Error().Msgf(format, v...) }

// Fatalf logs and exits with status 1.
func Fatalf(format string, v ...interface{}) {
	current().WithLevel(zerolog.FatalLevel).Msgf(format, v...)
	os.Exit(1)
}

// Println maps to Info.
func Println(v ...interface{}) {
	current().Info().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Entry is a logger carrying structured fields.
type Entry struct {
	l zerolog.Logger
}

// With returns an Entry that attaches key=value to every message.
func With(key string, value interface{}) Entry {
	return Entry{l: current().With().Interface(key, value).Logger()}
}

func (e Entry) With(key string, value interface{}) Entry {
	return Entry{l: e.l.With().Interface(key, value).Logger()}
}

func (e Entry) Debugf(format string, v ...interface{}) { e.l.Debug().Msgf(format, v...) }
func (e Entry) Infof(format string, v ...interface{})  { e.l.Info().Msgf(format, v...) }
func (e Entry) Warnf(format string, v ...interface{})  { e.l.Warn().Msgf(format, v...) }
func (e Entry) Errorf(format string, v ...interface{}) { e.l.Error().Msgf(format, v...) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
