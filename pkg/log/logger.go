package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Reduced buffer size - we only need the first line which is typically ~25 bytes.
	minStackBufSize = 32
	// Minimum expected stack trace length for valid goroutine info.
	minStackTraceLen = 12
	// Number of characters to skip: "goroutine " (10 chars).
	goroutinePrefixLen = 10

	consoleTimeFormat = "15:04:05"
)

// Output formats accepted by Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the process log sink. It is applied once at startup.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var (
	// Logger is the process logger used by the command adapters.
	// Library packages take a zerolog.Logger through their constructors instead.
	Logger        zerolog.Logger
	goroutinePool sync.Pool // Pool for reusing small stack buffers
)

func init() {
	goroutinePool.New = func() interface{} {
		return make([]byte, minStackBufSize)
	}

	Logger = New(Config{Level: "info", Format: FormatConsole}, os.Stderr)
	log.Logger = Logger
}

// getGoroutineIDOptimized extracts the goroutine ID with minimal stack walking.
func getGoroutineIDOptimized() string {
	bufInterface := goroutinePool.Get()
	buf, ok := bufInterface.([]byte)
	if !ok {
		return "unknown"
	}
	defer goroutinePool.Put(buf) //nolint:staticcheck // buf is a slice, this is the correct usage

	stackLen := runtime.Stack(buf, false)
	if stackLen < minStackTraceLen {
		return "unknown"
	}

	// Fast parse: "goroutine 123 [running]:".
	idx := goroutinePrefixLen
	if idx >= stackLen {
		return "unknown"
	}

	start := idx
	for idx < stackLen && buf[idx] >= '0' && buf[idx] <= '9' {
		idx++
	}

	if idx > start {
		return string(buf[start:idx])
	}
	return "unknown"
}

// ParseLevel maps a configured level name to a zerolog level.
// An empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// New builds a logger writing to out. Unknown levels fall back to info.
func New(cfg Config, out io.Writer) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	writer := out
	if cfg.Format != FormatJSON {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: consoleTimeFormat,
		}
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
			e.Str("goid", getGoroutineIDOptimized())
		}))
}

// Setup replaces the process logger. It must be called before any goroutine logs.
func Setup(cfg Config) error {
	if _, err := ParseLevel(cfg.Level); err != nil {
		return err
	}
	switch cfg.Format {
	case "", FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}

	Logger = New(cfg, os.Stderr)
	log.Logger = Logger
	return nil
}

// Info logs an info message with goroutine ID.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message with goroutine ID.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message with goroutine ID.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message with goroutine ID.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message with goroutine ID and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}
