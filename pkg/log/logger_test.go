package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	testOutput     *bytes.Buffer
}

// SetupTest runs before each test
func (s *LoggerTestSuite) SetupTest() {
	s.originalLogger = Logger
	s.testOutput = &bytes.Buffer{}
	Logger = New(Config{Level: "debug", Format: FormatJSON}, s.testOutput)
}

// TearDownTest runs after each test
func (s *LoggerTestSuite) TearDownTest() {
	Logger = s.originalLogger
}

// TestGetGoroutineID tests the goroutine ID extraction
func (s *LoggerTestSuite) TestGetGoroutineID() {
	goroutineID := getGoroutineIDOptimized()
	s.NotEmpty(goroutineID)

	if goroutineID != "unknown" {
		for _, char := range goroutineID {
			s.True(char >= '0' && char <= '9', "Goroutine ID should be numeric or 'unknown'")
		}
	}
}

// TestGoroutineIDConsistency tests that goroutine ID is consistent within the same goroutine
func (s *LoggerTestSuite) TestGoroutineIDConsistency() {
	s.Equal(getGoroutineIDOptimized(), getGoroutineIDOptimized())
}

// TestJSONOutputCarriesFields tests that JSON output is parseable and tagged
func (s *LoggerTestSuite) TestJSONOutputCarriesFields() {
	Info().Str("mount", "/data").Msg("render requested")

	var entry map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.testOutput.Bytes(), &entry))
	s.Equal("info", entry["level"])
	s.Equal("/data", entry["mount"])
	s.Equal("render requested", entry["message"])
	s.Contains(entry, "goid")
	s.Contains(entry, "time")
}

// TestLevelsBelowThresholdAreDropped tests level filtering
func (s *LoggerTestSuite) TestLevelsBelowThresholdAreDropped() {
	Logger = New(Config{Level: "warn", Format: FormatJSON}, s.testOutput)

	Debug().Msg("debug test")
	Info().Msg("info test")
	Warn().Msg("warn test")
	Error().Msg("error test")

	output := s.testOutput.String()
	s.NotContains(output, "debug test")
	s.NotContains(output, "info test")
	s.Contains(output, "warn test")
	s.Contains(output, "error test")
}

// TestConsoleFormat tests the human readable writer
func (s *LoggerTestSuite) TestConsoleFormat() {
	Logger = New(Config{Level: "info", Format: FormatConsole}, s.testOutput)

	Info().Msg("console line")

	output := s.testOutput.String()
	s.Contains(output, "console line")
	s.Contains(output, "goid")
	s.False(strings.HasPrefix(output, "{"))
}

// TestParseLevel tests level name parsing
func (s *LoggerTestSuite) TestParseLevel() {
	testCases := []struct {
		input    string
		expected zerolog.Level
		valid    bool
	}{
		{"", zerolog.InfoLevel, true},
		{"debug", zerolog.DebugLevel, true},
		{"WARN", zerolog.WarnLevel, true},
		{" error ", zerolog.ErrorLevel, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tc := range testCases {
		level, err := ParseLevel(tc.input)
		if tc.valid {
			s.NoError(err, tc.input)
		} else {
			s.Error(err, tc.input)
		}
		s.Equal(tc.expected, level, tc.input)
	}
}

// TestNewFallsBackToInfo tests that an unknown level does not break construction
func (s *LoggerTestSuite) TestNewFallsBackToInfo() {
	logger := New(Config{Level: "loud"}, s.testOutput)
	s.Equal(zerolog.InfoLevel, logger.GetLevel())
}

// TestSetupRejectsInvalidConfig tests Setup validation
func (s *LoggerTestSuite) TestSetupRejectsInvalidConfig() {
	s.Error(Setup(Config{Level: "loud"}))
	s.Error(Setup(Config{Level: "info", Format: "xml"}))
}

// TestSetDebugMode tests switching to debug level
func (s *LoggerTestSuite) TestSetDebugMode() {
	Logger = New(Config{Level: "error", Format: FormatJSON}, s.testOutput)
	SetDebugMode()
	s.Equal(zerolog.DebugLevel, Logger.GetLevel())
}

// TestConcurrentLogging tests that logging is thread-safe
func (s *LoggerTestSuite) TestConcurrentLogging() {
	Logger = New(Config{Level: "info", Format: FormatJSON}, zerolog.SyncWriter(s.testOutput))
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			Info().Int("worker", id).Msg("concurrent")
			done <- true
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	s.Equal(numGoroutines, strings.Count(s.testOutput.String(), "concurrent"))
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
