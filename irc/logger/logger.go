// Copyright (c) 2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the level to log messages at.
type Level int

const (
	// LogDebug represents debug messages.
	LogDebug Level = iota
	// LogInfo represents informational messages.
	LogInfo
	// LogWarning represents warnings.
	LogWarning
	// LogError represents errors.
	LogError
)

var (
	// LogLevelNames takes a config name and gives the real log level.
	LogLevelNames = map[string]Level{
		"debug":    LogDebug,
		"info":     LogInfo,
		"warn":     LogWarning,
		"warning":  LogWarning,
		"warnings": LogWarning,
		"error":    LogError,
		"errors":   LogError,
	}
	// LogLevelDisplayNames gives the display name to use for our log levels.
	LogLevelDisplayNames = map[Level]string{
		LogDebug:   "debug",
		LogInfo:    "info",
		LogWarning: "warn",
		LogError:   "error",
	}
)

// raw client I/O categories; these are only emitted at debug level
const (
	TypeUserInput  = "userinput"
	TypeUserOutput = "useroutput"
)

// LoggingConfig represents the configuration of a single logger.
type LoggingConfig struct {
	Method        string
	MethodStdout  bool `yaml:"-"`
	MethodStderr  bool `yaml:"-"`
	MethodFile    bool `yaml:"-"`
	Filename      string
	TypeString    string   `yaml:"type"`
	Types         []string `yaml:"-"`
	ExcludedTypes []string `yaml:"-"`
	LevelString   string   `yaml:"level"`
	Level         Level    `yaml:"-"`
}

// Manager is the main interface used to log debug/info/error messages.
type Manager struct {
	configMutex  sync.RWMutex
	loggers      []*singleLogger
	writeLock    sync.Mutex // one lock for every destination
	loggingRawIO atomic.Bool
	now          func() time.Time
}

// NewManager returns a new log manager.
func NewManager(config []LoggingConfig) (*Manager, error) {
	logger := &Manager{now: time.Now}
	if err := logger.ApplyConfig(config); err != nil {
		return nil, err
	}
	return logger, nil
}

// NewWriterManager returns a manager that sends every category at or above
// the given level to w; it is meant for tests and tooling.
func NewWriterManager(w io.Writer, level Level) *Manager {
	logger := &Manager{now: time.Now}
	logger.loggers = []*singleLogger{{
		writer:    w,
		level:     level,
		types:     map[string]bool{"*": true},
		writeLock: &logger.writeLock,
	}}
	logger.loggingRawIO.Store(level == LogDebug)
	return logger
}

// ApplyConfig replaces the current set of loggers with the given config.
func (logger *Manager) ApplyConfig(config []LoggingConfig) error {
	logger.configMutex.Lock()
	defer logger.configMutex.Unlock()

	for _, sLogger := range logger.loggers {
		sLogger.Close()
	}
	logger.loggers = nil
	logger.loggingRawIO.Store(false)

	var lastErr error
	for _, logConfig := range config {
		typeMap := make(map[string]bool)
		for _, name := range logConfig.Types {
			typeMap[name] = true
		}
		excludedTypeMap := make(map[string]bool)
		for _, name := range logConfig.ExcludedTypes {
			excludedTypeMap[name] = true
		}

		var writers []io.Writer
		if logConfig.MethodStdout {
			writers = append(writers, os.Stdout)
		}
		if logConfig.MethodStderr {
			writers = append(writers, os.Stderr)
		}
		var file *os.File
		var buffered *bufio.Writer
		if logConfig.MethodFile {
			var err error
			file, err = os.OpenFile(logConfig.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
			if err != nil {
				lastErr = fmt.Errorf("Could not open log file %s [%s]", logConfig.Filename, err.Error())
			} else {
				buffered = bufio.NewWriter(file)
				writers = append(writers, buffered)
			}
		}
		if len(writers) == 0 {
			continue
		}

		sLogger := &singleLogger{
			writer:        io.MultiWriter(writers...),
			file:          file,
			buffered:      buffered,
			level:         logConfig.Level,
			types:         typeMap,
			excludedTypes: excludedTypeMap,
			writeLock:     &logger.writeLock,
		}
		if logConfig.Level == LogDebug && (sLogger.captures(TypeUserInput) || sLogger.captures(TypeUserOutput)) {
			logger.loggingRawIO.Store(true)
		}
		logger.loggers = append(logger.loggers, sLogger)
	}

	return lastErr
}

// IsLoggingRawIO returns true if raw user input and output is being logged.
func (logger *Manager) IsLoggingRawIO() bool {
	return logger.loggingRawIO.Load()
}

// Log logs the given message with the given details.
func (logger *Manager) Log(level Level, logType string, messageParts ...string) {
	logger.configMutex.RLock()
	defer logger.configMutex.RUnlock()

	if len(logger.loggers) == 0 {
		return
	}

	var rawBuf bytes.Buffer
	// 10 is len("useroutput"), the longest category name in use
	fmt.Fprintf(&rawBuf, "%s : %-5s : %-10s : ", logger.now().UTC().Format("2006-01-02T15:04:05.000Z"), LogLevelDisplayNames[level], logType)
	rawBuf.WriteString(strings.Join(messageParts, " : "))
	rawBuf.WriteByte('\n')

	for _, sLogger := range logger.loggers {
		if level >= sLogger.level && sLogger.captures(logType) {
			sLogger.write(rawBuf.Bytes())
		}
	}
}

// Debug logs the given message as a debug message.
func (logger *Manager) Debug(logType string, messageParts ...string) {
	logger.Log(LogDebug, logType, messageParts...)
}

// Info logs the given message as an info message.
func (logger *Manager) Info(logType string, messageParts ...string) {
	logger.Log(LogInfo, logType, messageParts...)
}

// Warning logs the given message as a warning message.
func (logger *Manager) Warning(logType string, messageParts ...string) {
	logger.Log(LogWarning, logType, messageParts...)
}

// Error logs the given message as an error message.
func (logger *Manager) Error(logType string, messageParts ...string) {
	logger.Log(LogError, logType, messageParts...)
}

// Close flushes and closes any log files.
func (logger *Manager) Close() error {
	return logger.ApplyConfig(nil)
}

// singleLogger is one configured destination.
type singleLogger struct {
	writeLock     *sync.Mutex
	writer        io.Writer
	file          *os.File
	buffered      *bufio.Writer
	level         Level
	types         map[string]bool
	excludedTypes map[string]bool
}

func (sLogger *singleLogger) captures(logType string) bool {
	return (sLogger.types["*"] || sLogger.types[logType]) && !sLogger.excludedTypes["*"] && !sLogger.excludedTypes[logType]
}

func (sLogger *singleLogger) write(line []byte) {
	sLogger.writeLock.Lock()
	defer sLogger.writeLock.Unlock()
	sLogger.writer.Write(line)
	if sLogger.buffered != nil {
		sLogger.buffered.Flush()
	}
}

func (sLogger *singleLogger) Close() error {
	if sLogger.file == nil {
		return nil
	}
	flushErr := sLogger.buffered.Flush()
	closeErr := sLogger.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
