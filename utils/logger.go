package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger provides leveled logging throughout the application.
// Debug output is dropped unless enabled.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	debugEnabled bool
}

// NewLogger creates a Logger writing to stdout/stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a Logger writing info, warn and debug lines to out
// and errors to errOut.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{
		info:  log.New(out, "", 0),
		warn:  log.New(out, "", 0),
		err:   log.New(errOut, "", 0),
		debug: log.New(out, "", 0),
	}
}

// Discard returns a Logger that writes nothing. Used by tests.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, io.Discard)
}

// SetDebug toggles Debug output.
func (l *Logger) SetDebug(enabled bool) {
	l.debugEnabled = enabled
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf("[%s] \033[32mINFO\033[0m  %s", l.timestamp(), fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf("[%s] \033[33mWARN\033[0m  %s", l.timestamp(), fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf("[%s] \033[31mERROR\033[0m %s", l.timestamp(), fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debugEnabled {
		return
	}
	l.debug.Printf("[%s] \033[36mDEBUG\033[0m %s", l.timestamp(), fmt.Sprintf(format, args...))
}
