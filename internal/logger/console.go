// Package logger renders eventbus events as timestamped, level-filtered
// console output, with color automatically enabled for TTY writers.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/artisan/internal/eventbus"
)

// Log level constants for filtering.
const (
	levelDebug int = 0
	levelInfo  int = 1
	levelWarn  int = 2
	levelError int = 3
)

// ConsoleLogger writes timestamped, level-filtered log lines to a writer.
// It is safe for concurrent use.
type ConsoleLogger struct {
	writer   io.Writer
	level    int
	mu       sync.Mutex
	useColor bool
}

// NewConsoleLogger returns a ConsoleLogger writing to w at the given
// verbosity (debug, info, warn, error; case-insensitive, defaults to
// info on an unrecognized value). Color is enabled automatically when w
// is a TTY.
func NewConsoleLogger(w io.Writer, level string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:   w,
		level:    parseLevel(level),
		useColor: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

func parseLevel(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(level int) bool { return level >= cl.level }

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logf(levelDebug, color.New(color.FgWhite), format, args...)
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logf(levelInfo, color.New(color.FgCyan), format, args...)
}

// Warnf logs a formatted warn-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logf(levelWarn, color.New(color.FgYellow), format, args...)
}

// Errorf logs a formatted error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logf(levelError, color.New(color.FgRed), format, args...)
}

func (cl *ConsoleLogger) logf(level int, tag *color.Color, format string, args ...interface{}) {
	if !cl.shouldLog(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s", timestamp(), msg)
	if cl.useColor {
		line = fmt.Sprintf("[%s] %s", color.New(color.FgHiBlack).Sprint(timestamp()), tag.Sprint(msg))
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	fmt.Fprintln(cl.writer, line)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// Drain logs every event delivered to sub until ctx is cancelled or the
// subscription is closed. Intended to run in its own goroutine.
func (cl *ConsoleLogger) Drain(ctx context.Context, sub *eventbus.Subscription) {
	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return
		}
		cl.LogEvent(ev)
	}
}

// LogEvent renders a single eventbus.Event at the appropriate level.
func (cl *ConsoleLogger) LogEvent(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeSessionStart:
		cl.Infof("session start %s", ev.SessionID)
	case eventbus.TypeSessionEnd:
		cl.Infof("session end %s", ev.SessionID)
	case eventbus.TypeRunStart:
		cl.Infof("run start")
	case eventbus.TypeRunComplete:
		cl.Infof("run complete")
	case eventbus.TypeRunPaused:
		cl.Warnf("run paused")
	case eventbus.TypeRunFailed:
		cl.Errorf("run failed: %v", ev.Data)
	case eventbus.TypePlanningStart:
		cl.Infof("planning start")
	case eventbus.TypePlanCandidate:
		cl.Debugf("plan candidate: %v", ev.Data)
	case eventbus.TypePlanWinner:
		cl.Infof("plan winner: %v", ev.Data)
	case eventbus.TypePlanningFailed:
		cl.Errorf("planning failed: %v", ev.Data)
	case eventbus.TypeWaveStart:
		cl.Infof("wave start: %v", ev.Data)
	case eventbus.TypeWaveComplete:
		cl.Infof("wave complete: %v", ev.Data)
	case eventbus.TypeArtifactStart:
		cl.Debugf("artifact start: %v", ev.Data)
	case eventbus.TypeArtifactComplete:
		cl.Infof("artifact complete: %v", ev.Data)
	case eventbus.TypeArtifactFailed:
		cl.Errorf("artifact failed: %v", ev.Data)
	case eventbus.TypeArtifactBlocked:
		cl.Warnf("artifact blocked: %v", ev.Data)
	case eventbus.TypeCacheHit:
		cl.Debugf("cache hit: %v", ev.Data)
	case eventbus.TypeCacheMiss:
		cl.Debugf("cache miss: %v", ev.Data)
	case eventbus.TypeBufferOverflow:
		cl.Warnf("event buffer overflow, subscriber dropped events")
	default:
		cl.Debugf("%s: %v", ev.Type, ev.Data)
	}
}
