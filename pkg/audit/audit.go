package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"neurochat/pkg/domain"
)

// Appender is the durable half of the dual-write policy. It is implemented
// by the chat store's usage_logs table, which is authoritative for
// statistics.
type Appender interface {
	AppendUsage(entry domain.UsageLogEntry) error
}

// Recorder receives one entry per state-changing operation. Recording is a
// side effect: it never returns an error and must never block a store
// mutation on log I/O.
type Recorder interface {
	Record(userID, action, details string)
}

// Logger writes every entry to the durable appender and mirrors it to a
// line-oriented append-only log file. Both writes are best-effort; failures
// are logged and swallowed.
type Logger struct {
	appender Appender
	path     string

	mu sync.Mutex
}

// New creates a Logger mirroring to the given file path. The parent
// directory is created lazily on first write.
func New(appender Appender, path string) *Logger {
	return &Logger{appender: appender, path: path}
}

// Record appends the entry to the store and the log file.
func (l *Logger) Record(userID, action, details string) {
	now := time.Now().UTC()
	if l.appender != nil {
		err := l.appender.AppendUsage(domain.UsageLogEntry{
			UserID:    userID,
			Action:    action,
			Details:   details,
			CreatedAt: now,
		})
		if err != nil {
			slog.Warn("usage log store write failed", "user_id", userID, "action", action, "err", err)
		}
	}
	if err := l.appendLine(now, userID, action, details); err != nil {
		slog.Warn("usage log file write failed", "path", l.path, "err", err)
	}
}

// FormatLine renders one audit line: "[<iso8601>] User <id>: <action>[ - <details>]".
func FormatLine(ts time.Time, userID, action, details string) string {
	line := fmt.Sprintf("[%s] User %s: %s", ts.Format(time.RFC3339), userID, action)
	if details != "" {
		line += " - " + details
	}
	return line + "\n"
}

func (l *Logger) appendLine(ts time.Time, userID, action, details string) error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(FormatLine(ts, userID, action, details))
	return err
}

// Nop is a Recorder that discards everything. Useful for tests.
type Nop struct{}

func (Nop) Record(string, string, string) {}
