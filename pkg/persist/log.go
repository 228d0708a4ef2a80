package persist

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// LogLevel controls persistence event log verbosity.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "none"
	}
}

// ParseLogLevel parses a level name or digit. Unknown values yield warn.
func ParseLogLevel(raw string) LogLevel {
	value := strings.TrimSpace(strings.ToLower(raw))
	switch value {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	case "trace", "5":
		return LogLevelTrace
	default:
		return LogLevelWarn
	}
}

// LogLevelFromEnv reads MARKON_WORKER_LOG.
func LogLevelFromEnv() LogLevel {
	raw, ok := os.LookupEnv("MARKON_WORKER_LOG")
	if !ok {
		return LogLevelWarn
	}
	return ParseLogLevel(raw)
}

// eventLog writes one JSON object per event.
type eventLog struct {
	level     LogLevel
	component string

	mu  sync.Mutex
	out io.Writer // nil means the standard logger
}

func newEventLog(level LogLevel, component string) *eventLog {
	return &eventLog{level: level, component: component}
}

func (l *eventLog) logEvent(level LogLevel, event string, fields map[string]any) {
	if l == nil || level == LogLevelNone || l.level == LogLevelNone || level > l.level {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": l.component,
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("%s: failed to marshal log event %s: %v", l.component, event, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		_, _ = l.out.Write(append(b, '\n'))
		return
	}
	log.Printf("%s", b)
}
