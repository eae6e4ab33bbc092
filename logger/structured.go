package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// structuredCore holds the shared mutable state for all StructuredLogger
// instances derived via WithFields.
type structuredCore struct {
	mu     sync.Mutex
	closer io.Closer
	enc    *json.Encoder
}

// StructuredLogger writes one JSON object per log line.
type StructuredLogger struct {
	level      Level
	baseFields []Field
	core       *structuredCore
}

// NewStructured creates an NDJSON logger writing to w. Close does not close w.
func NewStructured(w io.Writer, level Level) *StructuredLogger {
	return &StructuredLogger{
		level: level,
		core:  &structuredCore{enc: json.NewEncoder(w)},
	}
}

// OpenStructured creates an NDJSON logger appending to the file at path.
func OpenStructured(path string, level Level) (*StructuredLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open structured log: %w", err)
	}

	l := NewStructured(f, level)
	l.core.closer = f
	return l, nil
}

func (s *StructuredLogger) Debug(msg string, fields ...Field) { s.log(LevelDebug, msg, fields) }
func (s *StructuredLogger) Info(msg string, fields ...Field)  { s.log(LevelInfo, msg, fields) }
func (s *StructuredLogger) Warn(msg string, fields ...Field)  { s.log(LevelWarn, msg, fields) }
func (s *StructuredLogger) Error(msg string, fields ...Field) { s.log(LevelError, msg, fields) }

func (s *StructuredLogger) WithFields(fields ...Field) Logger {
	return &StructuredLogger{
		level:      s.level,
		baseFields: mergeFields(s.baseFields, fields),
		core:       s.core,
	}
}

func (s *StructuredLogger) Close() error {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	if s.core.closer != nil {
		err := s.core.closer.Close()
		s.core.closer = nil
		s.core.enc = json.NewEncoder(io.Discard)
		return err
	}
	return nil
}

func (s *StructuredLogger) log(level Level, msg string, fields []Field) {
	if level < s.level {
		return
	}

	allFields := mergeFields(s.baseFields, fields)
	entry := make(map[string]any, 3+len(allFields))
	entry["time"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["msg"] = msg
	for _, f := range allFields {
		entry[f.Key] = f.Value
	}

	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.enc.Encode(entry)
}
