package mocks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/framecache/pkg/ports"
)

// Logger is a mock implementation of ports.Logger that records formatted messages.
type Logger struct {
	mu        *sync.Mutex
	entries   *[]string
	component string
}

// NewLogger creates a new recording Logger.
func NewLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}, entries: &[]string{}}
}

func (m *Logger) Debug(msg string, args ...interface{}) { m.record("debug", msg, args...) }
func (m *Logger) Info(msg string, args ...interface{})  { m.record("info", msg, args...) }
func (m *Logger) Warn(msg string, args ...interface{})  { m.record("warn", msg, args...) }
func (m *Logger) Error(msg string, args ...interface{}) { m.record("error", msg, args...) }

func (m *Logger) WithComponent(component string) ports.Logger {
	return &Logger{mu: m.mu, entries: m.entries, component: component}
}

func (m *Logger) record(level, msg string, args ...interface{}) {
	line := fmt.Sprintf(msg, args...)
	if m.component != "" {
		line = "[" + m.component + "] " + line
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.entries = append(*m.entries, level+": "+line)
}

// Entries returns all recorded lines as "level: [component] message".
func (m *Logger) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(*m.entries))
	copy(out, *m.entries)
	return out
}

// Contains reports whether any recorded line contains substr.
func (m *Logger) Contains(substr string) bool {
	for _, e := range m.Entries() {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

var _ ports.Logger = (*Logger)(nil)
