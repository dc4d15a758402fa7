// Package alert delivers short user-visible messages ("toasts") raised by the store
// and the session gate.
package alert

import (
	"sync"
	"time"

	"business-inventory/internal/common/logger"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Alert is one message as shown to the user.
type Alert struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Sink receives alerts. Implementations must not block the caller for long.
type Sink interface {
	Success(title string)
	Error(title, description string)
	Info(title, description string)
}

// emitter turns the three Sink methods into one deliver func.
type emitter struct {
	deliver func(Alert)
	now     func() time.Time
}

func (e emitter) Success(title string) {
	e.deliver(Alert{Level: LevelSuccess, Title: title, At: e.now()})
}

func (e emitter) Error(title, description string) {
	e.deliver(Alert{Level: LevelError, Title: title, Description: description, At: e.now()})
}

func (e emitter) Info(title, description string) {
	e.deliver(Alert{Level: LevelInfo, Title: title, Description: description, At: e.now()})
}

// Func adapts a function to a Sink.
func Func(fn func(Alert)) Sink {
	return emitter{deliver: fn, now: time.Now}
}

// NewLogSink writes every alert to the structured log.
func NewLogSink(log logger.Logger) Sink {
	return Func(func(a Alert) {
		fields := map[string]interface{}{
			"level":       string(a.Level),
			"description": a.Description,
		}
		if a.Level == LevelError {
			log.Warn("alert: "+a.Title, fields)
			return
		}
		log.Info("alert: "+a.Title, fields)
	})
}

// Fanout delivers each alert to every sink in order.
type Fanout []Sink

func (f Fanout) Success(title string) {
	for _, s := range f {
		s.Success(title)
	}
}

func (f Fanout) Error(title, description string) {
	for _, s := range f {
		s.Error(title, description)
	}
}

func (f Fanout) Info(title, description string) {
	for _, s := range f {
		s.Info(title, description)
	}
}

// Memory keeps the most recent alerts, newest last.
type Memory struct {
	mu     sync.Mutex
	limit  int
	alerts []Alert
	Sink
}

func NewMemory(limit int) *Memory {
	m := &Memory{limit: limit}
	m.Sink = Func(m.add)
	return m
}

func (m *Memory) add(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	if m.limit > 0 && len(m.alerts) > m.limit {
		m.alerts = m.alerts[len(m.alerts)-m.limit:]
	}
}

// Recent returns a copy of the retained alerts.
func (m *Memory) Recent() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Last returns the newest alert, if any.
func (m *Memory) Last() (Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.alerts) == 0 {
		return Alert{}, false
	}
	return m.alerts[len(m.alerts)-1], true
}
