// Package apm observes the commands the driver sends to the source
// and destination deployments.
package apm

import (
	"context"
	"sync"
	"time"

	"github.com/mongodb/docshift"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/v2/event"
)

// Monitor tallies driver commands per namespace and command name
// between calls to Rotate.
type Monitor struct {
	config *MonitorConfig

	inProg     map[int64]commandKey
	inProgLock sync.Mutex

	current        map[commandKey]*Record
	currentStartAt time.Time
	currentLock    sync.Mutex
}

type commandKey struct {
	Database   string
	Collection string
	Command    string
}

func (k commandKey) String() string {
	if k.Collection == "" {
		return k.Database + "." + k.Command
	}
	return k.Database + "." + k.Collection + "." + k.Command
}

// Record is the tally for one command in one window.
type Record struct {
	Succeeded int64         `json:"succeeded"`
	Failed    int64         `json:"failed"`
	Throttled int64         `json:"throttled"`
	Duration  time.Duration `json:"duration"`
}

// Window is the set of records collected between two rotations.
type Window struct {
	StartedAt time.Time
	EndedAt   time.Time
	Records   map[string]Record
}

// Message renders the window for grip.
func (w Window) Message() message.Composer {
	fields := message.Fields{
		"message":    "driver command summary",
		"started_at": w.StartedAt,
		"ended_at":   w.EndedAt,
	}
	for name, r := range w.Records {
		fields[name] = r
	}
	return message.MakeFields(fields)
}

func NewMonitor(conf *MonitorConfig) *Monitor {
	return &Monitor{
		config:         conf,
		inProg:         make(map[int64]commandKey),
		current:        make(map[commandKey]*Record),
		currentStartAt: time.Now(),
	}
}

func (m *Monitor) handleStartedEvent(_ context.Context, e *event.CommandStartedEvent) {
	k := commandKey{
		Database: e.DatabaseName,
		Command:  e.CommandName,
	}

	if arg, err := e.Command.LookupErr(k.Command); err == nil {
		k.Collection, _ = arg.StringValueOK()
	}

	if !m.config.shouldTrack(k) {
		return
	}

	m.inProgLock.Lock()
	defer m.inProgLock.Unlock()

	m.inProg[e.RequestID] = k
}

func (m *Monitor) popRequest(id int64) (commandKey, bool) {
	m.inProgLock.Lock()
	defer m.inProgLock.Unlock()

	k, ok := m.inProg[id]
	delete(m.inProg, id)
	return k, ok
}

func (m *Monitor) update(id int64, fn func(*Record)) {
	k, ok := m.popRequest(id)
	if !ok {
		return
	}

	m.currentLock.Lock()
	defer m.currentLock.Unlock()

	r := m.current[k]
	if r == nil {
		r = &Record{}
		m.current[k] = r
	}
	fn(r)
}

func (m *Monitor) handleSucceededEvent(_ context.Context, e *event.CommandSucceededEvent) {
	m.update(e.RequestID, func(r *Record) {
		r.Succeeded++
		r.Duration += e.Duration
	})
}

func (m *Monitor) handleFailedEvent(_ context.Context, e *event.CommandFailedEvent) {
	throttled := docshift.IsThrottled(e.Failure)
	m.update(e.RequestID, func(r *Record) {
		r.Failed++
		r.Duration += e.Duration
		if throttled {
			r.Throttled++
		}
	})
}

// DriverAPM returns the hooks to register with the driver.
func (m *Monitor) DriverAPM() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   m.handleStartedEvent,
		Succeeded: m.handleSucceededEvent,
		Failed:    m.handleFailedEvent,
	}
}

// Rotate closes the current window and starts a new one.
func (m *Monitor) Rotate() Window {
	m.currentLock.Lock()
	defer m.currentLock.Unlock()

	now := time.Now()
	out := Window{
		StartedAt: m.currentStartAt,
		EndedAt:   now,
		Records:   make(map[string]Record, len(m.current)),
	}
	for k, r := range m.current {
		out.Records[k.String()] = *r
	}

	m.current = make(map[commandKey]*Record)
	m.currentStartAt = now

	return out
}
