// Package report is the single interface through which every sync outcome is
// made visible: successes, ignored events, conflicts and errors.
//
// Components emit Events to a Reporter. The process wires a Multi reporter
// that writes to the console and log file (Logger), the SQLite journal and
// the live dashboard.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docwiz/wizsync/internal/wizard"
)

// Level is the severity of an event.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) Level {
	switch s {
	case "success":
		return LevelSuccess
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Action names what happened.
type Action string

const (
	ActionDiscovered   Action = "discovered"
	ActionDownloaded   Action = "downloaded"
	ActionInSync       Action = "in_sync"
	ActionConflict     Action = "conflict"
	ActionOverwritten  Action = "overwritten"
	ActionKeptLocal    Action = "kept_local"
	ActionSyncComplete Action = "sync_complete"
	ActionIgnored      Action = "ignored"
	ActionUploaded     Action = "uploaded"
	ActionUnchanged    Action = "unchanged"
	ActionRejected     Action = "rejected"
	ActionEntityGone   Action = "entity_gone"
	ActionFailed       Action = "failed"
	ActionWatching     Action = "watching"
	ActionStopped      Action = "stopped"
)

// NoWizard marks events that are not about a single wizard.
const NoWizard = -1

// Event is one reported outcome.
type Event struct {
	ID       string
	Time     time.Time
	Level    Level
	Action   Action
	WizardID int
	Kind     string
	Path     string
	Message  string
	Err      error
}

// New returns a stamped event that is not yet tied to a wizard.
func New(level Level, action Action, message string) Event {
	return Event{
		ID:       uuid.NewString(),
		Time:     time.Now(),
		Level:    level,
		Action:   action,
		WizardID: NoWizard,
		Message:  message,
	}
}

// ForWizard ties the event to a wizard.
func (e Event) ForWizard(id int) Event {
	e.WizardID = id
	return e
}

// ForArtifact ties the event to one artifact file of a wizard.
func (e Event) ForArtifact(id int, kind wizard.ArtifactKind, path string) Event {
	e.WizardID = id
	e.Kind = kind.String()
	e.Path = path
	return e
}

// AtPath records the file the event is about.
func (e Event) AtPath(path string) Event {
	e.Path = path
	return e
}

// WithErr attaches the error that caused the event.
func (e Event) WithErr(err error) Event {
	e.Err = err
	return e
}

// ErrText returns the attached error message, or "".
func (e Event) ErrText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Reporter receives events. Implementations must not block for long: the
// dispatcher reports from its single delivery goroutine.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ev Event) { f(ev) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

type multi []Reporter

func (m multi) Report(ev Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

// Multi returns a reporter that forwards each event to all non-nil reporters
// in order.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report implements Reporter.
func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Actions returns the recorded actions in order.
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]Action, len(r.events))
	for i, ev := range r.events {
		actions[i] = ev.Action
	}
	return actions
}

// Count returns how many events with the given action were recorded.
func (r *Recorder) Count(action Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Action == action {
			n++
		}
	}
	return n
}

// Filter returns the recorded events with the given action.
func (r *Recorder) Filter(action Action) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
