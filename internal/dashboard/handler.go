package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/docwiz/wizsync/internal/report"
)

// SyncEventData is one reported outcome.
type SyncEventData struct {
	ID       string `json:"id"`
	Level    string `json:"level"`
	Action   string `json:"action"`
	WizardID *int   `json:"wizard_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
}

// StatsData contains running outcome counters since the handler started.
type StatsData struct {
	Since    time.Time      `json:"since"`
	ByAction map[string]int `json:"by_action"`
	Uploaded int            `json:"uploaded"`
	Rejected int            `json:"rejected"`
	Failed   int            `json:"failed"`
}

// SyncCompleteData describes a finished reconcile pass.
type SyncCompleteData struct {
	Message string `json:"message"`
}

// Handler turns reported events into dashboard messages. It implements
// report.Reporter and is safe for concurrent use.
type Handler struct {
	server *Server

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through server. New clients are
// greeted with the current statistics.
func NewHandler(server *Server) *Handler {
	h := &Handler{
		server: server,
		stats: StatsData{
			Since:    time.Now(),
			ByAction: make(map[string]int),
		},
	}
	server.SetWelcome(h.statsMessage)
	return h
}

// Report implements report.Reporter.
func (h *Handler) Report(ev report.Event) {
	h.count(ev)

	h.server.Broadcast(message(MessageTypeSyncEvent, ev.Time, syncEventData(ev)))
	if ev.Action == report.ActionSyncComplete {
		h.server.Broadcast(message(MessageTypeSyncComplete, ev.Time, SyncCompleteData{Message: ev.Message}))
	}
	h.server.Broadcast(h.statsMessage())
}

// Stats returns a copy of the running counters.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.stats
	out.ByAction = make(map[string]int, len(h.stats.ByAction))
	for k, v := range h.stats.ByAction {
		out.ByAction[k] = v
	}
	return out
}

func (h *Handler) count(ev report.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.ByAction[string(ev.Action)]++
	switch ev.Action {
	case report.ActionUploaded:
		h.stats.Uploaded++
	case report.ActionRejected:
		h.stats.Rejected++
	case report.ActionFailed:
		h.stats.Failed++
	}
}

func (h *Handler) statsMessage() Message {
	return message(MessageTypeStats, time.Now(), h.Stats())
}

func syncEventData(ev report.Event) SyncEventData {
	data := SyncEventData{
		ID:      ev.ID,
		Level:   ev.Level.String(),
		Action:  string(ev.Action),
		Kind:    ev.Kind,
		Path:    ev.Path,
		Message: ev.Message,
		Error:   ev.ErrText(),
	}
	if ev.WizardID != report.NoWizard {
		id := ev.WizardID
		data.WizardID = &id
	}
	return data
}

// message builds a Message around a JSON payload.
func message(typ MessageType, at time.Time, data any) Message {
	raw, _ := json.Marshal(data)
	return Message{Type: typ, Timestamp: at, Data: raw}
}
