package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/docwiz/wizsync/internal/report"
	"github.com/docwiz/wizsync/internal/wizard"
)

// startServer starts a dashboard on a random port.
func startServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(Config{Port: 0})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

// dial connects a client and consumes the welcome message.
func dial(t *testing.T, ctx context.Context, server *Server) (*websocket.Conn, Message) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn, readMessage(t, ctx, conn)
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(Config{Port: 0})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	server := NewServer(Config{Port: 0})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestHealth(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestWelcomeIsStats(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server)
	h.count(report.New(report.LevelSuccess, report.ActionUploaded, "up"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, welcome := dial(t, ctx, server)
	if welcome.Type != MessageTypeStats {
		t.Fatalf("welcome type = %s, want %s", welcome.Type, MessageTypeStats)
	}

	var stats StatsData
	if err := json.Unmarshal(welcome.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", stats.Uploaded)
	}
	if server.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", server.ClientCount())
	}
}

func TestReportBroadcastsEvent(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		conns[i], _ = dial(t, ctx, server)
	}

	ev := report.New(report.LevelError, report.ActionRejected, "bad tag").
		ForArtifact(42, wizard.Configuration, "/sync/wizards/42 - Acme/WizardConfiguration.xml")
	h.Report(ev)

	for i, conn := range conns {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeSyncEvent {
			t.Fatalf("client %d: type = %s, want %s", i, msg.Type, MessageTypeSyncEvent)
		}

		var data SyncEventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatalf("Failed to unmarshal event: %v", err)
		}
		if data.ID != ev.ID || data.Action != "rejected" || data.Level != "error" || data.Message != "bad tag" {
			t.Errorf("client %d: event = %+v", i, data)
		}
		if data.WizardID == nil || *data.WizardID != 42 {
			t.Errorf("client %d: wizard_id = %v, want 42", i, data.WizardID)
		}

		stats := readMessage(t, ctx, conn)
		if stats.Type != MessageTypeStats {
			t.Errorf("client %d: second message type = %s, want stats", i, stats.Type)
		}
	}
}

func TestReportSyncComplete(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _ := dial(t, ctx, server)

	h.Report(report.New(report.LevelSuccess, report.ActionSyncComplete, "Synchronization done"))

	want := []MessageType{MessageTypeSyncEvent, MessageTypeSyncComplete, MessageTypeStats}
	for _, typ := range want {
		if msg := readMessage(t, ctx, conn); msg.Type != typ {
			t.Errorf("type = %s, want %s", msg.Type, typ)
		}
	}
}

func TestStatsCounting(t *testing.T) {
	h := NewHandler(NewServer(Config{}))

	for _, ev := range []report.Event{
		report.New(report.LevelSuccess, report.ActionUploaded, ""),
		report.New(report.LevelSuccess, report.ActionUploaded, ""),
		report.New(report.LevelError, report.ActionRejected, ""),
		report.New(report.LevelError, report.ActionFailed, "").WithErr(errors.New("x")),
		report.New(report.LevelInfo, report.ActionIgnored, ""),
	} {
		h.count(ev)
	}

	stats := h.Stats()
	if stats.Uploaded != 2 || stats.Rejected != 1 || stats.Failed != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.ByAction["ignored"] != 1 {
		t.Errorf("ByAction[ignored] = %d, want 1", stats.ByAction["ignored"])
	}

	// The copy is detached from the handler.
	stats.ByAction["ignored"] = 99
	if h.Stats().ByAction["ignored"] != 1 {
		t.Error("Stats() must return a copy")
	}
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	server := NewServer(Config{Port: 0})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			server.Broadcast(Message{Type: MessageTypeStats})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked after Stop")
	}
}
