package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(hub)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to dial hub: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, hub.SubscriberCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForSubscribers(t, hub, 1)

	hub.Broadcast(Update{RunID: "run-1", Stage: "grid", Completed: 25, Total: 100})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read update: %v", err)
	}
	if update.RunID != "run-1" || update.Completed != 25 {
		t.Fatalf("unexpected update: %+v", update)
	}
	if update.Percent != 25 {
		t.Fatalf("expected percent 25, got %v", update.Percent)
	}
	if update.Timestamp.IsZero() {
		t.Fatal("expected broadcast to stamp the update")
	}
}

func TestHubReplaysLastUpdateToNewSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	hub.Broadcast(Update{RunID: "run-2", Stage: "grid", Completed: 50, Total: 100})

	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read replayed update: %v", err)
	}
	if update.Completed != 50 {
		t.Fatalf("expected replayed progress 50, got %+v", update)
	}
}

func TestHubProgressFuncAdapter(t *testing.T) {
	hub := NewHub(quietLogger())
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForSubscribers(t, hub, 1)

	fn := hub.ProgressFunc("run-3", "validation")
	fn(3, 4)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read update: %v", err)
	}
	if update.Stage != "validation" || update.Percent != 75 {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)
}

func TestServerHealthEndpoints(t *testing.T) {
	hub := NewHub(quietLogger())
	server := NewServer(Config{
		ServiceName: "gridtune",
		Logger:      quietLogger(),
		Hub:         hub,
	})
	server.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("ready request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /ready, got %d", resp.StatusCode)
	}

	server.SetReady(false)
	resp, err = http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("ready request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when not ready, got %d", resp.StatusCode)
	}
}
