package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fridgekeep/fridgekeep/server/internal/store"
	wsHub "github.com/fridgekeep/fridgekeep/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

type seed struct{ id, owner string }

func newStore(t *testing.T, seeds ...seed) *store.Store {
	t.Helper()
	st := store.New()
	for _, s := range seeds {
		if _, err := st.Register(s.id, s.owner, "/spool/"+s.id+".jpg"); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

// startHub serves the hub on a test server and runs its broadcast loop.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateList(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(t, seed{"img1", "user1"}, seed{"img2", "user2"}))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "resources" {
		t.Errorf("event: got %q, want resources", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Resources) != 2 {
		t.Errorf("resources: got %d, want 2", len(m.Data.Resources))
	}
}

func TestHub_OwnerFilter(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(t, seed{"img1", "user1"}, seed{"img2", "user2"}))

	m := readMessage(t, dial(t, wsURL+"?owner=user2"))
	if len(m.Data.Resources) != 1 || m.Data.Resources[0].ID != "img2" {
		t.Errorf("filtered resources: got %+v, want [img2]", m.Data.Resources)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore(t)
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	if m := readMessage(t, conn); len(m.Data.Resources) != 0 {
		t.Fatalf("initial list: got %d, want 0", len(m.Data.Resources))
	}

	if _, err := st.Register("new-img", "user1", "/spool/new.jpg"); err != nil {
		t.Fatal(err)
	}

	// Ticks before the registration may still carry the empty list.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Resources) == 1 {
			if m.Data.Resources[0].ID != "new-img" {
				t.Errorf("id: got %q, want new-img", m.Data.Resources[0].ID)
			}
			return
		}
	}
	t.Fatal("no broadcast carried the new resource")
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(t))

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close
	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore(t))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(t), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
