package ws

import (
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nightingale/internal/events"
)

func startTestServer(t *testing.T, sessionID string, resumed bool, recv *events.Receiver, onExit func()) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		Serve(c, sessionID, resumed, nil, recv, onExit)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestServeSendsReadyOnConnect(t *testing.T) {
	ch := events.NewChan()
	recv := events.NewReceiver(ch)
	url := startTestServer(t, "sess-1", false, recv, func() {})

	conn := dial(t, url)
	defer conn.Close()

	var env events.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read ready frame: %v", err)
	}
	if env.Op != events.OpReady {
		t.Fatalf("expected op %q, got %q", events.OpReady, env.Op)
	}
}

func TestServeForwardsOutgoingEvents(t *testing.T) {
	ch := events.NewChan()
	sender := events.NewSender(ch)
	recv := events.NewReceiver(ch)
	url := startTestServer(t, "sess-2", false, recv, func() {})

	conn := dial(t, url)
	defer conn.Close()

	var ready events.Envelope
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read ready frame: %v", err)
	}

	sender.Send(events.UpdateState(42, events.StateConnectGateway))

	var env events.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read forwarded event: %v", err)
	}
	if env.Op != events.OpUpdateState {
		t.Fatalf("expected op %q, got %q", events.OpUpdateState, env.Op)
	}
}

func TestServeCallsOnExitOnClientClose(t *testing.T) {
	ch := events.NewChan()
	recv := events.NewReceiver(ch)

	var exited atomic.Bool
	url := startTestServer(t, "sess-3", false, recv, func() { exited.Store(true) })

	conn := dial(t, url)

	var ready events.Envelope
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read ready frame: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if exited.Load() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("onExit was not called after client close")
}
