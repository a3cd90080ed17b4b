package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/engine"
	"github.com/torrevieja/waterworks/internal/events"
	"github.com/torrevieja/waterworks/internal/platform/tuning"
	"github.com/torrevieja/waterworks/internal/scenario"
)

// testProfile shrinks the buffers to test size and turns the command
// rate limit effectively off.
func testProfile() *tuning.Profile {
	return &tuning.Profile{
		BroadcastBuffer:      16,
		ClientSendBuffer:     8,
		EventPollInterval:    20 * time.Millisecond,
		MaxCommandsPerSecond: 1000,
		MaxClients:           4,
	}
}

// startHubServer wires a live hub behind an httptest server the same
// way the production entrypoint does and returns a ws:// URL to dial.
func startHubServer(t *testing.T, prof *tuning.Profile) (*Hub, *engine.Engine, *events.EventLog, string) {
	t.Helper()

	el := events.NewEventLog()
	opts := engine.Options{TickRate: time.Hour, OverheatRecovery: time.Minute}
	eng := engine.New(scenario.Default(), opts, zap.NewNop(), el)
	hub := NewHub(eng, el, prof, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		client.Register()
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return hub, eng, el, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg wsMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// frameReader decodes inbound frames one at a time. The write pump
// coalesces queued frames into a single websocket message with newline
// separators, so one read can yield several frames.
type frameReader struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []wsMessage
}

// next discards frames until one of the wanted type arrives. The read
// deadline bounds how long it waits.
func (fr *frameReader) next(typ string) wsMessage {
	fr.t.Helper()
	for {
		for len(fr.pending) > 0 {
			msg := fr.pending[0]
			fr.pending = fr.pending[1:]
			if msg.Type == typ {
				return msg
			}
		}

		fr.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := fr.conn.ReadMessage()
		if err != nil {
			fr.t.Fatalf("waiting for %s frame: %v", typ, err)
		}
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			if len(raw) == 0 {
				continue
			}
			var msg wsMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				fr.t.Fatalf("unmarshal frame %q: %v", raw, err)
			}
			fr.pending = append(fr.pending, msg)
		}
	}
}

func TestHubWelcomeAndCommands(t *testing.T) {
	_, eng, _, url := startHubServer(t, testProfile())
	conn := dialHub(t, url)
	fr := &frameReader{t: t, conn: conn}

	welcome := fr.next(msgTypeWelcome)
	if welcome.Snapshot == nil {
		t.Fatal("welcome frame carries no snapshot")
	}
	if welcome.Snapshot.Tower.MaxVolume != 1000 {
		t.Errorf("welcome capacity = %d, want 1000", welcome.Snapshot.Tower.MaxVolume)
	}

	sendFrame(t, conn, wsMessage{Type: msgTypeCommand, Command: "start"})
	ack := fr.next(msgTypeAck)
	if ack.Command != "start" {
		t.Errorf("ack command = %q, want start", ack.Command)
	}
	if !eng.Running() {
		t.Error("engine not running after start command")
	}

	sendFrame(t, conn, wsMessage{Type: msgTypeCommand, Command: "snapshot"})
	snap := fr.next(msgTypeSnapshot)
	if snap.Snapshot == nil || len(snap.Snapshot.Pumps) != 2 {
		t.Fatalf("snapshot frame = %+v, want 2 pumps", snap.Snapshot)
	}

	sendFrame(t, conn, wsMessage{Type: msgTypeCommand, Command: "flood"})
	errFrame := fr.next(msgTypeError)
	if !strings.Contains(errFrame.Error, "unknown command") {
		t.Errorf("error = %q, want unknown command", errFrame.Error)
	}

	sendFrame(t, conn, wsMessage{Type: msgTypeSnapshot})
	errFrame = fr.next(msgTypeError)
	if !strings.Contains(errFrame.Error, "unsupported frame type") {
		t.Errorf("error = %q, want unsupported frame type", errFrame.Error)
	}
}

func TestHubCommandRateLimit(t *testing.T) {
	prof := testProfile()
	prof.MaxCommandsPerSecond = 1

	_, eng, _, url := startHubServer(t, prof)
	conn := dialHub(t, url)
	fr := &frameReader{t: t, conn: conn}

	fr.next(msgTypeWelcome)

	sendFrame(t, conn, wsMessage{Type: msgTypeCommand, Command: "start"})
	sendFrame(t, conn, wsMessage{Type: msgTypeCommand, Command: "stop"})

	fr.next(msgTypeAck)
	errFrame := fr.next(msgTypeError)
	if errFrame.Error != "rate limited" {
		t.Errorf("error = %q, want rate limited", errFrame.Error)
	}
	if !eng.Running() {
		t.Error("rate-limited stop command was applied")
	}
}

func TestHubEnforcesClientLimit(t *testing.T) {
	prof := testProfile()
	prof.MaxClients = 1

	_, _, _, url := startHubServer(t, prof)

	first := dialHub(t, url)
	fr := &frameReader{t: t, conn: first}
	// The welcome proves the first client finished registering before
	// the second one dials.
	fr.next(msgTypeWelcome)

	second := dialHub(t, url)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("second client was served past the limit")
	}
}

func TestHubStreamsAppendedEvents(t *testing.T) {
	hub, _, el, url := startHubServer(t, testProfile())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.StartEventPoller(ctx)

	conn := dialHub(t, url)
	fr := &frameReader{t: t, conn: conn}
	fr.next(msgTypeWelcome)

	el.Append(events.NewEvent(7, events.EventTypeWaterDelivered, "electric-1",
		events.DeliveryPayload{Pump: "electric-1", Flow: 250}))

	frame := fr.next(msgTypeEvent)
	if frame.Event == nil {
		t.Fatal("event frame carries no event")
	}
	if frame.Event.Type != events.EventTypeWaterDelivered || frame.Event.Tick != 7 {
		t.Errorf("streamed event = %s at tick %d, want %s at tick 7",
			frame.Event.Type, frame.Event.Tick, events.EventTypeWaterDelivered)
	}
	if frame.Event.Source != "electric-1" {
		t.Errorf("event source = %q, want electric-1", frame.Event.Source)
	}
}
