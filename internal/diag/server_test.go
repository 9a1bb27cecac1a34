package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/wincap/internal/wincap"
)

type fakeFacade struct {
	name string
	caps wincap.Capabilities
}

func (f fakeFacade) Capabilities() wincap.Capabilities { return f.caps }
func (f fakeFacade) BackendName() string               { return f.name }

func TestHandleHealthz(t *testing.T) {
	s := NewServer(fakeFacade{name: "x11"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["backend"] != "x11" {
		t.Fatalf("healthz body = %+v, want status=ok backend=x11", body)
	}
}

func TestHandleCapabilities(t *testing.T) {
	caps := wincap.Capabilities{Backend: "wayland", SupportsDisplay: true, NeedsConsent: true}
	s := NewServer(fakeFacade{name: "wayland", caps: caps})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/capabilities")
	if err != nil {
		t.Fatalf("GET /capabilities: %v", err)
	}
	defer resp.Body.Close()

	var got wincap.Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Backend != caps.Backend || got.SupportsDisplay != caps.SupportsDisplay || got.NeedsConsent != caps.NeedsConsent {
		t.Fatalf("capabilities = %+v, want %+v", got, caps)
	}
}

func TestConsentStreamBroadcastsPublishedEvents(t *testing.T) {
	s := NewServer(fakeFacade{name: "wayland"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/consent/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give handleConsentStream time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	want := ConsentEvent{SourceID: "display:primary", State: "primed", Time: time.Unix(0, 0)}
	s.Publish(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got ConsentEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.SourceID != want.SourceID || got.State != want.State {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPublishDropsSlowClientsWithoutBlocking(t *testing.T) {
	s := NewServer(fakeFacade{name: "x11"})
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// Fill the buffered channel, then confirm Publish does not block.
	for i := 0; i < cap(ch); i++ {
		s.Publish(ConsentEvent{SourceID: "x"})
	}
	done := make(chan struct{})
	go func() {
		s.Publish(ConsentEvent{SourceID: "overflow"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full listener channel")
	}
}
