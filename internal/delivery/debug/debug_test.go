package debug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mirror_go/internal/domain"
	"mirror_go/internal/httpresponse"
)

type fakeEngine struct{ alive bool }

func (f fakeEngine) Alive() bool { return f.alive }

type fakeJournal struct {
	decisions  []domain.Decision
	feed       chan domain.Decision
	subscribed chan struct{}
	cancelled  chan struct{}
}

func newFakeJournal(decisions ...domain.Decision) *fakeJournal {
	return &fakeJournal{
		decisions:  decisions,
		feed:       make(chan domain.Decision, 1),
		subscribed: make(chan struct{}),
		cancelled:  make(chan struct{}),
	}
}

func (f *fakeJournal) List() []domain.Decision { return f.decisions }

func (f *fakeJournal) Subscribe() (<-chan domain.Decision, func()) {
	close(f.subscribed)
	return f.feed, func() { close(f.cancelled) }
}

type envelope struct {
	Status int             `json:"Status"`
	Body   json.RawMessage `json:"Body"`
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v (%q)", path, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	for _, alive := range []bool{true, false} {
		h := NewDebugHandler(zap.NewNop().Sugar(), fakeEngine{alive: alive}, newFakeJournal()).Router()
		rec, env := get(t, h, "/healthz")

		want := http.StatusOK
		if !alive {
			want = http.StatusServiceUnavailable
		}
		if rec.Code != want || env.Status != want {
			t.Fatalf("alive=%v: code %d, envelope status %d, want %d", alive, rec.Code, env.Status, want)
		}
		var body HealthResponse
		if err := json.Unmarshal(env.Body, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.EngineAlive != alive {
			t.Fatalf("engine_alive = %v, want %v", body.EngineAlive, alive)
		}
	}
}

func TestDecisions(t *testing.T) {
	journal := newFakeJournal(
		domain.Decision{ID: "1", Move: "e5", Reason: domain.ReasonMirror},
		domain.Decision{ID: "2", Move: "d4", Reason: domain.ReasonWorse},
	)
	h := NewDebugHandler(zap.NewNop().Sugar(), fakeEngine{alive: true}, journal).Router()
	rec, env := get(t, h, "/decisions")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var got []domain.Decision
	if err := json.Unmarshal(env.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 2 || got[0].Move != "e5" || got[1].Reason != domain.ReasonWorse {
		t.Fatalf("decisions = %+v", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := NewDebugHandler(zap.NewNop().Sugar(), fakeEngine{}, newFakeJournal()).Router()
	rec, env := get(t, h, "/moves")
	if rec.Code != http.StatusNotFound || env.Status != http.StatusNotFound {
		t.Fatalf("code = %d, envelope status %d, want 404", rec.Code, env.Status)
	}
	var body httpresponse.ErrorResponse
	if err := json.Unmarshal(env.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorDescription != "no such endpoint: /moves" {
		t.Fatalf("ErrorDescription = %q", body.ErrorDescription)
	}
}

func TestWrongMethod(t *testing.T) {
	h := NewDebugHandler(zap.NewNop().Sugar(), fakeEngine{}, newFakeJournal()).Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decisions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code = %d, want 405", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestDecisionStream(t *testing.T) {
	journal := newFakeJournal()
	srv := httptest.NewServer(NewDebugHandler(zap.NewNop().Sugar(), fakeEngine{alive: true}, journal).Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/decisions/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	select {
	case <-journal.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler never subscribed")
	}
	journal.feed <- domain.Decision{ID: "abc", Move: "c3", Reason: domain.ReasonIllegal}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got domain.Decision
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.ID != "abc" || got.Move != "c3" || got.Reason != domain.ReasonIllegal {
		t.Fatalf("decision = %+v", got)
	}

	conn.Close()
	select {
	case <-journal.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatalf("subscription not cancelled after client left")
	}
}
