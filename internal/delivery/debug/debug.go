package debug

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mirror_go/internal/domain"
	"mirror_go/internal/httpresponse"
)

const writeWait = 5 * time.Second

type EngineStatus interface {
	Alive() bool
}

type DecisionJournal interface {
	List() []domain.Decision
	Subscribe() (<-chan domain.Decision, func())
}

type HealthResponse struct {
	EngineAlive bool `json:"engine_alive"`
}

type DebugHandler struct {
	log      *zap.SugaredLogger
	engine   EngineStatus
	journal  DecisionJournal
	upgrader websocket.Upgrader
}

func NewDebugHandler(log *zap.SugaredLogger, engine EngineStatus, journal DecisionJournal) *DebugHandler {
	return &DebugHandler{
		log:     log,
		engine:  engine,
		journal: journal,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (d *DebugHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpresponse.WriteErrorWithStatus(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpresponse.WriteErrorWithStatus(w, http.StatusMethodNotAllowed, "only GET is allowed")
	})

	r.Get("/healthz", d.HandleHealth)
	r.Get("/decisions", d.HandleDecisions)
	r.Get("/decisions/stream", d.HandleDecisionStream)
	return r
}

func (d *DebugHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	alive := d.engine.Alive()
	if !alive {
		status = http.StatusServiceUnavailable
	}
	httpresponse.WriteResponseWithStatus(w, status, HealthResponse{EngineAlive: alive})
}

func (d *DebugHandler) HandleDecisions(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, d.journal.List())
}

// HandleDecisionStream upgrades to a websocket and pushes every new decision
// as one JSON message until either side goes away.
func (d *DebugHandler) HandleDecisionStream(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	decisions, cancel := d.journal.Subscribe()
	defer cancel()

	// the client never sends anything, reading only notices it leaving
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	d.log.Infow("decision stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			d.log.Infow("decision stream closed", "remote", r.RemoteAddr)
			return
		case decision, ok := <-decisions:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(decision); err != nil {
				d.log.Warnw("failed to write decision", "id", decision.ID, "error", err)
				return
			}
		}
	}
}
