// Package gateway exposes call sessions over WebSocket: one connection per
// call, binary frames for audio in both directions, JSON envelopes for
// everything else. It is the transport edge of the engine; vendor clients
// are supplied by the embedding system through a SessionFactory.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/pkg/core/call"
	"github.com/voicewire-ai/voicewire/pkg/obs"
)

// SessionFactory builds the per-call collaborators for a configured agent.
type SessionFactory func(agent call.AgentConfig) (call.Deps, error)

// clientMessage is any JSON message from the client after configure.
type clientMessage struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// configureMessage must be the first message on every connection.
type configureMessage struct {
	Type    string             `json:"type"`
	Session call.SessionConfig `json:"session"`
}

// envelope wraps outbound JSON events.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Server is the gateway HTTP/WebSocket server.
type Server struct {
	cfg      Config
	factory  SessionFactory
	logger   *zap.Logger
	metrics  *obs.Metrics
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	active   atomic.Int64
}

// New creates a gateway server around the given session factory.
func New(cfg Config, factory SessionFactory) *Server {
	cfg = cfg.withDefaults()
	registry := prometheus.NewRegistry()

	s := &Server{
		cfg:      cfg,
		factory:  factory,
		logger:   cfg.Logger,
		metrics:  obs.New(registry),
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /v1/calls", s.handleCall)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve runs the gateway until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ActiveSessions reports the number of live call connections.
func (s *Server) ActiveSessions() int { return int(s.active.Load()) }

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if int(s.active.Load()) >= s.cfg.MaxSessions {
		http.Error(w, "too many sessions", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.active.Add(1)
	defer s.active.Add(-1)

	// A write mutex serializes the event forwarder and reader-loop
	// replies; gorilla allows one concurrent writer.
	var writeMu sync.Mutex
	writeJSON := func(typ string, data any) error {
		payload, err := json.Marshal(envelope{Type: typ, Data: data})
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, payload)
	}
	writeBinary := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, frame)
	}

	s.touchDeadline(conn)
	var configure configureMessage
	if err := conn.ReadJSON(&configure); err != nil || configure.Type != "session.configure" {
		_ = writeJSON("error", map[string]string{"message": "first message must be session.configure"})
		return
	}
	configure.Session.Logger = s.logger

	deps, err := s.factory(configure.Session.Agent)
	if err != nil {
		s.logger.Error("session factory failed", zap.Error(err))
		_ = writeJSON("error", map[string]string{"message": err.Error()})
		return
	}
	deps.Metrics = s.metrics

	sess := call.NewSession(configure.Session, deps)
	sess.Start()
	defer sess.Close("disconnected")

	// Forward session events to the client. Audio goes out as binary
	// frames; everything else as JSON envelopes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sess.Events() {
			var err error
			switch e := ev.(type) {
			case *call.AudioDeltaEvent:
				err = writeBinary(e.Frame)
			case *call.ErrorEvent:
				err = writeJSON(ev.EventType(), map[string]any{
					"message": e.Err.Error(),
					"fatal":   e.Fatal,
				})
			default:
				err = writeJSON(ev.EventType(), ev)
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.touchDeadline(conn)

		if msgType == websocket.BinaryMessage {
			sess.SendAudio(message)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			_ = writeJSON("error", map[string]string{"message": "invalid JSON: " + err.Error()})
			continue
		}

		switch msg.Type {
		case "function.response":
			sess.SendFunctionResponse(msg.CallID, msg.Result)
		case "session.interrupt":
			sess.Interrupt()
		case "cost.get":
			_ = writeJSON("cost.snapshot", sess.CostSnapshot())
		case "level.get":
			_ = writeJSON("level.snapshot", map[string]float64{"rms": sess.InputLevel()})
		case "session.close":
			reason := msg.Reason
			if reason == "" {
				reason = "client closed"
			}
			sess.Close(reason)
		default:
			_ = writeJSON("error", map[string]string{"message": "unknown message type " + msg.Type})
		}
	}

	sess.Close("disconnected")
	<-done
}

func (s *Server) touchDeadline(conn *websocket.Conn) {
	if s.cfg.SessionIdleTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SessionIdleTimeout))
	}
}
