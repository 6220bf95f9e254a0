package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

// Config configures the streaming transcription connection.
type Config struct {
	// URL is the websocket endpoint of the transcription service.
	URL string `json:"url"`

	// APIKey is sent as a bearer header on dial.
	APIKey string `json:"-"`

	// Model is the vendor-specific recognition model.
	Model string `json:"model,omitempty"`

	// Language is the ISO language hint.
	Language string `json:"language,omitempty"`

	// Encoding of inbound audio frames. Default: "pcm_mulaw".
	Encoding string `json:"encoding"`

	// SampleRate of inbound audio in Hz. Default: 8000.
	SampleRate int `json:"sample_rate"`

	// Endpointing asks the service to detect utterance boundaries.
	// Default: true.
	Endpointing bool `json:"endpointing"`

	// ConnectTimeout bounds the initial dial. Default: 30s.
	ConnectTimeout time.Duration `json:"connect_timeout"`

	// KeepaliveInterval is how often a zero-length frame is sent to keep
	// the idle stream open. Default: 3s.
	KeepaliveInterval time.Duration `json:"keepalive_interval"`

	// ReconnectMaxElapsed bounds the backoff window after an unexpected
	// disconnect. Default: 30s.
	ReconnectMaxElapsed time.Duration `json:"reconnect_max_elapsed"`

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger `json:"-"`
}

func (c Config) withDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = "pcm_mulaw"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 8000
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = 3 * time.Second
	}
	if c.ReconnectMaxElapsed == 0 {
		c.ReconnectMaxElapsed = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// bytesPerSecond of the inbound audio, for usage accounting.
func (c Config) bytesPerSecond() int {
	if c.Encoding == "pcm_s16le" {
		return c.SampleRate * 2
	}
	return c.SampleRate
}

// configureMessage is the first frame sent after dial, replayed on reconnect.
type configureMessage struct {
	Type        string `json:"type"` // "configure"
	Encoding    string `json:"encoding"`
	SampleRate  int    `json:"sample_rate"`
	Language    string `json:"language,omitempty"`
	Model       string `json:"model,omitempty"`
	Endpointing bool   `json:"endpointing"`
}

// serverMessage is the inbound wire format.
type serverMessage struct {
	Type    string `json:"type"` // "transcript", "endpoint", "error", "done"
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamAdapter maintains one live duplex transcription stream. It owns
// keepalive, bounded-backoff reconnection, and the utterance accumulation
// buffer. Lost audio is never replayed after a reconnect.
type StreamAdapter struct {
	cfg Config
	log *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn // nil while disconnected
	utterance strings.Builder

	events    chan Event
	done      chan struct{}
	closed    atomic.Bool
	bytesSent atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStreamAdapter creates an adapter. Call Connect before sending audio.
func NewStreamAdapter(cfg Config) *StreamAdapter {
	cfg = cfg.withDefaults()
	return &StreamAdapter{
		cfg:    cfg,
		log:    cfg.Logger.Named("stt"),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

// Connect establishes the stream and sends the initial configuration.
// Fails with a connect error on timeout or transport rejection.
func (a *StreamAdapter) Connect(ctx context.Context) error {
	if a.closed.Load() {
		return fmt.Errorf("adapter closed")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	conn, err := a.dial(a.ctx)
	if err != nil {
		return core.NewConnectError("stt", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop(conn)
	go a.keepaliveLoop()

	return nil
}

// dial opens the websocket and replays the configure message.
func (a *StreamAdapter) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: a.cfg.ConnectTimeout,
	}

	headers := http.Header{}
	if a.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, a.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	cfgMsg := configureMessage{
		Type:        "configure",
		Encoding:    a.cfg.Encoding,
		SampleRate:  a.cfg.SampleRate,
		Language:    a.cfg.Language,
		Model:       a.cfg.Model,
		Endpointing: a.cfg.Endpointing,
	}
	if err := conn.WriteJSON(cfgMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send configure: %w", err)
	}

	return conn, nil
}

// SendAudio forwards one audio frame. Returns false if not connected;
// frames are discarded while disconnected, never queued.
func (a *StreamAdapter) SendAudio(frame []byte) bool {
	if a.closed.Load() {
		return false
	}

	a.mu.Lock()
	conn := a.conn
	var err error
	if conn != nil {
		err = conn.WriteMessage(websocket.BinaryMessage, frame)
	}
	a.mu.Unlock()

	if conn == nil {
		return false
	}
	if err != nil {
		a.log.Debug("audio write failed", zap.Error(err))
		return false
	}

	a.bytesSent.Add(int64(len(frame)))
	return true
}

// FlushUtterance force-finalizes the accumulation buffer (barge-in path).
func (a *StreamAdapter) FlushUtterance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	text := strings.TrimSpace(a.utterance.String())
	a.utterance.Reset()
	return text
}

// Events returns the transcription event stream.
func (a *StreamAdapter) Events() <-chan Event {
	return a.events
}

// AudioSeconds reports how much audio has been forwarded.
func (a *StreamAdapter) AudioSeconds() float64 {
	bps := a.cfg.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(a.bytesSent.Load()) / float64(bps)
}

// Close tears down the stream. Idempotent; no events fire after Close.
func (a *StreamAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	if a.conn != nil {
		a.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	close(a.done)
	return nil
}

// keepaliveLoop sends a zero-length frame on a fixed interval so the
// service does not drop the stream during silence.
func (a *StreamAdapter) keepaliveLoop() {
	ticker := time.NewTicker(a.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			conn := a.conn
			if conn != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, []byte{}); err != nil {
					a.log.Debug("keepalive write failed", zap.Error(err))
				}
			}
			a.mu.Unlock()
		}
	}
}

// readLoop drains inbound messages until the connection drops, then hands
// off to the reconnect path.
func (a *StreamAdapter) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-a.done:
			return
		case <-a.ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if a.closed.Load() || a.ctx.Err() != nil {
				return
			}
			code := websocket.CloseAbnormalClosure
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
			}
			a.emit(&DisconnectedEvent{Code: code, Err: err})
			a.reconnect()
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.log.Debug("unparseable message", zap.ByteString("data", data))
			continue
		}

		switch msg.Type {
		case "transcript":
			a.handleTranscript(msg)

		case "endpoint":
			a.handleEndpoint()

		case "error":
			a.emit(&ErrorEvent{Err: fmt.Errorf("stt service: %s", msg.Message)})

		case "done":
			return
		}
	}
}

func (a *StreamAdapter) handleTranscript(msg serverMessage) {
	if msg.Text == "" {
		return
	}
	if !msg.IsFinal {
		a.emit(&InterimEvent{Text: msg.Text})
		return
	}

	a.mu.Lock()
	if a.utterance.Len() > 0 {
		a.utterance.WriteByte(' ')
	}
	a.utterance.WriteString(msg.Text)
	a.mu.Unlock()

	a.emit(&FinalEvent{Text: msg.Text})
}

// handleEndpoint flushes the accumulated utterance. Exactly one endpoint
// event fires per completed utterance; endpoints with no accumulated final
// text are noise and are dropped.
func (a *StreamAdapter) handleEndpoint() {
	a.mu.Lock()
	text := strings.TrimSpace(a.utterance.String())
	a.utterance.Reset()
	a.mu.Unlock()

	if text == "" {
		a.log.Debug("endpoint with empty utterance, ignoring")
		return
	}
	a.emit(&EndpointEvent{Utterance: text})
}

// reconnect re-establishes the stream with bounded backoff, replaying the
// initial configuration. Audio lost while disconnected is not replayed.
func (a *StreamAdapter) reconnect() {
	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = a.cfg.ReconnectMaxElapsed

	var conn *websocket.Conn
	op := func() error {
		if a.closed.Load() {
			return backoff.Permanent(fmt.Errorf("adapter closed"))
		}
		var err error
		conn, err = a.dial(a.ctx)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, a.ctx)); err != nil {
		if a.closed.Load() || a.ctx.Err() != nil {
			return
		}
		a.log.Warn("stt reconnect exhausted", zap.Error(err))
		a.emit(&ErrorEvent{Err: core.NewConnectError("stt", err)})
		return
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	a.log.Info("stt reconnected")
	go a.readLoop(conn)
}

// emit delivers an event to the session. Transcription events are never
// dropped; delivery blocks until the session loop drains or closes.
func (a *StreamAdapter) emit(ev Event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}
