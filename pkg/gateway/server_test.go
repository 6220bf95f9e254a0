package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewire-ai/voicewire/pkg/core/call"
	"github.com/voicewire-ai/voicewire/pkg/core/voice/stt"
	"github.com/voicewire-ai/voicewire/pkg/core/voice/tts"
)

type gwRecognizer struct {
	events chan stt.Event
	once   sync.Once
}

func newGWRecognizer() *gwRecognizer {
	return &gwRecognizer{events: make(chan stt.Event, 16)}
}

func (r *gwRecognizer) SendAudio(_ []byte) bool  { return true }
func (r *gwRecognizer) FlushUtterance() string   { return "" }
func (r *gwRecognizer) Events() <-chan stt.Event { return r.events }
func (r *gwRecognizer) AudioSeconds() float64    { return 0 }
func (r *gwRecognizer) Close() error {
	r.once.Do(func() { close(r.events) })
	return nil
}

type gwSynth struct{}

func (gwSynth) Name() string { return "fake" }

func (gwSynth) Synthesize(_ context.Context, _ string, _ tts.SynthesizeOptions) (*tts.Synthesis, error) {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0xFF
	}
	return &tts.Synthesis{Audio: buf, Format: tts.Format{Encoding: tts.EncodingMulaw, SampleRate: 8000}}, nil
}

type gwLLM struct{}

func (gwLLM) Complete(context.Context, *call.Request) (*call.Response, error) {
	return &call.Response{Text: "Hello."}, nil
}

func (gwLLM) Stream(context.Context, *call.Request) (call.TokenStream, error) {
	return nil, io.EOF
}

func testFactory(t *testing.T) SessionFactory {
	return func(agent call.AgentConfig) (call.Deps, error) {
		return call.Deps{
			Recognizer:  newGWRecognizer(),
			Synthesizer: gwSynth{},
			LLM:         gwLLM{},
		}, nil
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/calls"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func configure(t *testing.T, conn *websocket.Conn, greeting string) {
	t.Helper()
	msg := map[string]any{
		"type": "session.configure",
		"session": map[string]any{
			"agent": map[string]any{"greeting": greeting, "model": "test-model"},
			"playback": map[string]any{
				"frame_bytes":       4,
				"frame_interval_ms": 1,
				"fade_in_ms":        1,
				"safety_margin_ms":  2000,
			},
		},
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads frames until match returns true, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(msgType int, payload []byte) bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		msgType, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", what)
		if match(msgType, payload) {
			return
		}
	}
}

func eventType(payload []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(payload, &env)
	return env.Type
}

func TestGateway_GreetingAndCostOverWebSocket(t *testing.T) {
	s := New(Config{}, testFactory(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	configure(t, conn, "Hi, how can I help?")

	var sawGreeting, sawAudio bool
	readUntil(t, conn, "greeting and audio", func(msgType int, payload []byte) bool {
		switch {
		case msgType == websocket.BinaryMessage:
			sawAudio = true
		case eventType(payload) == "transcript.agent":
			sawGreeting = true
		}
		return sawGreeting && sawAudio
	})

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "cost.get"}))
	readUntil(t, conn, "cost snapshot", func(msgType int, payload []byte) bool {
		if msgType != websocket.TextMessage || eventType(payload) != "cost.snapshot" {
			return false
		}
		var env struct {
			Data struct {
				TTSCharacters int64 `json:"tts_characters"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &env))
		assert.Greater(t, env.Data.TTSCharacters, int64(0), "greeting characters must be metered")
		return true
	})
}

func TestGateway_InputLevelDiagnostic(t *testing.T) {
	s := New(Config{}, testFactory(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	configure(t, conn, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "level.get"}))
	readUntil(t, conn, "level snapshot", func(msgType int, payload []byte) bool {
		if msgType != websocket.TextMessage || eventType(payload) != "level.snapshot" {
			return false
		}
		var env struct {
			Data struct {
				RMS float64 `json:"rms"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &env))
		assert.GreaterOrEqual(t, env.Data.RMS, 0.0)
		return true
	})
}

func TestGateway_RejectsWithoutConfigure(t *testing.T) {
	s := New(Config{}, testFactory(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "cost.get"}))

	readUntil(t, conn, "configure error", func(msgType int, payload []byte) bool {
		return eventType(payload) == "error"
	})
}

func TestGateway_SessionLimit(t *testing.T) {
	s := New(Config{MaxSessions: 1}, testFactory(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	configure(t, conn, "")

	resp, err := http.Get(srv.URL + "/v1/calls")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGateway_HealthAndMetricsEndpoints(t *testing.T) {
	s := New(Config{}, testFactory(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "voicewire_sessions_started_total")
}
