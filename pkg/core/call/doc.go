// Package call implements the real-time voice conversation orchestrator.
//
// A Session turns a bidirectional telephony audio stream into a spoken
// dialogue by coordinating a streaming transcription connection, a
// streaming language model, and a speech synthesizer, while handling
// barge-in, tool calls, and knowledge lookups without dead air.
//
// # Architecture
//
// The package provides these components:
//
//   - Session: the orchestrator; one per call, single event loop
//   - TurnManager: the turn-taking state machine and barge-in decision
//   - Generator: drives the model, segments sentences, extracts tool calls
//   - Scheduler: serializes synthesis and paces mu-law frames in real time
//   - SentenceBuffer: releases sentences as soon as a boundary is reached
//
// # Data Flow
//
//	Audio In → STT Adapter → transcript events → TurnManager
//	                                                  │ endpoint
//	                                                  ▼
//	Audio Out ← Scheduler ← sentences ← Generator ← LLM stream
//	                                        │
//	                                        └── tool calls → external executor
//
// # State Machine
//
// The turn state progresses:
//
//	IDLE → PROCESSING → AGENT_SPEAKING → IDLE
//	           │              │ barge-in
//	           ▼              ▼
//	   WAITING_FOR_TOOL   USER_SPEAKING
//
// # Usage
//
//	cfg := call.DefaultSessionConfig()
//	cfg.Agent = call.AgentConfig{
//	    Instructions: "You are a store assistant.",
//	    Greeting:     "Hi, how can I help?",
//	    Model:        "gpt-4o-mini",
//	}
//
//	session := call.NewSession(cfg, call.Deps{
//	    Recognizer:  recognizer,
//	    Synthesizer: synth,
//	    LLM:         llm,
//	})
//	session.Start()
//
//	// Feed 8kHz mu-law frames from the transport.
//	session.SendAudio(frame)
//
//	for event := range session.Events() {
//	    switch e := event.(type) {
//	    case *call.AudioDeltaEvent:
//	        transport.Write(e.Frame)
//	    case *call.FunctionCallEvent:
//	        go execute(session, e)
//	    }
//	}
package call
