package call

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/pkg/core"
	"github.com/voicewire-ai/voicewire/pkg/core/knowledge"
	"github.com/voicewire-ai/voicewire/pkg/core/usage"
)

// KnowledgeSearcher performs a live knowledge-base search. The search runs
// while a filler phrase plays, so latency here is hidden from the caller.
type KnowledgeSearcher interface {
	Search(ctx context.Context, knowledgeBaseID, query string) (string, error)
}

// GeneratorCallbacks receive one turn's incremental output. All callbacks
// run on the generator's goroutine.
type GeneratorCallbacks struct {
	// OnSentence delivers a complete sentence ready for synthesis.
	OnSentence func(text string)

	// OnToolCall delivers a model-requested function call.
	OnToolCall func(call ToolCall)

	// OnDone delivers the full accumulated response text. Not called when
	// the turn was aborted.
	OnDone func(fullText string)
}

// preflightPrompt asks a cheap classification call whether this turn needs
// a knowledge search before the main generation runs.
const preflightPrompt = `Decide if answering the user's last message requires searching the knowledge base.
Respond with only a JSON object: {"search": true/false, "query": "<search query or empty>"}`

type preflightDecision struct {
	Search bool   `json:"search"`
	Query  string `json:"query"`
}

// Generator drives one model turn: optional search pre-flight, streaming
// generation, sentence segmentation, tool-call extraction, and usage
// accounting. One Generator serves the whole session; Generate is called
// once per turn.
type Generator struct {
	llm      LLMClient
	searcher KnowledgeSearcher
	cache    *knowledge.Cache
	meter    *usage.Meter
	agent    AgentConfig
	logger   *zap.Logger
}

// NewGenerator creates a generator. searcher may be nil to disable the
// search pre-flight regardless of the agent's knowledge base.
func NewGenerator(llm LLMClient, searcher KnowledgeSearcher, cache *knowledge.Cache, meter *usage.Meter, agent AgentConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		llm:      llm,
		searcher: searcher,
		cache:    cache,
		meter:    meter,
		agent:    agent,
		logger:   logger,
	}
}

// Generate produces one response turn. Abort is cooperative: the flag is
// checked before every sentence and tool-call emission; once set, nothing
// further is emitted and the accumulated text is discarded by the caller.
// withTools=false runs a tool-free pass, used when resuming after a tool
// result.
func (g *Generator) Generate(ctx context.Context, messages []Message, withTools bool, abort *atomic.Bool, cb GeneratorCallbacks) error {
	messages = g.preflight(ctx, messages, abort, cb)
	if abort.Load() {
		return nil
	}

	req := &Request{
		Model:       g.agent.Model,
		Messages:    messages,
		MaxTokens:   g.agent.MaxTokens,
		Temperature: g.agent.Temperature,
	}
	if withTools {
		req.Tools = g.agent.Tools
	}

	stream, err := g.llm.Stream(ctx, req)
	if err != nil {
		g.logger.Warn("stream open failed, retrying non-streaming", zap.Error(err))
		return g.complete(ctx, req, abort, cb)
	}
	defer stream.Close()

	var (
		full     strings.Builder
		buf      = NewSentenceBuffer(0)
		seen     = map[string]struct{}{} // duplicate tool-call suppression
		toolSent bool
		exact    *TokenUsage
	)

	for {
		chunk, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Stream dropped mid-response: keep what accumulated rather
			// than failing the turn.
			g.logger.Warn("stream dropped mid-response", zap.Error(err), zap.Int("chars", full.Len()))
			break
		}

		if chunk.Usage != nil {
			exact = chunk.Usage
		}
		if chunk.ToolCall != nil {
			key := chunk.ToolCall.Name + "\x00" + chunk.ToolCall.Arguments
			if _, dup := seen[key]; dup {
				g.logger.Warn("suppressed duplicate tool call", zap.String("tool", chunk.ToolCall.Name))
				continue
			}
			seen[key] = struct{}{}
			if abort.Load() {
				return nil
			}
			toolSent = true
			if cb.OnToolCall != nil {
				cb.OnToolCall(*chunk.ToolCall)
			}
			continue
		}
		if chunk.TextDelta == "" {
			continue
		}

		full.WriteString(chunk.TextDelta)
		for _, sentence := range buf.Add(chunk.TextDelta) {
			if abort.Load() {
				return nil
			}
			if cb.OnSentence != nil {
				cb.OnSentence(sentence)
			}
		}
	}

	fullText := full.String()
	g.recordUsage(messages, fullText, exact)

	if abort.Load() {
		return nil
	}

	// Some providers emit the tool call as literal JSON text under load.
	// A successful parse here is a provider fault worth monitoring, not a
	// normal path.
	if !toolSent && cb.OnToolCall != nil {
		if tc, ok := parseInlineToolCall(fullText); ok {
			g.logger.Warn("recovered tool call from malformed text output", zap.String("tool", tc.Name))
			cb.OnToolCall(tc)
			return nil
		}
	}

	if tail := buf.Flush(); tail != "" && cb.OnSentence != nil {
		cb.OnSentence(tail)
	}
	if cb.OnDone != nil {
		cb.OnDone(fullText)
	}
	return nil
}

// complete is the one-shot non-streaming retry after a failed stream open.
func (g *Generator) complete(ctx context.Context, req *Request, abort *atomic.Bool, cb GeneratorCallbacks) error {
	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return core.NewGenerationError("model call failed after streaming and non-streaming attempts", err)
	}

	g.recordUsage(req.Messages, resp.Text, resp.Usage)
	if abort.Load() {
		return nil
	}

	for _, tc := range resp.ToolCalls {
		if cb.OnToolCall != nil {
			cb.OnToolCall(tc)
		}
	}
	if len(resp.ToolCalls) == 0 && resp.Text != "" {
		buf := NewSentenceBuffer(0)
		for _, sentence := range buf.Add(resp.Text) {
			if abort.Load() {
				return nil
			}
			if cb.OnSentence != nil {
				cb.OnSentence(sentence)
			}
		}
		if tail := buf.Flush(); tail != "" && !abort.Load() && cb.OnSentence != nil {
			cb.OnSentence(tail)
		}
	}
	if cb.OnDone != nil {
		cb.OnDone(resp.Text)
	}
	return nil
}

// preflight decides whether this turn needs a knowledge search and, if so,
// runs it while a filler phrase plays. Returns the message list with any
// retrieved context appended.
func (g *Generator) preflight(ctx context.Context, messages []Message, abort *atomic.Bool, cb GeneratorCallbacks) []Message {
	if g.searcher == nil || g.cache == nil || g.agent.KnowledgeBaseID == "" {
		return messages
	}
	userText := lastUserText(messages)
	if userText == "" {
		return messages
	}

	if result, ok := g.cache.Lookup(userText); ok {
		return append(messages, Message{
			Role:    RoleSystem,
			Content: "Retrieved information relevant to the user's question:\n" + result,
		})
	}

	decision := g.classify(ctx, messages)
	if !decision.Search || decision.Query == "" {
		return messages
	}

	if !g.cache.BeginSearch() {
		// A search just ran; steer the model to what it already has
		// instead of firing another one and another filler.
		return append(messages, Message{
			Role:    RoleSystem,
			Content: "Answer using the information already retrieved earlier in this conversation.",
		})
	}

	if !abort.Load() && cb.OnSentence != nil {
		cb.OnSentence(fillerPhrase(userText))
	}

	result, err := g.searcher.Search(ctx, g.agent.KnowledgeBaseID, decision.Query)
	if err != nil {
		g.logger.Warn("knowledge search failed", zap.String("query", decision.Query), zap.Error(err))
		return messages
	}
	g.cache.Put(decision.Query, result)

	return append(messages, Message{
		Role:    RoleSystem,
		Content: "Retrieved information relevant to the user's question:\n" + result,
	})
}

// classify runs the cheap pre-flight classification call. Any failure
// means no search; the main generation can still answer from context.
func (g *Generator) classify(ctx context.Context, messages []Message) preflightDecision {
	req := &Request{
		Model: g.agent.Model,
		Messages: append(append([]Message{}, messages...), Message{
			Role:    RoleSystem,
			Content: preflightPrompt,
		}),
		MaxTokens: 128,
	}

	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		g.logger.Warn("preflight classification failed", zap.Error(err))
		return preflightDecision{}
	}
	if resp.Usage != nil {
		g.meter.AddLLMTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	var decision preflightDecision
	text := strings.TrimSpace(resp.Text)
	if i := strings.Index(text, "{"); i >= 0 {
		text = text[i:]
	}
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		g.logger.Warn("preflight returned unparseable decision", zap.String("text", resp.Text))
		return preflightDecision{}
	}
	return decision
}

// recordUsage meters exact token usage when the provider reported it, or a
// character-count under-estimate when the stream dropped first.
func (g *Generator) recordUsage(messages []Message, output string, exact *TokenUsage) {
	if exact != nil {
		g.meter.AddLLMTokens(exact.InputTokens, exact.OutputTokens)
		return
	}
	var in int64
	for _, m := range messages {
		in += usage.EstimateTokens(m.Content)
	}
	g.meter.AddLLMTokens(in, usage.EstimateTokens(output))
}

// lastUserText returns the content of the most recent user message.
func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// parseInlineToolCall recognizes a response that is nothing but a JSON
// tool-call object.
func parseInlineToolCall(text string) (ToolCall, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return ToolCall{}, false
	}

	var raw struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil || raw.Name == "" {
		return ToolCall{}, false
	}

	args := "{}"
	if len(raw.Arguments) > 0 {
		args = string(raw.Arguments)
	}
	return ToolCall{Name: raw.Name, Arguments: args}, true
}
