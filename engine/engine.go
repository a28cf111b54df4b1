// Package engine is the conversational surface over the memory system.
// It records both sides of every exchange, assembles a bounded context
// from the three stores, and renders it into the prompt sent to Claude.
// Memory failures never abort a turn: at worst the reply proceeds with
// reduced context.
package engine

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
	"github.com/lethanhdat/membank/memory"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// DefaultSystemPrompt mirrors the assistant persona: a friendly Vietnamese
// assistant that remembers the user across conversations.
const DefaultSystemPrompt = `Bạn là một AI assistant thông minh và thân thiện.
Bạn có khả năng nhớ thông tin về người dùng qua nhiều cuộc trò chuyện.

Hãy sử dụng thông tin từ bộ nhớ để cung cấp câu trả lời cá nhân hóa và phù hợp.
Nếu bạn học được thông tin mới về người dùng, hãy ghi nhớ nó.

Luôn trả lời một cách tự nhiên, thân thiện và hữu ích.`

// Engine runs the chat loop for one (user, session) pair.
type Engine struct {
	client    *anthropic.Client
	memory    *memory.Manager
	extractor *Extractor

	model          string
	maxTokens      int64
	systemPrompt   string
	recentLimit    int
	retrievalLimit int
}

// Option configures the engine.
type Option func(*Engine)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// WithSystemPrompt overrides the assistant persona.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithContextLimits bounds how many recent turns and retrieved memories
// go into each prompt.
func WithContextLimits(recent, retrieval int) Option {
	return func(e *Engine) {
		e.recentLimit = recent
		e.retrievalLimit = retrieval
	}
}

// WithExtractor replaces the fact extractor.
func WithExtractor(x *Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// New creates an engine over a Claude client and a memory manager.
func New(client *anthropic.Client, mgr *memory.Manager, opts ...Option) *Engine {
	e := &Engine{
		client:         client,
		memory:         mgr,
		extractor:      DefaultExtractor(),
		model:          defaultModel,
		maxTokens:      defaultMaxTokens,
		systemPrompt:   DefaultSystemPrompt,
		recentLimit:    memory.DefaultRecentTurns,
		retrievalLimit: memory.DefaultRetrievedMemories,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Memory exposes the manager for administrative surfaces.
func (e *Engine) Memory() *memory.Manager {
	return e.memory
}

// Chat processes one user message and returns the assistant reply.
func (e *Engine) Chat(ctx context.Context, userInput string) (string, error) {
	logger := logging.From(ctx)

	if err := e.memory.RecordUserTurn(ctx, userInput); err != nil {
		logger.Warn("failed to record user turn", "error", err)
	}

	bundle := e.memory.AssembleContext(ctx, userInput, e.recentLimit, e.retrievalLimit)
	prompt := BuildPrompt(e.systemPrompt, bundle, userInput)

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "claude api call failed")
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	answer := reply.String()

	if err := e.memory.RecordAITurn(ctx, answer); err != nil {
		logger.Warn("failed to record assistant turn", "error", err)
	}
	if err := e.memory.RecordExchange(ctx, userInput, answer); err != nil {
		logger.Warn("failed to record exchange", "error", err)
	}

	for _, entityKey := range e.extractor.Extract(userInput) {
		if err := e.memory.RecordFact(ctx, entityKey, userInput); err != nil {
			logger.Warn("failed to record extracted fact",
				"entity", entityKey, "error", err)
		}
	}

	return answer, nil
}
