package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"campus-assistant/internal/domain"
)

// ParamGetter reads a named configuration parameter.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// LLMClient is the chat model behind the generative FAQ fallback.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// ErrFlagged is returned when moderation rejects the topic.
var ErrFlagged = errors.New("worker: topic flagged by moderation")

// Generator answers FAQ topics the canned list does not cover. The system
// prompt and model name are read from the parameter store on first use and
// cached; a failed read is retried on the next call.
type Generator struct {
	params      ParamGetter
	llm         LLMClient
	paramPrefix string

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	systemPrompt string
	model        string
}

func NewGenerator(p ParamGetter, llm LLMClient, paramPrefix string) (*Generator, error) {
	if p == nil {
		return nil, errors.New("worker: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("worker: llm client must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("worker: parameter prefix must not be empty")
	}
	return &Generator{params: p, llm: llm, paramPrefix: paramPrefix}, nil
}

// Answer returns a short campus answer for topic, or an *Error. An
// off-topic verdict from the model yields an empty answer.
func (g *Generator) Answer(ctx context.Context, topic string, examples []domain.FAQ) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", newError(ErrorMissingParams, msgWhichTopic, nil)
	}
	if err := g.ensureConfig(ctx); err != nil {
		return "", newError(ErrorUnavailable, UnavailableMessage, err)
	}

	flagged, err := g.llm.Moderate(ctx, topic)
	if err != nil {
		return "", newError(ErrorGeneration, FAQMissMessage, err)
	}
	if flagged {
		return "", newError(ErrorGeneration, FAQMissMessage, ErrFlagged)
	}

	raw, err := g.llm.Chat(ctx, g.model, buildFAQPromptMessages(g.systemPrompt, topic, examples))
	if err != nil {
		return "", newError(ErrorGeneration, FAQMissMessage, err)
	}
	decision, err := parseCampusAnswer(raw)
	if err != nil {
		return "", newError(ErrorGeneration, FAQMissMessage, err)
	}
	if !decision.InScope {
		return "", nil
	}
	return decision.Answer, nil
}

func (g *Generator) ensureConfig(ctx context.Context) error {
	g.cacheMu.RLock()
	if g.cacheLoaded {
		g.cacheMu.RUnlock()
		return nil
	}
	g.cacheMu.RUnlock()

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	if g.cacheLoaded {
		return nil
	}

	systemPrompt, err := g.params.GetParameter(ctx, g.paramPrefix+"/faq_system_prompt")
	if err != nil {
		return fmt.Errorf("worker: load faq system prompt: %w", err)
	}
	model, err := g.params.GetParameter(ctx, g.paramPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("worker: load openai model: %w", err)
	}

	g.systemPrompt = systemPrompt
	g.model = strings.TrimSpace(model)
	g.cacheLoaded = true
	return nil
}
