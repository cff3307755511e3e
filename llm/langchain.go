package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LangChainModel adapts a langchaingo llms.Model to the Invoker interface, so
// any provider supported by langchaingo (OpenAI, Anthropic, Ollama, ...) can
// drive the orchestration engine.
type LangChainModel struct {
	model   llms.Model
	options []llms.CallOption
}

var _ Invoker = (*LangChainModel)(nil)

// NewLangChainModel wraps an existing llms.Model. Call options such as
// llms.WithTemperature are applied to every request.
func NewLangChainModel(model llms.Model, options ...llms.CallOption) *LangChainModel {
	return &LangChainModel{
		model:   model,
		options: options,
	}
}

// Invoke sends a single-prompt completion request.
func (m *LangChainModel) Invoke(ctx context.Context, prompt string) (string, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, m.model, prompt, m.options...)
	if err != nil {
		return "", err
	}
	if completion == "" {
		return "", ErrEmptyResponse
	}
	return completion, nil
}

// Stream sends a single-prompt completion request with a streaming callback.
func (m *LangChainModel) Stream(ctx context.Context, prompt string, fn func(chunk string) error) (string, error) {
	var sb strings.Builder
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	options := append([]llms.CallOption{}, m.options...)
	options = append(options, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		sb.Write(chunk)
		return fn(string(chunk))
	}))

	resp, err := m.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if sb.Len() > 0 {
		return sb.String(), nil
	}
	// Some providers ignore the streaming callback and return the whole
	// completion in one piece.
	if len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		content := resp.Choices[0].Content
		if err := fn(content); err != nil {
			return "", err
		}
		return content, nil
	}
	return "", ErrEmptyResponse
}
