package ai

import (
	"context"
	"errors"
	"time"
)

// Runtime is the minimal interface implemented by model backends such as
// OpenRouter, OpenAI-compatible servers, Ollama and Gemini.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// ErrEmptyCompletion is returned when a response carries no choices.
var ErrEmptyCompletion = errors.New("model returned no completion")

// FirstText returns the first completion's content verbatim.
func FirstText(resp *GenerateResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete sends a system + user exchange and returns the first completion text.
func Complete(ctx context.Context, rt Runtime, model, system, user string, temperature float64, maxTokens int) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	resp, err := rt.Generate(ctx, GenerateRequest{Model: model, Messages: msgs, Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	return FirstText(resp)
}

// WithTimeout bounds every Generate call on rt by d. A non-positive d returns rt unchanged.
func WithTimeout(rt Runtime, d time.Duration) Runtime {
	if d <= 0 || rt == nil {
		return rt
	}
	return timeoutRuntime{rt: rt, d: d}
}

type timeoutRuntime struct {
	rt Runtime
	d  time.Duration
}

func (t timeoutRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.rt.Generate(ctx, req)
}
