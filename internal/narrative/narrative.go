// Package narrative asks a chat model for a short plain-language summary of
// a finished report.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"eth-rugcheck/internal/render"
	"eth-rugcheck/internal/risk"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

const systemPrompt = `You summarise rug-pull risk reports for ERC-20 tokens.
Write at most five sentences in plain English. Mention every signal marked
FAILED as unknown rather than safe. Do not invent data that is not in the report.`

var ErrEmptyCompletion = errors.New("narrative: empty completion")

// Generator produces the narrative for one report.
type Generator interface {
	Summarize(ctx context.Context, report *risk.RiskReport) (string, error)
}

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI is a Generator backed by a chat completion endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, maxTokens: maxTokens}
}

func (g *OpenAI) Summarize(ctx context.Context, report *risk.RiskReport) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(report)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	log.Printf("Narrative generated with %s (%d tokens)", g.model, resp.Usage.TotalTokens)
	return text, nil
}

// Prompt is the user message for report: its text rendering without any
// earlier narrative.
func Prompt(report *risk.RiskReport) string {
	r := *report
	r.Narrative = nil
	return "Summarise this report:\n\n" + render.Text(&r)
}
