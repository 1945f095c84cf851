package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
)

const narrativeSystemPrompt = "You are a real-estate tokenization analyst. " +
	"Given building model statistics, write a short plain-text assessment " +
	"of the property for investors. Be factual and avoid speculation."

// Narrative wraps the OpenAI chat endpoint used for BIM/property
// narrative analysis. It is not part of the numeric aggregation core;
// its text rides along inside the bim_analysis record.
type Narrative struct {
	client *openai.Client
	model  string
}

// NewNarrative creates an AI narrative client. It returns nil when no
// API key is configured; the aggregator treats a nil client as a
// permanently failing source and falls back to heuristic text.
func NewNarrative(cfg config.Config) *Narrative {
	if cfg.OpenAIKey == "" {
		logrus.Warn("OPENAI_API_KEY not set; narrative analysis disabled")
		return nil
	}
	return &Narrative{
		client: openai.NewClient(cfg.OpenAIKey),
		model:  cfg.OpenAIModel,
	}
}

// Analyze produces narrative text for the given building summary.
func (c *Narrative) Analyze(ctx context.Context, summary map[string]any) model.Result {
	prompt := buildPrompt(summary)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narrativeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 400,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.Fail(model.FailureMalformed, "ai narrative: empty completion")
	}

	return model.Success(map[string]any{
		"analysis_text": strings.TrimSpace(resp.Choices[0].Message.Content),
	})
}

// buildPrompt renders the building summary as a compact prompt.
func buildPrompt(summary map[string]any) string {
	var b strings.Builder
	b.WriteString("Building model statistics:\n")
	for _, key := range []string{"model_name", "element_count", "floor_count", "total_area_sqm", "schema_version"} {
		if v, ok := summary[key]; ok {
			fmt.Fprintf(&b, "- %s: %v\n", key, v)
		}
	}
	return b.String()
}

// classifyOpenAIError maps API errors onto the failure taxonomy.
func classifyOpenAIError(err error) model.Result {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return model.Fail(model.FailureRateLimited, "ai narrative: %v", err)
		case apiErr.HTTPStatusCode >= 500:
			return model.Fail(model.FailureUnreachable, "ai narrative: %v", err)
		default:
			return model.Fail(model.FailureMalformed, "ai narrative: %v", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Fail(model.FailureTimeout, "ai narrative timed out")
	}
	return model.Fail(model.FailureUnreachable, "ai narrative: %v", err)
}
