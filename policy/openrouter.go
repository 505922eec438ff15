package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sakhilabs/sakhid/contracts"
)

// DefaultOpenRouterModel is used when none is configured.
const DefaultOpenRouterModel = "deepseek/deepseek-chat"

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures the LLM renderer and its safety gate.
type OpenRouterConfig struct {
	APIKey string
	Model  string
	// ModerationAPIKey enables the OpenAI moderation gate on rendered text.
	ModerationAPIKey string
	// ToxicityThreshold rejects a completion whose harassment score exceeds
	// it. Zero means the default of 0.5.
	ToxicityThreshold float64
	// ModerationFailOpen lets a completion through when the moderation call
	// itself fails. Off by default: an unverifiable reply is discarded and
	// the deterministic composer takes over.
	ModerationFailOpen bool
}

// OpenRouterRenderer composes replies through an OpenRouter-hosted chat
// model. Every completion passes the moderation gate before it is returned.
type OpenRouterRenderer struct {
	client            *openai.Client
	moderation        *openai.Client
	model             string
	toxicityThreshold float64
	failOpen          bool
	logger            zerolog.Logger
}

// NewOpenRouterRenderer builds a renderer; the moderation client is only
// created when a moderation key is configured.
func NewOpenRouterRenderer(cfg OpenRouterConfig, logger zerolog.Logger) (*OpenRouterRenderer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenRouterModel
	}
	threshold := cfg.ToxicityThreshold
	if threshold == 0 {
		threshold = 0.5
	}

	chatConfig := openai.DefaultConfig(cfg.APIKey)
	chatConfig.BaseURL = openRouterBaseURL

	r := &OpenRouterRenderer{
		client:            openai.NewClientWithConfig(chatConfig),
		model:             model,
		toxicityThreshold: threshold,
		failOpen:          cfg.ModerationFailOpen,
		logger:            logger.With().Str("component", "openrouterRenderer").Logger(),
	}
	if cfg.ModerationAPIKey != "" {
		r.moderation = openai.NewClient(cfg.ModerationAPIKey)
	}
	return r, nil
}

// Render asks the model for a reply in the selected tone, retrying
// transient failures with exponential backoff.
func (r *OpenRouterRenderer) Render(ctx context.Context, plan contracts.PlanGraph, pack contracts.ContextPack, tone string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(tone)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(plan, pack)},
		},
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 30 * time.Second

	var text string
	operation := func() error {
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("openrouter completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openrouter: no completion returned"))
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return backoff.Permanent(fmt.Errorf("openrouter: empty completion"))
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(eb, 3), ctx)); err != nil {
		return "", err
	}

	if err := r.moderate(ctx, text); err != nil {
		return "", err
	}
	return text, nil
}

// moderate rejects a completion the moderation endpoint flags. A failed
// moderation call only passes when fail-open is configured.
func (r *OpenRouterRenderer) moderate(ctx context.Context, text string) error {
	if r.moderation == nil {
		return nil
	}
	resp, err := r.moderation.Moderations(ctx, openai.ModerationRequest{Input: text})
	if err != nil {
		if r.failOpen {
			r.logger.Warn().Err(err).Msg("moderation unavailable, passing reply through")
			return nil
		}
		return fmt.Errorf("moderation check: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil
	}
	if score := resp.Results[0].CategoryScores.Harassment; float64(score) > r.toxicityThreshold {
		return fmt.Errorf("reply flagged by safety filter (harassment %.2f)", score)
	}
	return nil
}

func systemPrompt(tone string) string {
	return fmt.Sprintf("You are Sakhi, a gentle AI companion. Reply in a %s manner, under 120 words, weaving in a micro-reflection. Never produce harmful or unsafe content.", tone)
}

func userPrompt(plan contracts.PlanGraph, pack contracts.ContextPack) string {
	var steps []string
	for _, step := range plan.Steps {
		switch step.Type {
		case contracts.StepReflection:
			if step.Reflection != nil {
				steps = append(steps, "Reflection: "+step.Reflection.TextTemplate)
			}
		case contracts.StepQuestion:
			if step.Question != nil {
				steps = append(steps, "Ask: "+step.Question.Template)
			}
		case contracts.StepActionCreate:
			if step.Task != nil {
				steps = append(steps, "Task: "+step.Task.Title)
			}
		case contracts.StepBlockPropose:
			if step.Block != nil {
				steps = append(steps, "Block: "+step.Block.Title)
			}
		case contracts.StepNudge:
			if step.Nudge != nil {
				steps = append(steps, "Nudge: "+step.Nudge.Title)
			}
		}
	}
	mood := "unknown"
	if m, ok := pack.SemanticProfile.Traits["mood"].(string); ok && m != "" {
		mood = m
	}
	return fmt.Sprintf("User mood: %s\nObjectives:\n%s\nCompose the reply now.", mood, strings.Join(steps, "\n"))
}
