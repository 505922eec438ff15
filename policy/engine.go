// Package policy turns a plan graph into the final reply: it selects a tone
// from a fixed decision table, composes deterministic text from the plan
// steps, and optionally hands composition to an LLM renderer when the user
// has opted in. Renderer failures always fall back to the deterministic
// composition.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
)

// Renderer composes reply text from a plan. Implementations may call out to
// a model; errors make the engine fall back to the deterministic composer.
type Renderer interface {
	Render(ctx context.Context, plan contracts.PlanGraph, pack contracts.ContextPack, tone string) (string, error)
}

// Engine subscribes to plan.ready and publishes reply.rendered.
type Engine struct {
	bus         *bus.Bus
	renderer    Renderer
	logger      zerolog.Logger
	unsubscribe func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer installs an LLM renderer used when the user opted in via the
// "tone.renderer" preference.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// NewEngine creates a policy engine bound to the bus.
func NewEngine(b *bus.Bus, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		bus:    b,
		logger: logger.With().Str("component", "policyEngine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to plan.ready. Calling Start twice is a no-op.
func (e *Engine) Start() {
	if e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.bus.Subscribe(contracts.EventPlanReady, e.onPlanReady)
}

// Stop detaches the engine from the bus.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

func (e *Engine) onPlanReady(ctx context.Context, payload any) error {
	event, ok := payload.(contracts.PlanReady)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, contracts.EventPlanReady)
	}

	tone := SelectTone(event.Context, event.Plan)
	text := e.render(ctx, event.Plan, event.Context, tone)

	e.bus.Publish(ctx, contracts.EventReplyRendered, contracts.ReplyRendered{
		MessageID: event.MessageID,
		Response: contracts.Reply{
			Text: text,
			Tone: tone.Style,
			Metadata: map[string]string{
				"pacing": tone.Pacing,
				"voice":  tone.Voice,
			},
		},
	})
	return nil
}

func (e *Engine) render(ctx context.Context, plan contracts.PlanGraph, pack contracts.ContextPack, tone ToneProfile) string {
	fallback := Compose(plan, tone)
	if e.renderer == nil || !wantsLLMRenderer(pack) {
		return fallback
	}
	text, err := e.renderer.Render(ctx, plan, pack, tone.Style)
	if err != nil {
		e.logger.Warn().Err(err).Msg("renderer failed, using deterministic reply")
		return fallback
	}
	return text
}

func wantsLLMRenderer(pack contracts.ContextPack) bool {
	if pack.SemanticProfile.Preferences == nil {
		return false
	}
	pref, _ := pack.SemanticProfile.Preferences["tone.renderer"].(string)
	return pref == "llm"
}

// Compose builds the deterministic reply: opener by tone, one clause per
// step, the first question verbatim, then a closer.
func Compose(plan contracts.PlanGraph, tone ToneProfile) string {
	segments := []string{opener(tone)}
	if body := describeSteps(plan); body != "" {
		segments = append(segments, body)
	}
	for _, step := range plan.Steps {
		if step.Type == contracts.StepQuestion && step.Question != nil {
			segments = append(segments, step.Question.Template)
			break
		}
	}
	segments = append(segments, closer(tone))
	return strings.TrimSpace(strings.Join(segments, " "))
}

func opener(tone ToneProfile) string {
	switch tone.Style {
	case "warm":
		return "I'm taking a soft breath with you."
	case "encouraging":
		return "Love that momentum."
	case "lowkey":
		return "Keeping it gentle so you can wind down."
	default:
		return "Here's the snapshot."
	}
}

func closer(tone ToneProfile) string {
	if tone.Style == "encouraging" {
		return "Let me know what lands and we'll take the next tiny step."
	}
	return "I've got room to adjust it if needed."
}

func describeSteps(plan contracts.PlanGraph) string {
	var parts []string
	for _, step := range plan.Steps {
		switch step.Type {
		case contracts.StepReflection:
			if step.Reflection != nil {
				parts = append(parts, step.Reflection.TextTemplate)
			}
		case contracts.StepActionCreate:
			if step.Task != nil {
				parts = append(parts, fmt.Sprintf("I logged %q so it doesn't float around.", step.Task.Title))
			}
		case contracts.StepBlockPropose:
			if step.Block != nil {
				title := step.Block.Title
				if title == "" {
					title = "focus"
				}
				parts = append(parts, fmt.Sprintf("Suggested a block for %s.", title))
			}
		case contracts.StepNudge:
			if step.Nudge != nil {
				parts = append(parts, fmt.Sprintf("Will ping you about %s.", strings.ToLower(step.Nudge.Title)))
			}
		}
	}
	return strings.Join(parts, " ")
}
