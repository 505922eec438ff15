// Package orchestrator drives one pipeline run per ingested message:
// extract facets, assemble context, select a plan, and publish each stage
// on the bus as it completes. Extraction failures degrade to an empty facet
// set; a context or planning failure aborts the turn.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contextbuilder"
	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/extractor"
	"github.com/sakhilabs/sakhid/planner"
)

// Orchestrator subscribes to message.ingested and runs the turn pipeline.
type Orchestrator struct {
	bus          *bus.Bus
	extractor    extractor.FacetExtractor
	builder      *contextbuilder.Builder
	planner      planner.Planner
	tokensBudget int
	logger       zerolog.Logger
	unsubscribe  func()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTokensBudget caps the context pack token estimate per turn.
func WithTokensBudget(n int) Option {
	return func(o *Orchestrator) { o.tokensBudget = n }
}

// New wires the orchestrator over its collaborators.
func New(b *bus.Bus, ext extractor.FacetExtractor, builder *contextbuilder.Builder, plan planner.Planner, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bus:       b,
		extractor: ext,
		builder:   builder,
		planner:   plan,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start subscribes to message.ingested. Calling Start twice is a no-op.
func (o *Orchestrator) Start() {
	if o.unsubscribe != nil {
		return
	}
	o.unsubscribe = o.bus.Subscribe(contracts.EventMessageIngested, o.onMessageIngested)
}

// Stop detaches the orchestrator from the bus.
func (o *Orchestrator) Stop() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

func (o *Orchestrator) onMessageIngested(ctx context.Context, payload any) error {
	event, ok := payload.(contracts.MessageIngested)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, contracts.EventMessageIngested)
	}
	message := event.Message
	started := time.Now()

	facets := o.extractFacets(ctx, message)
	o.bus.Publish(ctx, contracts.EventFacetExtracted, contracts.FacetExtracted{
		MessageID: message.ID,
		Facets:    facets,
	})

	pack, err := o.builder.Build(ctx, contextbuilder.Input{
		Message:      message,
		UserID:       message.UserID,
		TurnID:       message.ID,
		Now:          message.Timestamp,
		TokensBudget: o.tokensBudget,
	})
	if err != nil {
		return fmt.Errorf("build context for %s: %w", message.ID, err)
	}
	o.bus.Publish(ctx, contracts.EventContextReady, contracts.ContextReady{
		MessageID: message.ID,
		Context:   pack,
	})

	plan, hints, err := o.planner.Plan(planner.Input{
		Facets:  facets,
		Context: pack,
		Now:     message.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("plan for %s: %w", message.ID, err)
	}
	o.bus.Publish(ctx, contracts.EventPlanReady, contracts.PlanReady{
		MessageID: message.ID,
		Context:   pack,
		Plan:      plan,
		Hints:     hints,
	})

	o.logger.Info().
		Str("messageID", message.ID).
		Str("userID", message.UserID).
		Str("objective", string(plan.ObjectiveNow)).
		Int("facets", len(facets)).
		Dur("elapsed", time.Since(started)).
		Msg("turn pipeline complete")
	return nil
}

// extractFacets treats extractor failures as "no facets this turn" so the
// user still gets a reflective reply.
func (o *Orchestrator) extractFacets(ctx context.Context, message contracts.Message) []contracts.Facet {
	out, err := o.extractor.Extract(ctx, message)
	if err != nil {
		o.logger.Warn().Err(err).Str("messageID", message.ID).Msg("facet extraction failed, continuing without facets")
		return nil
	}
	return out.Facets
}
