// Package learning folds each turn's outcome back into memory: a short-term
// record and an episodic trace of the plan, plus confidence-weighted trait
// updates from any learning hints. A consolidation cycle decays traits that
// go stale and removes the ones that decay out.
package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/memory"
)

// Trait update constants. A hint agreeing with a stored trait nudges its
// confidence up; a disagreeing hint pushes it down, and once belief drops
// far enough the stored value flips to the new observation.
const (
	initialConfidence = 0.45
	agreeDelta        = 0.1
	disagreeDelta     = 0.2
	disagreeFloor     = 0.2
	flipThreshold     = 0.35
	flippedConfidence = 0.4
	decayStep         = 0.05
	removalConfidence = 0.1
	DefaultDecayAfter = 14 * 24 * time.Hour
	DefaultInterval   = 24 * time.Hour
)

// Engine subscribes to plan.ready and owns all writes to the semantic tier.
type Engine struct {
	bus        *bus.Bus
	memory     memory.Service
	decayAfter time.Duration
	interval   time.Duration
	logger     zerolog.Logger

	mu           sync.Mutex
	trackedUsers map[string]struct{}
	unsubscribe  func()
	cron         *cron.Cron
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecayAfter overrides how long a trait may sit untouched before the
// consolidation cycle starts decaying it.
func WithDecayAfter(d time.Duration) Option {
	return func(e *Engine) { e.decayAfter = d }
}

// WithConsolidationInterval overrides the consolidation cadence. Zero or
// negative disables the cycle.
func WithConsolidationInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// NewEngine creates a learning engine bound to the bus and memory service.
func NewEngine(b *bus.Bus, mem memory.Service, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		bus:          b,
		memory:       mem,
		decayAfter:   DefaultDecayAfter,
		interval:     DefaultInterval,
		logger:       logger.With().Str("component", "learningEngine").Logger(),
		trackedUsers: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to plan.ready and schedules the consolidation cycle.
// Calling Start twice is a no-op.
func (e *Engine) Start() error {
	if e.unsubscribe != nil {
		return nil
	}
	e.unsubscribe = e.bus.Subscribe(contracts.EventPlanReady, e.onPlanReady)

	if e.interval > 0 {
		e.cron = cron.New()
		spec := fmt.Sprintf("@every %s", e.interval)
		if _, err := e.cron.AddFunc(spec, e.runConsolidation); err != nil {
			return fmt.Errorf("schedule consolidation: %w", err)
		}
		e.cron.Start()
	}
	return nil
}

// Stop detaches from the bus and halts the consolidation cycle.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.cron != nil {
		e.cron.Stop()
		e.cron = nil
	}
}

func (e *Engine) onPlanReady(ctx context.Context, payload any) error {
	event, ok := payload.(contracts.PlanReady)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, contracts.EventPlanReady)
	}
	userID := event.Context.UserID
	now := time.Now().UTC()
	nowISO := now.Format(time.RFC3339)

	reflectionText := string(event.Plan.ObjectiveNow)
	for _, step := range event.Plan.Steps {
		if step.Type == contracts.StepReflection && step.Reflection != nil {
			reflectionText = step.Reflection.TextTemplate
			break
		}
	}

	shortTerm := contracts.ShortTermInteraction{
		SchemaVersion: contracts.SchemaVersion,
		ID:            uuid.NewString(),
		Timestamp:     nowISO,
		Message: contracts.Message{
			SchemaVersion: contracts.SchemaVersion,
			ID:            event.MessageID,
			UserID:        userID,
			Timestamp:     now,
			Content: contracts.MessageContent{
				Text:     reflectionText,
				Modality: contracts.ModalitySystem,
				Locale:   "en-US",
			},
			Source:   contracts.MessageSource{Channel: contracts.ChannelSystem},
			Metadata: contracts.MessageMetadata{Timezone: "UTC"},
		},
		Facets: []contracts.Facet{},
	}
	if err := e.memory.AppendShortTerm(ctx, userID, shortTerm); err != nil {
		return fmt.Errorf("append short-term: %w", err)
	}

	episodic := contracts.EpisodicRecord{
		SchemaVersion: contracts.SchemaVersion,
		ID:            memory.NewRecordID(),
		When:          nowISO,
		Text:          fmt.Sprintf("Plan executed: %s", event.Plan.ObjectiveNow),
		Facets:        []contracts.Facet{},
		Outcome:       "planned",
		Provenance:    []contracts.Provenance{{SourceID: event.MessageID}},
	}
	if err := e.memory.AppendEpisodic(ctx, userID, episodic); err != nil {
		return fmt.Errorf("append episodic: %w", err)
	}

	var traits []contracts.SemanticTrait
	for _, hint := range event.Hints {
		trait, err := e.upsertTraitFromHint(ctx, userID, hint, event.MessageID, now)
		if err != nil {
			return err
		}
		traits = append(traits, trait)
	}

	e.mu.Lock()
	e.trackedUsers[userID] = struct{}{}
	e.mu.Unlock()

	e.bus.Publish(ctx, contracts.EventMemoryUpdated, contracts.MemoryUpdated{
		MessageID: event.MessageID,
		ShortTerm: []string{shortTerm.ID},
		Episodic:  []string{episodic.ID},
		Traits:    traits,
	})
	return nil
}

// upsertTraitFromHint applies the agree/disagree/flip rules to one hint and
// persists the resulting trait.
func (e *Engine) upsertTraitFromHint(ctx context.Context, userID string, hint contracts.LearningHint, sourceID string, now time.Time) (contracts.SemanticTrait, error) {
	existing, err := e.memory.GetSemanticTrait(ctx, userID, hint.Key)
	if err != nil {
		return contracts.SemanticTrait{}, fmt.Errorf("get trait %q: %w", hint.Key, err)
	}
	nowISO := now.Format(time.RFC3339)

	trait := contracts.SemanticTrait{
		SchemaVersion: contracts.SchemaVersion,
		Key:           hint.Key,
		Value:         hint.Value,
		Confidence:    initialConfidence,
		FirstSeen:     nowISO,
		LastUpdated:   nowISO,
	}
	if existing != nil {
		trait.FirstSeen = existing.FirstSeen
		trait.Evidence = existing.Evidence
		if existing.Value == hint.Value {
			trait.Confidence = min(1, existing.Confidence+agreeDelta)
		} else {
			confidence := max(disagreeFloor, existing.Confidence-disagreeDelta)
			if confidence < flipThreshold {
				// Belief flipped: adopt the new value and restart its history.
				trait.Confidence = flippedConfidence
				trait.FirstSeen = nowISO
			} else {
				trait.Value = existing.Value
				trait.Confidence = confidence
			}
		}
	}

	trait.Evidence = append(trait.Evidence, contracts.Evidence{SourceID: sourceID, NotedAt: nowISO})
	if len(trait.Evidence) > contracts.MaxEvidence {
		trait.Evidence = trait.Evidence[len(trait.Evidence)-contracts.MaxEvidence:]
	}

	if err := e.memory.UpsertSemanticTrait(ctx, userID, trait); err != nil {
		return contracts.SemanticTrait{}, fmt.Errorf("upsert trait %q: %w", hint.Key, err)
	}
	return trait, nil
}

func (e *Engine) runConsolidation() {
	e.mu.Lock()
	users := make([]string, 0, len(e.trackedUsers))
	for userID := range e.trackedUsers {
		users = append(users, userID)
	}
	e.mu.Unlock()

	ctx := context.Background()
	for _, userID := range users {
		if err := e.DecayTraits(ctx, userID, time.Now().UTC()); err != nil {
			e.logger.Error().Err(err).Str("userID", userID).Msg("trait decay failed")
		}
	}
}

// DecayTraits lowers the confidence of traits untouched for longer than the
// decay window and removes those that fall to the removal floor.
func (e *Engine) DecayTraits(ctx context.Context, userID string, now time.Time) error {
	traits, err := e.memory.ListSemanticTraits(ctx, userID)
	if err != nil {
		return fmt.Errorf("list traits: %w", err)
	}
	for _, trait := range traits {
		lastUpdated, err := time.Parse(time.RFC3339, trait.LastUpdated)
		if err != nil || now.Sub(lastUpdated) < e.decayAfter {
			continue
		}
		confidence := max(0, trait.Confidence-decayStep)
		if confidence <= removalConfidence {
			if err := e.memory.RemoveSemanticTrait(ctx, userID, trait.Key); err != nil {
				return fmt.Errorf("remove trait %q: %w", trait.Key, err)
			}
			e.logger.Info().Str("userID", userID).Str("key", trait.Key).Msg("trait decayed out")
			continue
		}
		trait.Confidence = confidence
		trait.LastUpdated = now.Format(time.RFC3339)
		if err := e.memory.UpsertSemanticTrait(ctx, userID, trait); err != nil {
			return fmt.Errorf("decay trait %q: %w", trait.Key, err)
		}
	}
	return nil
}
