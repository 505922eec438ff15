package learning

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/memory"
)

func newTestEngine(t *testing.T) (*Engine, *bus.Bus, *memory.InProcessService) {
	t.Helper()
	b := bus.New(zerolog.Nop())
	mem := memory.NewInProcessService(zerolog.Nop())
	engine := NewEngine(b, mem, zerolog.Nop(), WithConsolidationInterval(0))
	if err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(engine.Stop)
	return engine, b, mem
}

func planReady(userID, messageID string, hints ...contracts.LearningHint) contracts.PlanReady {
	return contracts.PlanReady{
		MessageID: messageID,
		Context: contracts.ContextPack{
			SchemaVersion: contracts.SchemaVersion,
			UserID:        userID,
			TurnID:        "turn-1",
			Now:           contracts.NowInfo{Clock: "2024-07-10T14:30:00Z", Weekday: "Wednesday"},
		},
		Plan: contracts.PlanGraph{
			SchemaVersion: contracts.SchemaVersion,
			ObjectiveNow:  contracts.ObjectivePlan,
			Steps: []contracts.PlanStep{
				{Type: contracts.StepReflection, Reflection: &contracts.ReflectionStep{TextTemplate: "Captured what you need."}},
			},
		},
		Hints: hints,
	}
}

func TestPlanReadyWritesShortTermAndEpisodic(t *testing.T) {
	_, b, mem := newTestEngine(t)
	ctx := context.Background()

	var updated *contracts.MemoryUpdated
	b.Subscribe(contracts.EventMemoryUpdated, func(ctx context.Context, payload any) error {
		event := payload.(contracts.MemoryUpdated)
		updated = &event
		return nil
	})

	b.Publish(ctx, contracts.EventPlanReady, planReady("user-1", "msg-1"))

	shortTerm, err := mem.GetShortTerm(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetShortTerm: %v", err)
	}
	if len(shortTerm) != 1 {
		t.Fatalf("expected 1 short-term record, got %d", len(shortTerm))
	}
	if shortTerm[0].Message.Content.Text != "Captured what you need." {
		t.Errorf("short-term text = %q", shortTerm[0].Message.Content.Text)
	}

	episodic, err := mem.SearchEpisodic(ctx, "user-1", "Plan executed", 10)
	if err != nil {
		t.Fatalf("SearchEpisodic: %v", err)
	}
	if len(episodic) != 1 {
		t.Fatalf("expected 1 episodic record, got %d", len(episodic))
	}
	if episodic[0].Text != "Plan executed: plan" || episodic[0].Outcome != "planned" {
		t.Errorf("episodic record = %+v", episodic[0])
	}

	if updated == nil {
		t.Fatal("no memory.updated published")
	}
	if len(updated.ShortTerm) != 1 || len(updated.Episodic) != 1 {
		t.Errorf("memory.updated ids = %+v", updated)
	}
}

func TestHintCreatesTraitAtInitialConfidence(t *testing.T) {
	_, b, mem := newTestEngine(t)
	ctx := context.Background()

	b.Publish(ctx, contracts.EventPlanReady,
		planReady("user-1", "msg-1", contracts.LearningHint{Key: "focus_time", Value: "morning"}))

	trait, err := mem.GetSemanticTrait(ctx, "user-1", "focus_time")
	if err != nil {
		t.Fatalf("GetSemanticTrait: %v", err)
	}
	if trait == nil {
		t.Fatal("trait not created")
	}
	if trait.Value != "morning" || trait.Confidence != 0.45 {
		t.Fatalf("trait = %+v, want morning at 0.45", trait)
	}
	if len(trait.Evidence) != 1 || trait.Evidence[0].SourceID != "msg-1" {
		t.Fatalf("evidence = %+v", trait.Evidence)
	}
}

func TestHintAgreementAndDisagreementAndFlip(t *testing.T) {
	_, b, mem := newTestEngine(t)
	ctx := context.Background()

	seed := contracts.SemanticTrait{
		SchemaVersion: contracts.SchemaVersion,
		Key:           "focus_time",
		Value:         "morning",
		Confidence:    0.5,
		FirstSeen:     "2024-01-01T00:00:00Z",
		LastUpdated:   "2024-01-01T00:00:00Z",
	}
	if err := mem.UpsertSemanticTrait(ctx, "user-1", seed); err != nil {
		t.Fatalf("seed trait: %v", err)
	}

	// Agreement: 0.5 + 0.1 = 0.6
	b.Publish(ctx, contracts.EventPlanReady,
		planReady("user-1", "msg-1", contracts.LearningHint{Key: "focus_time", Value: "morning"}))
	trait, _ := mem.GetSemanticTrait(ctx, "user-1", "focus_time")
	if trait.Confidence != 0.6 || trait.Value != "morning" {
		t.Fatalf("after agreement: %+v, want morning at 0.6", trait)
	}
	if trait.FirstSeen != "2024-01-01T00:00:00Z" {
		t.Errorf("agreement must preserve first_seen, got %q", trait.FirstSeen)
	}

	// Disagreement: 0.6 - 0.2 = 0.4 >= 0.35, value holds.
	b.Publish(ctx, contracts.EventPlanReady,
		planReady("user-1", "msg-2", contracts.LearningHint{Key: "focus_time", Value: "evening"}))
	trait, _ = mem.GetSemanticTrait(ctx, "user-1", "focus_time")
	if trait.Value != "morning" {
		t.Fatalf("value flipped too early: %+v", trait)
	}
	if trait.Confidence < 0.399 || trait.Confidence > 0.401 {
		t.Fatalf("after disagreement: confidence = %v, want 0.4", trait.Confidence)
	}

	// Second disagreement: 0.4 - 0.2 = 0.2 < 0.35 → flip to evening at 0.4.
	b.Publish(ctx, contracts.EventPlanReady,
		planReady("user-1", "msg-3", contracts.LearningHint{Key: "focus_time", Value: "evening"}))
	trait, _ = mem.GetSemanticTrait(ctx, "user-1", "focus_time")
	if trait.Value != "evening" || trait.Confidence != 0.4 {
		t.Fatalf("after flip: %+v, want evening at 0.4", trait)
	}
	if trait.FirstSeen == "2024-01-01T00:00:00Z" {
		t.Error("flip must reset first_seen")
	}
}

func TestEvidenceCappedAtTen(t *testing.T) {
	_, b, mem := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 14; i++ {
		b.Publish(ctx, contracts.EventPlanReady,
			planReady("user-1", "msg", contracts.LearningHint{Key: "focus_time", Value: "morning"}))
	}
	trait, _ := mem.GetSemanticTrait(ctx, "user-1", "focus_time")
	if len(trait.Evidence) != contracts.MaxEvidence {
		t.Fatalf("evidence length = %d, want %d", len(trait.Evidence), contracts.MaxEvidence)
	}
}

func TestDecayRemovesStaleLowConfidenceTraits(t *testing.T) {
	engine, _, mem := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	stale := now.Add(-15 * 24 * time.Hour).Format(time.RFC3339)
	fresh := now.Add(-2 * 24 * time.Hour).Format(time.RFC3339)

	seedTrait := func(key string, confidence float64, lastUpdated string) {
		t.Helper()
		trait := contracts.SemanticTrait{
			SchemaVersion: contracts.SchemaVersion,
			Key:           key,
			Value:         "x",
			Confidence:    confidence,
			FirstSeen:     lastUpdated,
			LastUpdated:   lastUpdated,
		}
		if err := mem.UpsertSemanticTrait(ctx, "user-1", trait); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	seedTrait("stale_mid", 0.5, stale)   // decays to 0.45
	seedTrait("stale_low", 0.12, stale)  // decays to ~0.07 → removed
	seedTrait("fresh_low", 0.12, fresh)  // untouched

	if err := engine.DecayTraits(ctx, "user-1", now); err != nil {
		t.Fatalf("DecayTraits: %v", err)
	}

	mid, _ := mem.GetSemanticTrait(ctx, "user-1", "stale_mid")
	if mid == nil || mid.Confidence != 0.45 {
		t.Fatalf("stale_mid = %+v, want confidence 0.45", mid)
	}
	if low, _ := mem.GetSemanticTrait(ctx, "user-1", "stale_low"); low != nil {
		t.Fatalf("stale_low should be removed, got %+v", low)
	}
	freshTrait, _ := mem.GetSemanticTrait(ctx, "user-1", "fresh_low")
	if freshTrait == nil || freshTrait.Confidence != 0.12 {
		t.Fatalf("fresh_low = %+v, want untouched", freshTrait)
	}
}
