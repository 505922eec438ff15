package decision

import (
	"strings"
	"testing"
)

func TestDecideUnknownIntent(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	got := engine.Decide("haircut", nil)
	if len(got.Options) != 0 {
		t.Fatalf("expected no options for unknown intent, got %d", len(got.Options))
	}
	if got.MicroQuestion == "" {
		t.Fatal("expected a generic micro-question for unknown intent")
	}
}

func TestDecideInterpolatesResolvedSlots(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	got := engine.Decide("wardrobe", map[string]string{
		"setting": "conference",
		"climate": "humid",
		"indoor":  "indoor",
	})
	if len(got.Options) == 0 {
		t.Fatal("expected options")
	}
	if !strings.Contains(got.Options[0].Label, "conference") {
		t.Errorf("label %q missing interpolated setting", got.Options[0].Label)
	}
	if !strings.Contains(got.Options[0].Rationale, "humid") {
		t.Errorf("rationale %q missing interpolated climate", got.Options[0].Rationale)
	}
	if got.MicroQuestion != "" {
		t.Errorf("all slots filled, expected no micro-question, got %q", got.MicroQuestion)
	}
}

func TestDecideAsksHighestVOIMissingSlot(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Climate given, setting (voi 0.9) and indoor (voi 0.5) missing.
	got := engine.Decide("wardrobe", map[string]string{"climate": "humid"})
	if !strings.Contains(got.MicroQuestion, "occasion") {
		t.Fatalf("expected the setting question (highest VOI), got %q", got.MicroQuestion)
	}
}

func TestDecideFallbackFillsUnprovidedSlots(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	got := engine.Decide("preworkout-meal", nil)
	if !strings.Contains(got.Options[0].Rationale, "60m") {
		t.Errorf("rationale %q should use the window fallback", got.Options[0].Rationale)
	}
}

func TestDecideEmitsLearningHints(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	got := engine.Decide("gift", map[string]string{"recipient": "partner", "occasion": "birthday"})
	if len(got.LearningHints) != 1 {
		t.Fatalf("expected 1 learning hint, got %d", len(got.LearningHints))
	}
	if got.LearningHints[0].Key != "gift.partner" || got.LearningHints[0].Value != "birthday" {
		t.Fatalf("unexpected hint: %+v", got.LearningHints[0])
	}
}

func TestRegistryParsesAllIntents(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for _, intent := range []string{"wardrobe", "preworkout-meal", "travel-pack", "route", "gift"} {
		got := engine.Decide(intent, nil)
		if len(got.Options) == 0 {
			t.Errorf("intent %q resolved with no options", intent)
		}
	}
	if engine.Version() != "1" {
		t.Errorf("registry version = %q, want 1", engine.Version())
	}
}
