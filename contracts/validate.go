package contracts

import (
	"fmt"
	"strings"
)

// ValidationError reports a record failing its schema contract at a trust
// boundary. A validation failure is fatal for the turn: no partial object
// is passed downstream.
type ValidationError struct {
	Contract string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed validation: %s", e.Contract, strings.Join(e.Problems, "; "))
}

func newValidationError(contract string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Contract: contract, Problems: problems}
}

// ValidateMessage checks an incoming message at the ingestion boundary.
func ValidateMessage(m *Message) error {
	var problems []string
	if m.ID == "" {
		problems = append(problems, "id is required")
	}
	if m.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if m.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}
	if m.Content.Text == "" {
		problems = append(problems, "content.text is required")
	}
	if m.Content.Modality == "" {
		problems = append(problems, "content.modality is required")
	}
	if m.Source.Channel == "" {
		problems = append(problems, "source.channel is required")
	}
	if g := m.Metadata.GeoTag; g != nil {
		if g.Lat < -90 || g.Lat > 90 {
			problems = append(problems, "geotag.lat out of range")
		}
		if g.Lon < -180 || g.Lon > 180 {
			problems = append(problems, "geotag.lon out of range")
		}
	}
	return newValidationError("message", problems)
}

// ValidateFacet checks a facet's tag/payload pairing and confidence bounds.
func ValidateFacet(f *Facet) error {
	var problems []string
	if f.MessageID == "" {
		problems = append(problems, "message_id is required")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		problems = append(problems, "confidence out of [0,1]")
	}
	switch f.Type {
	case FacetPerson:
		if f.Person == nil {
			problems = append(problems, "person facet missing person dimensions")
		}
		if f.Activity != nil {
			problems = append(problems, "person facet carries activity dimensions")
		}
	case FacetActivity:
		if f.Activity == nil {
			problems = append(problems, "activity facet missing activity dimensions")
		}
		if f.Person != nil {
			problems = append(problems, "activity facet carries person dimensions")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown facet type %q", f.Type))
	}
	if f.Span != nil && (f.Span.Start < 0 || f.Span.End < f.Span.Start) {
		problems = append(problems, "span is malformed")
	}
	return newValidationError("facet", problems)
}

// ValidateContextPack checks an assembled pack before it leaves the builder.
func ValidateContextPack(c *ContextPack) error {
	var problems []string
	if c.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if c.TurnID == "" {
		problems = append(problems, "turn_id is required")
	}
	if c.Now.Clock == "" {
		problems = append(problems, "now.clock is required")
	}
	if c.Now.Weekday == "" {
		problems = append(problems, "now.weekday is required")
	}
	if ac := c.Rhythms.AwarenessCoherence; ac != nil && (*ac < 0 || *ac > 1) {
		problems = append(problems, "rhythms.awareness_coherence out of [0,1]")
	}
	for i, hit := range c.EpisodicHits {
		if hit.Relevance != nil && (*hit.Relevance < 0 || *hit.Relevance > 1) {
			problems = append(problems, fmt.Sprintf("episodic_hits[%d].relevance out of [0,1]", i))
		}
	}
	if c.TokensEstimate < 0 {
		problems = append(problems, "tokens_estimate is negative")
	}
	return newValidationError("context_pack", problems)
}

// ValidatePlanGraph checks a plan before it is published.
func ValidatePlanGraph(p *PlanGraph) error {
	var problems []string
	switch p.ObjectiveNow {
	case ObjectiveListen, ObjectiveReflect, ObjectiveClarify, ObjectivePlan, ObjectiveEncourage:
	default:
		problems = append(problems, fmt.Sprintf("unknown objective %q", p.ObjectiveNow))
	}
	if len(p.Steps) == 0 {
		problems = append(problems, "plan has no steps")
	}
	for i, step := range p.Steps {
		switch step.Type {
		case StepReflection:
			if step.Reflection == nil {
				problems = append(problems, fmt.Sprintf("steps[%d]: reflection payload missing", i))
			}
		case StepQuestion:
			if step.Question == nil {
				problems = append(problems, fmt.Sprintf("steps[%d]: question payload missing", i))
			}
		case StepActionCreate:
			if step.Task == nil || step.Task.Title == "" {
				problems = append(problems, fmt.Sprintf("steps[%d]: task payload missing or untitled", i))
			}
		case StepBlockPropose:
			if step.Block == nil || step.Block.Title == "" {
				problems = append(problems, fmt.Sprintf("steps[%d]: block payload missing or untitled", i))
			}
		case StepNudge:
			if step.Nudge == nil || step.Nudge.Title == "" {
				problems = append(problems, fmt.Sprintf("steps[%d]: nudge payload missing or untitled", i))
			}
		default:
			problems = append(problems, fmt.Sprintf("steps[%d]: unknown step type %q", i, step.Type))
		}
	}
	return newValidationError("plan_graph", problems)
}
