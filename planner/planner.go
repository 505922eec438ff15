// Package planner turns a facet set plus context pack into a plan graph.
// Selection is a pure function of the inputs: an ordered pattern list is
// walked and the first matching pattern builds the plan.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/decision"
)

// Input is everything one planning call sees.
type Input struct {
	Facets  []contracts.Facet
	Context contracts.ContextPack
	Now     time.Time
}

// Planner produces one plan graph per turn, plus any learning hints the
// selected pattern surfaced.
type Planner interface {
	Plan(input Input) (contracts.PlanGraph, []contracts.LearningHint, error)
}

type pattern struct {
	name      string
	predicate func(Input) bool
	build     func(Input) (contracts.PlanGraph, []contracts.LearningHint)
}

// RuleBasedPlanner is the deterministic production planner.
type RuleBasedPlanner struct {
	patterns []pattern
	logger   zerolog.Logger
}

// NewRuleBasedPlanner wires the pattern list. A decision-intent facet
// always wins; reflect-only is the terminal fallback.
func NewRuleBasedPlanner(engine *decision.Engine, logger zerolog.Logger) *RuleBasedPlanner {
	return &RuleBasedPlanner{
		patterns: []pattern{
			decisionPattern(engine),
			reflectOnlyPattern(),
			reflectPlusQuestionPattern(),
			planLitePattern(),
			planDeepPattern(),
			encouragePattern(),
		},
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

func (p *RuleBasedPlanner) Plan(input Input) (contracts.PlanGraph, []contracts.LearningHint, error) {
	selected := p.pick(input)
	plan, hints := selected.build(input)
	plan.SchemaVersion = contracts.SchemaVersion
	if err := contracts.ValidatePlanGraph(&plan); err != nil {
		return contracts.PlanGraph{}, nil, err
	}
	p.logger.Debug().
		Str("pattern", selected.name).
		Str("objective", string(plan.ObjectiveNow)).
		Int("steps", len(plan.Steps)).
		Msg("plan selected")
	return plan, hints, nil
}

func (p *RuleBasedPlanner) pick(input Input) pattern {
	for _, candidate := range p.patterns {
		if candidate.predicate(input) {
			return candidate
		}
	}
	// Unmatched facet sets still deserve a reflective turn.
	fallback := reflectOnlyPattern()
	fallback.predicate = func(Input) bool { return true }
	return fallback
}

func hasNeed(facets []contracts.Facet, need contracts.PersonNeed) bool {
	return lo.SomeBy(facets, func(f contracts.Facet) bool {
		return f.Type == contracts.FacetPerson && f.Person != nil && f.Person.Need == need
	})
}

func findActivity(facets []contracts.Facet, effort contracts.ActivityEffort) (contracts.Facet, bool) {
	return lo.Find(facets, func(f contracts.Facet) bool {
		return f.Type == contracts.FacetActivity && f.Activity != nil && f.Activity.Effort == effort
	})
}

func decisionPattern(engine *decision.Engine) pattern {
	return pattern{
		name: "decision-template",
		predicate: func(input Input) bool {
			return lo.SomeBy(input.Facets, func(f contracts.Facet) bool {
				_, ok := f.DecisionIntent()
				return ok
			})
		},
		build: func(input Input) (contracts.PlanGraph, []contracts.LearningHint) {
			target, _ := lo.Find(input.Facets, func(f contracts.Facet) bool {
				_, ok := f.DecisionIntent()
				return ok
			})
			intent, _ := target.DecisionIntent()
			result := engine.Decide(intent, target.DecisionSlots())

			lines := make([]string, 0, len(result.Options))
			for i, opt := range result.Options {
				lines = append(lines, fmt.Sprintf("%d. %s – %s", i+1, opt.Label, opt.Rationale))
			}
			confirm := result.MicroQuestion
			if confirm == "" {
				confirm = "Which option feels best?"
			}
			goal := &contracts.LearningGoal{MicroQuestion: result.MicroQuestion}
			if len(result.LearningHints) > 0 {
				goal.Hypothesis = result.LearningHints[0].Key
			}
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectiveClarify,
				LearningGoal: goal,
				Steps: []contracts.PlanStep{
					{
						Type: contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{
							TextTemplate: fmt.Sprintf("Here are %s ideas: %s", result.Intent, strings.Join(lines, " ")),
						},
					},
					{
						Type: contracts.StepQuestion,
						Question: &contracts.QuestionStep{
							Target:   "person",
							Purpose:  "confirm",
							Template: confirm,
						},
					},
				},
			}, result.LearningHints
		},
	}
}

func reflectOnlyPattern() pattern {
	return pattern{
		name: "reflect-only",
		predicate: func(input Input) bool {
			if !hasNeed(input.Facets, contracts.NeedListen) {
				return false
			}
			return !lo.SomeBy(input.Facets, func(f contracts.Facet) bool {
				return f.Type == contracts.FacetActivity
			})
		},
		build: func(Input) (contracts.PlanGraph, []contracts.LearningHint) {
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectiveListen,
				LearningGoal: &contracts.LearningGoal{Hypothesis: "stressor_overload?"},
				Steps: []contracts.PlanStep{
					{
						Type: contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{
							TextTemplate: "It sounds like things feel heavy right now. I'm here with you.",
						},
					},
				},
			}, nil
		},
	}
}

func reflectPlusQuestionPattern() pattern {
	return pattern{
		name: "reflect-plus-question",
		predicate: func(input Input) bool {
			return hasNeed(input.Facets, contracts.NeedClarify)
		},
		build: func(Input) (contracts.PlanGraph, []contracts.LearningHint) {
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectiveClarify,
				LearningGoal: &contracts.LearningGoal{MicroQuestion: "What would reduce the pressure right now?"},
				Steps: []contracts.PlanStep{
					{
						Type:       contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{TextTemplate: "Noted the mix of feelings."},
					},
					{
						Type: contracts.StepQuestion,
						Question: &contracts.QuestionStep{
							Target:   "person",
							Purpose:  "clarify",
							Template: "What would help most in the next hour?",
						},
					},
				},
			}, nil
		},
	}
}

func planLitePattern() pattern {
	return pattern{
		name: "plan-lite",
		predicate: func(input Input) bool {
			_, ok := findActivity(input.Facets, contracts.EffortLight)
			return ok
		},
		build: func(input Input) (contracts.PlanGraph, []contracts.LearningHint) {
			activity, _ := findActivity(input.Facets, contracts.EffortLight)
			title := "Follow up"
			var goal *contracts.LearningGoal
			if activity.Activity.Action != "" {
				title = activity.Activity.Action
				goal = &contracts.LearningGoal{Hypothesis: "prefers_" + activity.Activity.Action}
			}
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectivePlan,
				LearningGoal: goal,
				Steps: []contracts.PlanStep{
					{
						Type:       contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{TextTemplate: "Captured what you need."},
					},
					{
						Type: contracts.StepActionCreate,
						Task: &contracts.TaskDraft{
							Title: title,
							Notes: "Created from a light-effort mention",
						},
					},
				},
			}, nil
		},
	}
}

func planDeepPattern() pattern {
	return pattern{
		name: "plan-deep",
		predicate: func(input Input) bool {
			_, ok := findActivity(input.Facets, contracts.EffortDeep)
			return ok
		},
		build: func(input Input) (contracts.PlanGraph, []contracts.LearningHint) {
			activity, _ := findActivity(input.Facets, contracts.EffortDeep)
			title := "Focus block"
			if activity.Activity.Action != "" {
				title = activity.Activity.Action
			}
			duration := activity.Activity.DurationMinutes
			if duration <= 0 {
				duration = 60
			}
			block := &contracts.BlockDraft{Title: title, DurationMinutes: duration}
			// Deep work lands in the first high-energy free block when one exists.
			if highEnergy, ok := lo.Find(input.Context.ScheduleWindow.FreeBlocks, func(b contracts.FreeBlock) bool {
				return b.Energy == "high"
			}); ok {
				block.Start = highEnergy.Start
			}
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectivePlan,
				LearningGoal: &contracts.LearningGoal{MicroQuestion: "Would a focused block help?"},
				Steps: []contracts.PlanStep{
					{
						Type:       contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{TextTemplate: "That work deserves a proper runway."},
					},
					{
						Type:  contracts.StepBlockPropose,
						Block: block,
					},
				},
			}, nil
		},
	}
}

func encouragePattern() pattern {
	return pattern{
		name: "encourage-track",
		predicate: func(input Input) bool {
			return hasNeed(input.Facets, contracts.NeedEncourage)
		},
		build: func(input Input) (contracts.PlanGraph, []contracts.LearningHint) {
			return contracts.PlanGraph{
				ObjectiveNow: contracts.ObjectiveEncourage,
				LearningGoal: &contracts.LearningGoal{Hypothesis: "habit_support?"},
				Steps: []contracts.PlanStep{
					{
						Type:       contracts.StepReflection,
						Reflection: &contracts.ReflectionStep{TextTemplate: "Progress counts, even if small."},
					},
					{
						Type: contracts.StepNudge,
						Nudge: &contracts.NudgeDraft{
							Title:  "Gentle check-in",
							SendAt: input.Now.Add(time.Hour).Format(time.RFC3339),
						},
					},
				},
			}, nil
		},
	}
}
