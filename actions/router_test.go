package actions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
)

type recordingSinks struct {
	tasks  []contracts.TaskDraft
	blocks []contracts.BlockDraft
	nudges []contracts.NudgeDraft
}

func (r *recordingSinks) CreateTask(ctx context.Context, userID string, task contracts.TaskDraft) error {
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recordingSinks) ProposeBlock(ctx context.Context, userID string, block contracts.BlockDraft) error {
	r.blocks = append(r.blocks, block)
	return nil
}

func (r *recordingSinks) ScheduleNudge(ctx context.Context, userID string, nudge contracts.NudgeDraft) error {
	r.nudges = append(r.nudges, nudge)
	return nil
}

func routerPlanReady(steps ...contracts.PlanStep) contracts.PlanReady {
	return contracts.PlanReady{
		MessageID: "msg-1",
		Context: contracts.ContextPack{
			SchemaVersion: contracts.SchemaVersion,
			UserID:        "user-1",
			TurnID:        "turn-1",
		},
		Plan: contracts.PlanGraph{
			SchemaVersion: contracts.SchemaVersion,
			ObjectiveNow:  contracts.ObjectivePlan,
			Steps:         steps,
		},
	}
}

func TestRouterDispatchesRoutableSteps(t *testing.T) {
	b := bus.New(zerolog.Nop())
	sinks := &recordingSinks{}
	router := NewRouter(b, zerolog.Nop(),
		WithTaskCreator(sinks), WithBlockProposer(sinks), WithNudgeScheduler(sinks))
	router.Start()
	defer router.Stop()

	var routed *contracts.ActionRouted
	b.Subscribe(contracts.EventActionRouted, func(ctx context.Context, payload any) error {
		event := payload.(contracts.ActionRouted)
		routed = &event
		return nil
	})

	b.Publish(context.Background(), contracts.EventPlanReady, routerPlanReady(
		contracts.PlanStep{Type: contracts.StepReflection, Reflection: &contracts.ReflectionStep{TextTemplate: "x"}},
		contracts.PlanStep{Type: contracts.StepActionCreate, Task: &contracts.TaskDraft{Title: "email Sam", Due: "2024-07-11"}},
		contracts.PlanStep{Type: contracts.StepBlockPropose, Block: &contracts.BlockDraft{Title: "Deck work", Start: "2024-07-11T09:00:00Z"}},
		contracts.PlanStep{Type: contracts.StepNudge, Nudge: &contracts.NudgeDraft{Title: "Gentle check-in", SendAt: "2024-07-10T15:30:00Z"}},
	))

	if len(sinks.tasks) != 1 || sinks.tasks[0].Title != "email Sam" {
		t.Errorf("tasks = %+v", sinks.tasks)
	}
	if len(sinks.blocks) != 1 || sinks.blocks[0].Start != "2024-07-11T09:00:00Z" {
		t.Errorf("blocks = %+v", sinks.blocks)
	}
	if len(sinks.nudges) != 1 || sinks.nudges[0].SendAt != "2024-07-10T15:30:00Z" {
		t.Errorf("nudges = %+v", sinks.nudges)
	}

	if routed == nil {
		t.Fatal("no action.routed published")
	}
	if routed.MessageID != "msg-1" {
		t.Errorf("message id = %q", routed.MessageID)
	}
	if len(routed.Tasks) != 1 || routed.Tasks[0].Due != "2024-07-11" {
		t.Errorf("routed tasks = %+v", routed.Tasks)
	}
	if len(routed.Blocks) != 1 || len(routed.Nudges) != 1 {
		t.Errorf("routed rollup = %+v", routed)
	}
}

func TestReflectionOnlyPlanPublishesNothing(t *testing.T) {
	b := bus.New(zerolog.Nop())
	router := NewRouter(b, zerolog.Nop(), WithTaskCreator(&recordingSinks{}))
	router.Start()
	defer router.Stop()

	published := false
	b.Subscribe(contracts.EventActionRouted, func(ctx context.Context, payload any) error {
		published = true
		return nil
	})

	b.Publish(context.Background(), contracts.EventPlanReady, routerPlanReady(
		contracts.PlanStep{Type: contracts.StepReflection, Reflection: &contracts.ReflectionStep{TextTemplate: "x"}},
		contracts.PlanStep{Type: contracts.StepQuestion, Question: &contracts.QuestionStep{Target: "person", Purpose: "clarify", Template: "?"}},
	))

	if published {
		t.Fatal("action.routed published for a plan with no routable steps")
	}
}

func TestRouterWithoutSinksStillReportsRouted(t *testing.T) {
	b := bus.New(zerolog.Nop())
	router := NewRouter(b, zerolog.Nop())
	router.Start()
	defer router.Stop()

	var routed *contracts.ActionRouted
	b.Subscribe(contracts.EventActionRouted, func(ctx context.Context, payload any) error {
		event := payload.(contracts.ActionRouted)
		routed = &event
		return nil
	})

	b.Publish(context.Background(), contracts.EventPlanReady, routerPlanReady(
		contracts.PlanStep{Type: contracts.StepActionCreate, Task: &contracts.TaskDraft{Title: "follow up"}},
	))

	if routed == nil || len(routed.Tasks) != 1 {
		t.Fatalf("routed = %+v, want the task reported despite missing sink", routed)
	}
}

func TestConversationalStepsNeverReachSinks(t *testing.T) {
	b := bus.New(zerolog.Nop())
	sinks := &recordingSinks{}
	router := NewRouter(b, zerolog.Nop(),
		WithTaskCreator(sinks), WithBlockProposer(sinks), WithNudgeScheduler(sinks))
	router.Start()
	defer router.Stop()

	b.Publish(context.Background(), contracts.EventPlanReady, routerPlanReady(
		contracts.PlanStep{Type: contracts.StepReflection, Reflection: &contracts.ReflectionStep{TextTemplate: "noted"}},
		contracts.PlanStep{Type: contracts.StepQuestion, Question: &contracts.QuestionStep{Target: "person", Purpose: "learn", Template: "what helps?"}},
		contracts.PlanStep{Type: contracts.StepNudge, Nudge: &contracts.NudgeDraft{Title: "Check-in", SendAt: "2024-07-10T15:30:00Z"}},
	))

	if len(sinks.tasks) != 0 || len(sinks.blocks) != 0 {
		t.Errorf("conversational steps were dispatched: tasks=%v blocks=%v", sinks.tasks, sinks.blocks)
	}
	if len(sinks.nudges) != 1 {
		t.Fatalf("expected only the nudge to route, got %v", sinks.nudges)
	}
}
