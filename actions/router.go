// Package actions dispatches the routable plan steps to their outbound
// integrations: task creation, calendar block proposals and scheduled
// nudges. The router publishes an action.routed rollup only when at least
// one step was dispatched.
package actions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
)

// TaskCreator receives action.create steps.
type TaskCreator interface {
	CreateTask(ctx context.Context, userID string, task contracts.TaskDraft) error
}

// BlockProposer receives calendar.block.propose steps.
type BlockProposer interface {
	ProposeBlock(ctx context.Context, userID string, block contracts.BlockDraft) error
}

// NudgeScheduler receives nudge.schedule steps.
type NudgeScheduler interface {
	ScheduleNudge(ctx context.Context, userID string, nudge contracts.NudgeDraft) error
}

// Router subscribes to plan.ready and fans routable steps out to the
// configured sinks. Missing sinks are no-ops; the step still counts as
// routed so the rollup reflects the plan.
type Router struct {
	bus         *bus.Bus
	tasks       TaskCreator
	blocks      BlockProposer
	nudges      NudgeScheduler
	logger      zerolog.Logger
	unsubscribe func()
}

// Option configures a Router.
type Option func(*Router)

// WithTaskCreator installs the task sink.
func WithTaskCreator(t TaskCreator) Option {
	return func(r *Router) { r.tasks = t }
}

// WithBlockProposer installs the calendar sink.
func WithBlockProposer(b BlockProposer) Option {
	return func(r *Router) { r.blocks = b }
}

// WithNudgeScheduler installs the nudge sink.
func WithNudgeScheduler(n NudgeScheduler) Option {
	return func(r *Router) { r.nudges = n }
}

// NewRouter creates an action router bound to the bus.
func NewRouter(b *bus.Bus, logger zerolog.Logger, opts ...Option) *Router {
	r := &Router{
		bus:    b,
		logger: logger.With().Str("component", "actionRouter").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to plan.ready. Calling Start twice is a no-op.
func (r *Router) Start() {
	if r.unsubscribe != nil {
		return
	}
	r.unsubscribe = r.bus.Subscribe(contracts.EventPlanReady, r.onPlanReady)
}

// Stop detaches the router from the bus.
func (r *Router) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Router) onPlanReady(ctx context.Context, payload any) error {
	event, ok := payload.(contracts.PlanReady)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, contracts.EventPlanReady)
	}
	userID := event.Context.UserID

	routed := contracts.ActionRouted{MessageID: event.MessageID}
	for _, step := range event.Plan.Steps {
		if !step.Routable() {
			continue
		}
		switch step.Type {
		case contracts.StepActionCreate:
			if step.Task == nil {
				continue
			}
			if r.tasks != nil {
				if err := r.tasks.CreateTask(ctx, userID, *step.Task); err != nil {
					return fmt.Errorf("create task %q: %w", step.Task.Title, err)
				}
			}
			routed.Tasks = append(routed.Tasks, contracts.RoutedTask{Title: step.Task.Title, Due: step.Task.Due})
		case contracts.StepBlockPropose:
			if step.Block == nil {
				continue
			}
			if r.blocks != nil {
				if err := r.blocks.ProposeBlock(ctx, userID, *step.Block); err != nil {
					return fmt.Errorf("propose block %q: %w", step.Block.Title, err)
				}
			}
			routed.Blocks = append(routed.Blocks, contracts.RoutedBlock{Title: step.Block.Title, Start: step.Block.Start})
		case contracts.StepNudge:
			if step.Nudge == nil {
				continue
			}
			if r.nudges != nil {
				if err := r.nudges.ScheduleNudge(ctx, userID, *step.Nudge); err != nil {
					return fmt.Errorf("schedule nudge %q: %w", step.Nudge.Title, err)
				}
			}
			routed.Nudges = append(routed.Nudges, contracts.RoutedNudge{Title: step.Nudge.Title, SendAt: step.Nudge.SendAt})
		}
	}

	if len(routed.Tasks)+len(routed.Blocks)+len(routed.Nudges) == 0 {
		return nil
	}
	r.logger.Debug().
		Str("messageID", event.MessageID).
		Int("tasks", len(routed.Tasks)).
		Int("blocks", len(routed.Blocks)).
		Int("nudges", len(routed.Nudges)).
		Msg("actions routed")
	r.bus.Publish(ctx, contracts.EventActionRouted, routed)
	return nil
}
