package actions

import (
	"context"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/contracts"
)

// BeeepNudger delivers nudges as desktop notifications. A nudge with a
// future send_at is held on a timer; one without fires immediately.
type BeeepNudger struct {
	logger zerolog.Logger

	mu     sync.Mutex
	timers []*time.Timer
}

// NewBeeepNudger creates a desktop-notification nudge sink.
func NewBeeepNudger(logger zerolog.Logger) *BeeepNudger {
	return &BeeepNudger{logger: logger.With().Str("component", "nudger").Logger()}
}

func (n *BeeepNudger) ScheduleNudge(ctx context.Context, userID string, nudge contracts.NudgeDraft) error {
	delay := time.Duration(0)
	if nudge.SendAt != "" {
		sendAt, err := time.Parse(time.RFC3339, nudge.SendAt)
		if err == nil && sendAt.After(time.Now()) {
			delay = time.Until(sendAt)
		}
	}

	if delay == 0 {
		n.deliver(nudge.Title)
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.timers = append(n.timers, time.AfterFunc(delay, func() {
		n.deliver(nudge.Title)
	}))
	n.logger.Debug().Str("title", nudge.Title).Dur("delay", delay).Msg("nudge scheduled")
	return nil
}

// Close cancels all pending nudges.
func (n *BeeepNudger) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, timer := range n.timers {
		timer.Stop()
	}
	n.timers = nil
}

func (n *BeeepNudger) deliver(title string) {
	if title == "" {
		title = "Check-in"
	}
	// Notification failures are logged, never propagated: a missed desktop
	// popup must not fail the turn.
	if err := beeep.Notify("Sakhi", title, ""); err != nil {
		n.logger.Warn().Err(err).Msg("desktop notification failed")
		return
	}
	n.logger.Debug().Str("title", title).Msg("nudge delivered")
}
