// Package schedule provides the read-only calendar and rhythm collaborators
// consumed by the context builder. Both return empty defaults when no data
// exists for a user.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/sakhilabs/sakhid/contracts"
)

// Store answers windowed schedule queries by user id and time range.
type Store interface {
	GetWindow(ctx context.Context, userID string, start, end time.Time) (contracts.ScheduleWindow, error)
}

// RhythmEngine answers rhythm-signal queries by user id.
type RhythmEngine interface {
	GetRhythms(ctx context.Context, userID string, now time.Time) (contracts.Rhythms, error)
}

// InMemoryStore keeps one schedule window per user, set out of band
// (e.g. by a calendar sync job).
type InMemoryStore struct {
	mu      sync.RWMutex
	windows map[string]contracts.ScheduleWindow
}

// NewInMemoryStore creates an empty schedule store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]contracts.ScheduleWindow)}
}

// SetWindow replaces the stored window for a user.
func (s *InMemoryStore) SetWindow(userID string, window contracts.ScheduleWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[userID] = window
}

// GetWindow returns the stored events and free blocks overlapping
// [start, end). Entries with unparseable timestamps are kept.
func (s *InMemoryStore) GetWindow(ctx context.Context, userID string, start, end time.Time) (contracts.ScheduleWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := contracts.ScheduleWindow{
		Events:     []contracts.ScheduleEvent{},
		FreeBlocks: []contracts.FreeBlock{},
	}
	window, ok := s.windows[userID]
	if !ok {
		return out, nil
	}
	for _, event := range window.Events {
		if overlaps(event.Start, event.End, start, end) {
			out.Events = append(out.Events, event)
		}
	}
	for _, block := range window.FreeBlocks {
		if overlaps(block.Start, block.End, start, end) {
			out.FreeBlocks = append(out.FreeBlocks, block)
		}
	}
	return out, nil
}

// overlaps reports whether an [eventStart, eventEnd) range touches
// [start, end). Timestamps that fail to parse count as overlapping.
func overlaps(eventStart, eventEnd string, start, end time.Time) bool {
	from, err := time.Parse(time.RFC3339, eventStart)
	if err != nil {
		return true
	}
	until, err := time.Parse(time.RFC3339, eventEnd)
	if err != nil {
		return true
	}
	return until.After(start) && from.Before(end)
}

// StaticRhythmEngine returns the same rhythm signals for every user.
// Useful for tests and for deployments without a wearable integration.
type StaticRhythmEngine struct {
	Rhythms contracts.Rhythms
}

func (e *StaticRhythmEngine) GetRhythms(ctx context.Context, userID string, now time.Time) (contracts.Rhythms, error) {
	return e.Rhythms, nil
}

// PhaseFor buckets a clock hour into a coarse circadian phase.
func PhaseFor(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 5:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// ClockRhythmEngine derives the circadian phase from the wall clock and
// carries no coherence signal.
type ClockRhythmEngine struct{}

func (ClockRhythmEngine) GetRhythms(ctx context.Context, userID string, now time.Time) (contracts.Rhythms, error) {
	return contracts.Rhythms{CircadianPhase: PhaseFor(now)}, nil
}
