package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/contracts"
)

// InProcessService keeps all tiers in per-user maps. It is the default
// backend for tests and single-process deployments.
type InProcessService struct {
	mu           sync.RWMutex
	maxShortTerm int
	shortTerm    map[string][]contracts.ShortTermInteraction
	episodic     map[string][]contracts.EpisodicRecord
	traits       map[string][]contracts.SemanticTrait
	preferences  map[string][]contracts.PreferenceRecord
	edges        map[string][]contracts.IdentityEdge
	logger       zerolog.Logger
}

// InProcessOption customizes an InProcessService.
type InProcessOption func(*InProcessService)

// WithMaxShortTerm overrides the short-term buffer cap.
func WithMaxShortTerm(n int) InProcessOption {
	return func(s *InProcessService) {
		if n > 0 {
			s.maxShortTerm = n
		}
	}
}

// NewInProcessService creates an empty in-process store.
func NewInProcessService(logger zerolog.Logger, opts ...InProcessOption) *InProcessService {
	s := &InProcessService{
		maxShortTerm: DefaultMaxShortTerm,
		shortTerm:    make(map[string][]contracts.ShortTermInteraction),
		episodic:     make(map[string][]contracts.EpisodicRecord),
		traits:       make(map[string][]contracts.SemanticTrait),
		preferences:  make(map[string][]contracts.PreferenceRecord),
		edges:        make(map[string][]contracts.IdentityEdge),
		logger:       logger.With().Str("component", "memory_inprocess").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InProcessService) AppendShortTerm(ctx context.Context, userID string, rec contracts.ShortTermInteraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := append([]contracts.ShortTermInteraction{rec}, s.shortTerm[userID]...)
	if len(buf) > s.maxShortTerm {
		buf = buf[:s.maxShortTerm]
	}
	s.shortTerm[userID] = buf
	s.logger.Debug().Str("user_id", userID).Str("id", rec.ID).Int("len", len(buf)).Msg("short-term appended")
	return nil
}

func (s *InProcessService) GetShortTerm(ctx context.Context, userID string, limit int) ([]contracts.ShortTermInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := s.shortTerm[userID]
	if limit <= 0 || limit > len(buf) {
		limit = len(buf)
	}
	out := make([]contracts.ShortTermInteraction, limit)
	copy(out, buf[:limit])
	return out, nil
}

func (s *InProcessService) AppendEpisodic(ctx context.Context, userID string, rec contracts.EpisodicRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodic[userID] = append([]contracts.EpisodicRecord{rec}, s.episodic[userID]...)
	return nil
}

func (s *InProcessService) SearchEpisodic(ctx context.Context, userID, query string, limit int) ([]contracts.EpisodicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(query)
	var out []contracts.EpisodicRecord
	for _, rec := range s.episodic[userID] {
		if needle != "" && !strings.Contains(strings.ToLower(rec.Text), needle) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InProcessService) UpsertSemanticTrait(ctx context.Context, userID string, trait contracts.SemanticTrait) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.traits[userID]
	for i := range items {
		if items[i].Key == trait.Key {
			items[i] = trait
			return nil
		}
	}
	s.traits[userID] = append(items, trait)
	return nil
}

func (s *InProcessService) GetSemanticTrait(ctx context.Context, userID, key string) (*contracts.SemanticTrait, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, trait := range s.traits[userID] {
		if trait.Key == key {
			found := trait
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InProcessService) ListSemanticTraits(ctx context.Context, userID string) ([]contracts.SemanticTrait, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.SemanticTrait, len(s.traits[userID]))
	copy(out, s.traits[userID])
	return out, nil
}

func (s *InProcessService) RemoveSemanticTrait(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.traits[userID]
	for i := range items {
		if items[i].Key == key {
			s.traits[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InProcessService) UpsertPreference(ctx context.Context, userID string, pref contracts.PreferenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.preferences[userID]
	for i := range items {
		if items[i].Key == pref.Key && items[i].Scope == pref.Scope {
			items[i] = pref
			return nil
		}
	}
	s.preferences[userID] = append(items, pref)
	return nil
}

func (s *InProcessService) ListPreferences(ctx context.Context, userID string) ([]contracts.PreferenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.PreferenceRecord, len(s.preferences[userID]))
	copy(out, s.preferences[userID])
	return out, nil
}

func (s *InProcessService) UpsertIdentityEdge(ctx context.Context, userID string, edge contracts.IdentityEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.edges[userID]
	for i := range items {
		if items[i].From == edge.From && items[i].To == edge.To && items[i].Relationship == edge.Relationship {
			items[i] = edge
			return nil
		}
	}
	s.edges[userID] = append(items, edge)
	return nil
}

func (s *InProcessService) ListIdentityEdges(ctx context.Context, userID string) ([]contracts.IdentityEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.IdentityEdge, len(s.edges[userID]))
	copy(out, s.edges[userID])
	return out, nil
}
