// Package memory implements the per-user tiered memory model: a bounded
// short-term buffer, an episodic append log, semantic traits, preferences
// and identity edges. Two backends satisfy the same contract: an
// in-process map store and a SQLite store.
package memory

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sakhilabs/sakhid/contracts"
)

// DefaultMaxShortTerm caps the short-term buffer per user.
const DefaultMaxShortTerm = 25

// Service is the per-user memory contract. All operations are scoped by
// user id; no cross-user state is ever shared. Backend failures propagate
// as errors to the caller — the core does not retry internally.
type Service interface {
	// AppendShortTerm prepends a record and trims the buffer to the
	// configured maximum.
	AppendShortTerm(ctx context.Context, userID string, rec contracts.ShortTermInteraction) error
	// GetShortTerm returns up to limit most recent records, newest first.
	// A zero or negative limit returns the full retained buffer.
	GetShortTerm(ctx context.Context, userID string, limit int) ([]contracts.ShortTermInteraction, error)

	// AppendEpisodic prepends to the unbounded episodic log.
	AppendEpisodic(ctx context.Context, userID string, rec contracts.EpisodicRecord) error
	// SearchEpisodic matches records by substring today; the contract
	// allows a vector-similarity implementation without callers changing.
	SearchEpisodic(ctx context.Context, userID, query string, limit int) ([]contracts.EpisodicRecord, error)

	UpsertSemanticTrait(ctx context.Context, userID string, trait contracts.SemanticTrait) error
	// GetSemanticTrait returns nil when no trait exists for key.
	GetSemanticTrait(ctx context.Context, userID, key string) (*contracts.SemanticTrait, error)
	ListSemanticTraits(ctx context.Context, userID string) ([]contracts.SemanticTrait, error)
	RemoveSemanticTrait(ctx context.Context, userID, key string) error

	UpsertPreference(ctx context.Context, userID string, pref contracts.PreferenceRecord) error
	ListPreferences(ctx context.Context, userID string) ([]contracts.PreferenceRecord, error)

	UpsertIdentityEdge(ctx context.Context, userID string, edge contracts.IdentityEdge) error
	ListIdentityEdges(ctx context.Context, userID string) ([]contracts.IdentityEdge, error)
}

var ulidEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // IDs, not secrets

// NewRecordID returns a lexically time-sortable id for memory records.
func NewRecordID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
