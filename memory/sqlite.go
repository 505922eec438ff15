package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/contracts"
)

// DefaultShortTermTTL is how long a short-term row stays readable before
// the expiry cleanup may drop it.
const DefaultShortTermTTL = 14 * 24 * time.Hour

// SQLiteService persists all memory tiers in SQLite. Each row stores the
// full record as a JSON blob plus created_at/updated_at timestamps;
// short-term rows additionally carry an expiry timestamp.
type SQLiteService struct {
	db           *sql.DB
	maxShortTerm int
	shortTermTTL time.Duration
	logger       zerolog.Logger
}

// SQLiteOption customizes a SQLiteService.
type SQLiteOption func(*SQLiteService)

// WithSQLiteMaxShortTerm overrides the short-term buffer cap.
func WithSQLiteMaxShortTerm(n int) SQLiteOption {
	return func(s *SQLiteService) {
		if n > 0 {
			s.maxShortTerm = n
		}
	}
}

// WithSQLiteShortTermTTL overrides how long short-term rows live.
func WithSQLiteShortTermTTL(d time.Duration) SQLiteOption {
	return func(s *SQLiteService) {
		if d > 0 {
			s.shortTermTTL = d
		}
	}
}

// NewSQLiteService wraps an open database. The schema must already be
// migrated (see the migrations package).
func NewSQLiteService(db *sql.DB, logger zerolog.Logger, opts ...SQLiteOption) *SQLiteService {
	s := &SQLiteService{
		db:           db,
		maxShortTerm: DefaultMaxShortTerm,
		shortTermTTL: DefaultShortTermTTL,
		logger:       logger.With().Str("component", "memory_sqlite").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func nowNano() int64 { return time.Now().UnixNano() }

// lowerLike folds case and escapes nothing: the LIKE match is a plain
// substring check, consistent with the in-process backend.
func lowerLike(q string) string { return strings.ToLower(q) }

func (s *SQLiteService) AppendShortTerm(ctx context.Context, userID string, rec contracts.ShortTermInteraction) error {
	s.logger.Debug().Str("method", "AppendShortTerm").Str("user_id", userID).Str("id", rec.ID).Msg("called")
	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal short-term record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowNano()
	query := StatementBuilder().
		Insert("memory_short_term").
		Columns("id", "user_id", "record", "created_at", "expires_at").
		Values(rec.ID, userID, blob, now, time.Now().Add(s.shortTermTTL).UnixNano())
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("insert short-term record: %w", err)
	}

	// Trim overflow so the buffer never grows past the cap. The subselect
	// keeps the newest rows, so concurrent appends lose at most the
	// overflow.
	if _, err := tx.ExecContext(ctx, `
DELETE FROM memory_short_term
WHERE user_id = ?
  AND id NOT IN (
    SELECT id FROM memory_short_term
    WHERE user_id = ?
    ORDER BY created_at DESC, id DESC
    LIMIT ?
  )`, userID, userID, s.maxShortTerm); err != nil {
		return fmt.Errorf("trim short-term buffer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit short-term append: %w", err)
	}
	return nil
}

func (s *SQLiteService) GetShortTerm(ctx context.Context, userID string, limit int) ([]contracts.ShortTermInteraction, error) {
	if limit <= 0 || limit > s.maxShortTerm {
		limit = s.maxShortTerm
	}
	query := StatementBuilder().
		Select("record").
		From("memory_short_term").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"expires_at": nowNano()}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query short-term buffer: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []contracts.ShortTermInteraction
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan short-term row: %w", err)
		}
		var rec contracts.ShortTermInteraction
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal short-term record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteService) AppendEpisodic(ctx context.Context, userID string, rec contracts.EpisodicRecord) error {
	s.logger.Debug().Str("method", "AppendEpisodic").Str("user_id", userID).Str("id", rec.ID).Msg("called")
	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	// The vector lives in its own column; the JSON blob stays readable.
	embedding := rec.Embedding
	rec.Embedding = nil
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal episodic record: %w", err)
	}
	query := StatementBuilder().
		Insert("memory_episodic").
		Columns("id", "user_id", "record", "embedding", "created_at").
		Values(rec.ID, userID, blob, EncodeEmbedding(embedding), nowNano())
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("insert episodic record: %w", err)
	}
	return nil
}

func (s *SQLiteService) SearchEpisodic(ctx context.Context, userID, query string, limit int) ([]contracts.EpisodicRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	builder := StatementBuilder().
		Select("record", "embedding").
		From("memory_episodic").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if query != "" {
		builder = builder.Where(sq.Expr(
			"lower(json_extract(record, '$.text')) LIKE ?",
			"%"+lowerLike(query)+"%",
		))
	}
	queryStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search episodic log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []contracts.EpisodicRecord
	for rows.Next() {
		var blob, embBlob []byte
		if err := rows.Scan(&blob, &embBlob); err != nil {
			return nil, fmt.Errorf("scan episodic row: %w", err)
		}
		var rec contracts.EpisodicRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal episodic record: %w", err)
		}
		embedding, err := DecodeEmbedding(embBlob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", rec.ID, err)
		}
		rec.Embedding = embedding
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteService) UpsertSemanticTrait(ctx context.Context, userID string, trait contracts.SemanticTrait) error {
	return s.upsertKeyed(ctx, "memory_semantic_traits",
		[]string{"user_id", "trait_key"},
		[]any{userID, trait.Key},
		trait)
}

func (s *SQLiteService) GetSemanticTrait(ctx context.Context, userID, key string) (*contracts.SemanticTrait, error) {
	queryStr, args, err := StatementBuilder().
		Select("record").
		From("memory_semantic_traits").
		Where(sq.Eq{"user_id": userID, "trait_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}
	var blob []byte
	if err := s.db.QueryRowContext(ctx, queryStr, args...).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get semantic trait: %w", err)
	}
	var trait contracts.SemanticTrait
	if err := json.Unmarshal(blob, &trait); err != nil {
		return nil, fmt.Errorf("unmarshal semantic trait: %w", err)
	}
	return &trait, nil
}

func (s *SQLiteService) ListSemanticTraits(ctx context.Context, userID string) ([]contracts.SemanticTrait, error) {
	blobs, err := s.listRecords(ctx, "memory_semantic_traits", userID)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.SemanticTrait, 0, len(blobs))
	for _, blob := range blobs {
		var trait contracts.SemanticTrait
		if err := json.Unmarshal(blob, &trait); err != nil {
			return nil, fmt.Errorf("unmarshal semantic trait: %w", err)
		}
		out = append(out, trait)
	}
	return out, nil
}

func (s *SQLiteService) RemoveSemanticTrait(ctx context.Context, userID, key string) error {
	queryStr, args, err := StatementBuilder().
		Delete("memory_semantic_traits").
		Where(sq.Eq{"user_id": userID, "trait_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("remove semantic trait: %w", err)
	}
	return nil
}

func (s *SQLiteService) UpsertPreference(ctx context.Context, userID string, pref contracts.PreferenceRecord) error {
	return s.upsertKeyed(ctx, "memory_preferences",
		[]string{"user_id", "pref_scope", "pref_key"},
		[]any{userID, string(pref.Scope), pref.Key},
		pref)
}

func (s *SQLiteService) ListPreferences(ctx context.Context, userID string) ([]contracts.PreferenceRecord, error) {
	blobs, err := s.listRecords(ctx, "memory_preferences", userID)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.PreferenceRecord, 0, len(blobs))
	for _, blob := range blobs {
		var pref contracts.PreferenceRecord
		if err := json.Unmarshal(blob, &pref); err != nil {
			return nil, fmt.Errorf("unmarshal preference: %w", err)
		}
		out = append(out, pref)
	}
	return out, nil
}

func (s *SQLiteService) UpsertIdentityEdge(ctx context.Context, userID string, edge contracts.IdentityEdge) error {
	return s.upsertKeyed(ctx, "memory_identity_edges",
		[]string{"user_id", "edge_from", "edge_to", "relationship"},
		[]any{userID, edge.From, edge.To, edge.Relationship},
		edge)
}

func (s *SQLiteService) ListIdentityEdges(ctx context.Context, userID string) ([]contracts.IdentityEdge, error) {
	blobs, err := s.listRecords(ctx, "memory_identity_edges", userID)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.IdentityEdge, 0, len(blobs))
	for _, blob := range blobs {
		var edge contracts.IdentityEdge
		if err := json.Unmarshal(blob, &edge); err != nil {
			return nil, fmt.Errorf("unmarshal identity edge: %w", err)
		}
		out = append(out, edge)
	}
	return out, nil
}

// PruneExpiredShortTerm deletes short-term rows past their expiry. Called
// from the consolidation cycle, never from the request path.
func (s *SQLiteService) PruneExpiredShortTerm(ctx context.Context) (int64, error) {
	queryStr, args, err := StatementBuilder().
		Delete("memory_short_term").
		Where(sq.LtOrEq{"expires_at": nowNano()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return 0, fmt.Errorf("prune short-term rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// upsertKeyed inserts a JSON record keyed by its natural key, overwriting
// the record and updated_at on conflict.
func (s *SQLiteService) upsertKeyed(ctx context.Context, table string, keyCols []string, keyVals []any, record any) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}
	now := nowNano()
	cols := append(append([]string{}, keyCols...), "record", "created_at", "updated_at")
	vals := append(append([]any{}, keyVals...), blob, now, now)

	conflictCols := ""
	for i, col := range keyCols {
		if i > 0 {
			conflictCols += ", "
		}
		conflictCols += col
	}
	query := StatementBuilder().
		Insert(table).
		Columns(cols...).
		Values(vals...).
		Suffix(fmt.Sprintf(
			"ON CONFLICT(%s) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at",
			conflictCols))
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("upsert %s record: %w", table, err)
	}
	return nil
}

func (s *SQLiteService) listRecords(ctx context.Context, table, userID string) ([][]byte, error) {
	queryStr, args, err := StatementBuilder().
		Select("record").
		From(table).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, blob)
	}
	return out, rows.Err()
}
