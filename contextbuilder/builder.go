// Package contextbuilder assembles the per-turn context pack: short-term
// buffer, diversity-guarded episodic hits, semantic profile, rhythm signals
// and the upcoming schedule window, fused under a token budget.
package contextbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/memory"
	"github.com/sakhilabs/sakhid/schedule"
)

// Recipe tunes how much of each memory tier a pack pulls in.
type Recipe struct {
	WorkingLimit      int
	EpisodicLimit     int
	EpisodicDiversity float64
}

// DefaultRecipe matches the tuned production defaults.
var DefaultRecipe = Recipe{
	WorkingLimit:      5,
	EpisodicLimit:     5,
	EpisodicDiversity: 0.6,
}

// scheduleLookahead bounds the schedule window pulled into a pack.
const scheduleLookahead = 72 * time.Hour

// Input names everything a single build needs.
type Input struct {
	Message      contracts.Message
	UserID       string
	TurnID       string
	Now          time.Time
	TokensBudget int
}

// Builder fuses memory, schedule and rhythm reads into a validated pack.
type Builder struct {
	memory   memory.Service
	schedule schedule.Store
	rhythms  schedule.RhythmEngine
	embedder memory.Embedder
	recipe   Recipe
	logger   zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRecipe overrides the default recipe.
func WithRecipe(r Recipe) Option {
	return func(b *Builder) { b.recipe = r }
}

// WithEmbedder sets the embedding client used to score episodic relevance.
func WithEmbedder(e memory.Embedder) Option {
	return func(b *Builder) { b.embedder = e }
}

// NewBuilder wires a Builder over its read-side collaborators.
func NewBuilder(mem memory.Service, sched schedule.Store, rhythms schedule.RhythmEngine, logger zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{
		memory:   mem,
		schedule: sched,
		rhythms:  rhythms,
		embedder: memory.NullEmbedder{},
		recipe:   DefaultRecipe,
		logger:   logger.With().Str("component", "contextBuilder").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles and validates a context pack for one turn. The five
// reads fan out concurrently; any failing read fails the build.
func (b *Builder) Build(ctx context.Context, input Input) (contracts.ContextPack, error) {
	recipe := b.recipe
	queryEmbedding := b.safeEmbed(ctx, input.Message.Content.Text)

	var (
		working    []contracts.ShortTermInteraction
		candidates []contracts.EpisodicRecord
		profile    contracts.SemanticProfile
		rhythms    contracts.Rhythms
		window     contracts.ScheduleWindow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		working, err = b.memory.GetShortTerm(gctx, input.UserID, recipe.WorkingLimit)
		return err
	})
	g.Go(func() error {
		var err error
		// Oversample so the diversity guard has something to discard.
		candidates, err = b.memory.SearchEpisodic(gctx, input.UserID, input.Message.Content.Text, recipe.EpisodicLimit*3)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = b.semanticProfile(gctx, input.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		rhythms, err = b.rhythms.GetRhythms(gctx, input.UserID, input.Now)
		return err
	})
	g.Go(func() error {
		var err error
		window, err = b.schedule.GetWindow(gctx, input.UserID, input.Now, input.Now.Add(scheduleLookahead))
		return err
	})
	if err := g.Wait(); err != nil {
		return contracts.ContextPack{}, fmt.Errorf("assemble context: %w", err)
	}

	hits := applyDiversityGuard(candidates, recipe.EpisodicLimit, recipe.EpisodicDiversity)

	pack := contracts.ContextPack{
		SchemaVersion: contracts.SchemaVersion,
		UserID:        input.UserID,
		TurnID:        input.TurnID,
		Now: contracts.NowInfo{
			Clock:   input.Now.Format(time.RFC3339),
			Weekday: input.Now.Weekday().String(),
			Season:  seasonOf(input.Now),
		},
		Rhythms: rhythms,
		Working: lo.Map(working, func(item contracts.ShortTermInteraction, _ int) contracts.RecentItem {
			return contracts.RecentItem{
				ID:        item.ID,
				MessageID: item.Message.ID,
				Text:      item.Message.Content.Text,
				Timestamp: item.Timestamp,
				Facets:    item.Facets,
			}
		}),
		EpisodicHits: lo.Map(hits, func(rec contracts.EpisodicRecord, _ int) contracts.EpisodicRef {
			ref := contracts.EpisodicRef{
				ID:      rec.ID,
				When:    rec.When,
				Summary: rec.Text,
			}
			if len(rec.Links) > 0 {
				ref.Link = rec.Links[0]
			}
			if len(queryEmbedding) > 0 && len(rec.Embedding) > 0 {
				rel := contracts.Clamp01(memory.CosineSimilarity(queryEmbedding, rec.Embedding))
				ref.Relevance = &rel
			}
			return ref
		}),
		SemanticProfile: profile,
		ScheduleWindow:  window,
		Goals: contracts.Goals{
			ShortTerm: []string{},
			LongTerm:  []string{},
		},
		Constraints:    extractConstraints(input.Message),
		TokensEstimate: estimateTokens(working, hits, profile, input.TokensBudget),
	}

	if err := contracts.ValidateContextPack(&pack); err != nil {
		return contracts.ContextPack{}, err
	}
	return pack, nil
}

// semanticProfile flattens traits, preferences and identity edges into the
// pack shape. Preferences key as "scope.key"; values come from "values"
// edges off the self node.
func (b *Builder) semanticProfile(ctx context.Context, userID string) (contracts.SemanticProfile, error) {
	profile := contracts.SemanticProfile{
		Traits:      map[string]any{},
		Preferences: map[string]any{},
		Values:      []string{},
	}

	traits, err := b.memory.ListSemanticTraits(ctx, userID)
	if err != nil {
		return profile, err
	}
	for _, trait := range traits {
		profile.Traits[trait.Key] = trait.Value
	}

	prefs, err := b.memory.ListPreferences(ctx, userID)
	if err != nil {
		return profile, err
	}
	for _, pref := range prefs {
		profile.Preferences[fmt.Sprintf("%s.%s", pref.Scope, pref.Key)] = pref.Value
	}

	edges, err := b.memory.ListIdentityEdges(ctx, userID)
	if err != nil {
		return profile, err
	}
	for _, edge := range edges {
		if edge.From == "self" && edge.Relationship == "values" {
			profile.Values = append(profile.Values, edge.To)
		}
	}
	return profile, nil
}

// safeEmbed never fails a build: embedding problems degrade relevance
// scoring, nothing else.
func (b *Builder) safeEmbed(ctx context.Context, text string) []float32 {
	vector, err := b.embedder.Embed(ctx, text)
	if err != nil {
		b.logger.Warn().Err(err).Msg("embedding unavailable, skipping relevance scoring")
		return nil
	}
	return vector
}

// applyDiversityGuard walks candidates in order and drops any record whose
// fingerprint overlaps an already-selected one beyond the threshold.
func applyDiversityGuard(records []contracts.EpisodicRecord, limit int, threshold float64) []contracts.EpisodicRecord {
	selected := make([]contracts.EpisodicRecord, 0, limit)
	var seen []string
	for _, record := range records {
		fp := fingerprint(record.Text)
		dup := false
		for _, entry := range seen {
			if wordOverlap(entry, fp) > threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, fp)
		selected = append(selected, record)
		if len(selected) >= limit {
			break
		}
	}
	return selected
}

func fingerprint(text string) string {
	runes := []rune(text)
	if len(runes) > 80 {
		runes = runes[:80]
	}
	return strings.ToLower(string(runes))
}

// wordOverlap is |words(a) ∩ words(b)| / max(|words(a)|, 1).
func wordOverlap(a, b string) float64 {
	setA := lo.Uniq(strings.Fields(a))
	setB := lo.Uniq(strings.Fields(b))
	shared := len(lo.Intersect(setA, setB))
	return float64(shared) / math.Max(float64(len(setA)), 1)
}

func seasonOf(now time.Time) string {
	switch now.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// extractConstraints pulls contact limits out of the message metadata:
// extras["dnd"] (bool) and extras["quiet_hours"] ("HH:MM-HH:MM" strings).
func extractConstraints(msg contracts.Message) contracts.Constraints {
	constraints := contracts.Constraints{}
	extras := msg.Metadata.Extras
	if extras == nil {
		return constraints
	}
	if dnd, ok := extras["dnd"].(bool); ok {
		constraints.DoNotDisturb = &dnd
	}
	if raw, ok := extras["quiet_hours"]; ok {
		constraints.QuietHours = parseQuietHours(raw)
	}
	return constraints
}

func parseQuietHours(raw any) []contracts.QuietWindow {
	var windows []contracts.QuietWindow
	appendRange := func(s string) {
		parts := strings.SplitN(s, "-", 2)
		if len(parts) != 2 {
			return
		}
		windows = append(windows, contracts.QuietWindow{
			strings.TrimSpace(parts[0]),
			strings.TrimSpace(parts[1]),
		})
	}
	switch v := raw.(type) {
	case string:
		appendRange(v)
	case []string:
		for _, s := range v {
			appendRange(s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				appendRange(s)
			}
		}
	}
	return windows
}

func charTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4))
}

// estimateTokens is a cheap chars/4 heuristic over the pack's textual
// payload, clamped to the budget when one is given.
func estimateTokens(working []contracts.ShortTermInteraction, episodic []contracts.EpisodicRecord, profile contracts.SemanticProfile, budget int) int {
	total := 0
	for _, item := range working {
		total += charTokens(item.Message.Content.Text)
	}
	for _, rec := range episodic {
		total += charTokens(rec.Text)
	}
	if blob, err := json.Marshal(profile); err == nil {
		total += len(blob) / 4
	}
	if budget > 0 && total > budget {
		return budget
	}
	return total
}
