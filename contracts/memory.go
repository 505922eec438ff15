package contracts

// ShortTermInteraction is one entry of the bounded per-user short-term
// buffer. Newest entries sit at the front; the oldest silently drop once
// the buffer reaches its configured cap.
type ShortTermInteraction struct {
	SchemaVersion string  `json:"schema_version"`
	ID            string  `json:"id"`
	Timestamp     string  `json:"timestamp"`
	Message       Message `json:"message"`
	Facets        []Facet `json:"facets"`
}

// Provenance links an episodic record back to its source material.
type Provenance struct {
	SourceID string `json:"source_id"`
	Span     *Span  `json:"span,omitempty"`
}

// EpisodicRecord is a longer-lived memory entry in the per-user append log.
type EpisodicRecord struct {
	SchemaVersion string       `json:"schema_version"`
	ID            string       `json:"id"`
	When          string       `json:"when"`
	Text          string       `json:"text"`
	Facets        []Facet      `json:"facets"`
	Embedding     []float32    `json:"embedding,omitempty"`
	Outcome       string       `json:"outcome,omitempty"`
	Links         []string     `json:"links,omitempty"`
	Provenance    []Provenance `json:"provenance"`
}

// Evidence is one observation supporting a trait or preference.
type Evidence struct {
	SourceID string `json:"source_id"`
	Span     *Span  `json:"span,omitempty"`
	NotedAt  string `json:"noted_at,omitempty"`
}

// MaxEvidence caps the evidence list on traits and preferences at the most
// recent entries.
const MaxEvidence = 10

// SemanticTrait is a durable, confidence-weighted belief about the user.
// Only the learning engine creates or updates traits; the consolidation
// cycle decays and eventually removes them.
type SemanticTrait struct {
	SchemaVersion string     `json:"schema_version"`
	Key           string     `json:"key"`
	Value         string     `json:"value"`
	Confidence    float64    `json:"confidence"`
	FirstSeen     string     `json:"first_seen"`
	LastUpdated   string     `json:"last_updated"`
	Evidence      []Evidence `json:"evidence"`
}

// PreferenceScope groups preferences by the area of life they apply to.
type PreferenceScope string

const (
	ScopeTone      PreferenceScope = "tone"
	ScopeTime      PreferenceScope = "time"
	ScopeWorkstyle PreferenceScope = "workstyle"
	ScopeHealth    PreferenceScope = "health"
	ScopeLearning  PreferenceScope = "learning"
	ScopeOther     PreferenceScope = "other"
)

// PreferenceRecord is a scoped key/value fact about how the user likes
// things done. Same shape as a trait but never decayed.
type PreferenceRecord struct {
	SchemaVersion string          `json:"schema_version"`
	Key           string          `json:"key"`
	Value         string          `json:"value"`
	Scope         PreferenceScope `json:"scope"`
	Confidence    float64         `json:"confidence"`
	FirstSeen     string          `json:"first_seen"`
	LastUpdated   string          `json:"last_updated"`
	Evidence      []Evidence      `json:"evidence"`
}

// IdentityEdge is a labeled relation between two identity concepts,
// e.g. ("self", "running", "values").
type IdentityEdge struct {
	SchemaVersion string   `json:"schema_version"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Relationship  string   `json:"relationship"`
	Strength      *float64 `json:"strength,omitempty"`
	Recency       string   `json:"recency,omitempty"`
}
