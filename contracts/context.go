package contracts

// NowInfo is the current-time metadata assembled for a turn.
type NowInfo struct {
	Clock   string `json:"clock"` // RFC3339
	Weekday string `json:"weekday"`
	Season  string `json:"season,omitempty"`
}

// Rhythms are body/attention signals supplied by the rhythm engine.
type Rhythms struct {
	CircadianPhase     string   `json:"circadian_phase,omitempty"`
	BreathRate         *float64 `json:"breath_rate,omitempty"`
	AwarenessCoherence *float64 `json:"awareness_coherence,omitempty"` // [0,1]
}

// RecentItem is one short-term interaction flattened for the context pack.
type RecentItem struct {
	ID        string  `json:"id"`
	MessageID string  `json:"message_id,omitempty"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Facets    []Facet `json:"facets,omitempty"`
}

// EpisodicRef is one diversity-guarded episodic hit.
type EpisodicRef struct {
	ID        string   `json:"id"`
	When      string   `json:"when"`
	Summary   string   `json:"summary"`
	Relevance *float64 `json:"relevance,omitempty"`
	Link      string   `json:"link,omitempty"`
}

// SemanticProfile is the flattened durable belief set about the user.
type SemanticProfile struct {
	Traits      map[string]any `json:"traits"`
	Preferences map[string]any `json:"preferences"`
	Values      []string       `json:"values"`
}

// ScheduleEvent is one calendar event inside the schedule window.
type ScheduleEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"` // focus, personal, meeting, health, other
}

// FreeBlock is an open stretch of time, optionally tagged with energy level.
type FreeBlock struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Energy string `json:"energy,omitempty"` // low, medium, high
}

// ScheduleWindow bundles events and free blocks over a time range.
type ScheduleWindow struct {
	Events     []ScheduleEvent `json:"events"`
	FreeBlocks []FreeBlock     `json:"free_blocks"`
}

// Goals are the user's short and long term goal lists.
type Goals struct {
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
}

// QuietWindow is a [start, end] clock pair, e.g. {"22:00", "06:00"}.
type QuietWindow [2]string

// Constraints limit how and when the system may reach out.
type Constraints struct {
	QuietHours   []QuietWindow `json:"quiet_hours,omitempty"`
	DoNotDisturb *bool         `json:"do_not_disturb,omitempty"`
	EnergyGuards []string      `json:"energy_guards,omitempty"`
}

// ContextPack is the per-turn situational snapshot fused from memory,
// schedule and rhythm signals. It is built fresh every turn and never
// persisted as-is.
type ContextPack struct {
	SchemaVersion   string          `json:"schema_version"`
	UserID          string          `json:"user_id"`
	TurnID          string          `json:"turn_id"`
	Now             NowInfo         `json:"now"`
	Rhythms         Rhythms         `json:"rhythms"`
	Working         []RecentItem    `json:"working"`
	EpisodicHits    []EpisodicRef   `json:"episodic_hits"`
	SemanticProfile SemanticProfile `json:"semantic_profile"`
	ScheduleWindow  ScheduleWindow  `json:"schedule_window"`
	Goals           Goals           `json:"goals"`
	Constraints     Constraints     `json:"constraints"`
	TokensEstimate  int             `json:"tokens_estimate"`
}
