package contracts

// Event names published on the bus over one pipeline run.
const (
	EventMessageIngested = "message.ingested"
	EventFacetExtracted  = "facet.extracted"
	EventContextReady    = "context.ready"
	EventPlanReady       = "plan.ready"
	EventReplyRendered   = "reply.rendered"
	EventActionRouted    = "action.routed"
	EventMemoryUpdated   = "memory.updated"
)

// MessageIngested starts a pipeline run for one message.
type MessageIngested struct {
	Message Message `json:"message"`
}

// FacetExtracted carries the extractor output for a message.
type FacetExtracted struct {
	MessageID string  `json:"message_id"`
	Facets    []Facet `json:"facets"`
}

// ContextReady carries the assembled context pack.
type ContextReady struct {
	MessageID string      `json:"message_id"`
	Context   ContextPack `json:"context"`
}

// PlanReady carries the plan plus the context it was planned against and
// any planner extras such as learning hints.
type PlanReady struct {
	MessageID string         `json:"message_id"`
	Context   ContextPack    `json:"context"`
	Plan      PlanGraph      `json:"plan"`
	Hints     []LearningHint `json:"hints,omitempty"`
}

// Reply is the rendered response for one turn.
type Reply struct {
	Text     string            `json:"text"`
	Tone     string            `json:"tone"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReplyRendered carries the final reply for a turn.
type ReplyRendered struct {
	MessageID string `json:"message_id"`
	Response  Reply  `json:"response"`
}

// RoutedTask summarizes a created task.
type RoutedTask struct {
	Title string `json:"title"`
	Due   string `json:"due,omitempty"`
}

// RoutedBlock summarizes a proposed calendar block.
type RoutedBlock struct {
	Title string `json:"title"`
	Start string `json:"start,omitempty"`
}

// RoutedNudge summarizes a scheduled nudge.
type RoutedNudge struct {
	Title  string `json:"title"`
	SendAt string `json:"send_at,omitempty"`
}

// ActionRouted is the rollup of side effects dispatched for one plan. It is
// only published when at least one of the lists is non-empty.
type ActionRouted struct {
	MessageID string        `json:"message_id"`
	Tasks     []RoutedTask  `json:"tasks,omitempty"`
	Blocks    []RoutedBlock `json:"blocks,omitempty"`
	Nudges    []RoutedNudge `json:"nudges,omitempty"`
}

// MemoryUpdated reports the memory writes made for one turn.
type MemoryUpdated struct {
	MessageID string          `json:"message_id"`
	ShortTerm []string        `json:"short_term,omitempty"`
	Episodic  []string        `json:"episodic,omitempty"`
	Traits    []SemanticTrait `json:"traits,omitempty"`
}
