package contracts

// FacetType discriminates the facet union.
type FacetType string

const (
	FacetPerson   FacetType = "person"
	FacetActivity FacetType = "activity"
)

// PersonNeed captures what the user seems to want from this turn.
type PersonNeed string

const (
	NeedListen    PersonNeed = "listen"
	NeedPlan      PersonNeed = "plan"
	NeedEncourage PersonNeed = "encourage"
	NeedClarify   PersonNeed = "clarify"
	NeedVent      PersonNeed = "vent"
	NeedUnknown   PersonNeed = "unknown"
)

// PersonIntention is the coarse intention behind the message.
type PersonIntention string

const (
	IntentionVent    PersonIntention = "vent"
	IntentionPlan    PersonIntention = "plan"
	IntentionDecide  PersonIntention = "decide"
	IntentionReflect PersonIntention = "reflect"
	IntentionReport  PersonIntention = "report"
	IntentionUnknown PersonIntention = "unknown"
)

// ActivityEffort grades how heavy a mentioned activity is.
type ActivityEffort string

const (
	EffortLight  ActivityEffort = "light"
	EffortMedium ActivityEffort = "medium"
	EffortDeep   ActivityEffort = "deep"
)

// ActivityImportance grades how much an activity matters.
type ActivityImportance string

const (
	ImportanceLow      ActivityImportance = "low"
	ImportanceMedium   ActivityImportance = "medium"
	ImportanceHigh     ActivityImportance = "high"
	ImportanceCritical ActivityImportance = "critical"
)

// ActivityHorizon is the rough time horizon for an activity.
type ActivityHorizon string

const (
	HorizonNow   ActivityHorizon = "now"
	HorizonToday ActivityHorizon = "today"
	HorizonSoon  ActivityHorizon = "soon"
	HorizonLater ActivityHorizon = "later"
)

// PersonDimensions are the person-facet payload fields.
type PersonDimensions struct {
	Valence   *float64        `json:"valence,omitempty"` // [-1,1]
	Arousal   *float64        `json:"arousal,omitempty"` // [0,1]
	Need      PersonNeed      `json:"need,omitempty"`
	Intention PersonIntention `json:"intention,omitempty"`
	Emotion   string          `json:"emotion,omitempty"`
	Energy    string          `json:"energy,omitempty"` // low, neutral, high
}

// ActivityDimensions are the activity-facet payload fields.
type ActivityDimensions struct {
	Action          string             `json:"action,omitempty"`
	Horizon         ActivityHorizon    `json:"horizon,omitempty"`
	Effort          ActivityEffort     `json:"effort,omitempty"`
	Importance      ActivityImportance `json:"importance,omitempty"`
	DurationMinutes int                `json:"duration_minutes,omitempty"`
	Context         string             `json:"context,omitempty"`
}

// Extras keys used by the decision-template flow.
const (
	ExtraDecisionIntent = "decision_intent"
	ExtraDecisionSlots  = "decision_slots"
)

// Facet is a tagged variant extracted from a Message. Exactly one of Person
// or Activity is populated, matching Type. Extras carries free-form
// extractor output such as a decision-intent tag plus slots.
type Facet struct {
	SchemaVersion string              `json:"schema_version"`
	ID            string              `json:"id,omitempty"`
	MessageID     string              `json:"message_id"`
	Type          FacetType           `json:"type"`
	Confidence    float64             `json:"confidence"`
	Span          *Span               `json:"span,omitempty"`
	Person        *PersonDimensions   `json:"person,omitempty"`
	Activity      *ActivityDimensions `json:"activity,omitempty"`
	Extras        map[string]any      `json:"extras,omitempty"`
}

// DecisionIntent returns the decision-intent tag carried in Extras, if any.
func (f Facet) DecisionIntent() (string, bool) {
	if f.Extras == nil {
		return "", false
	}
	intent, ok := f.Extras[ExtraDecisionIntent].(string)
	if !ok || intent == "" {
		return "", false
	}
	return intent, true
}

// DecisionSlots returns the slot values carried alongside a decision intent.
func (f Facet) DecisionSlots() map[string]string {
	slots := map[string]string{}
	if f.Extras == nil {
		return slots
	}
	switch raw := f.Extras[ExtraDecisionSlots].(type) {
	case map[string]string:
		for k, v := range raw {
			slots[k] = v
		}
	case map[string]any:
		for k, v := range raw {
			if s, ok := v.(string); ok {
				slots[k] = s
			}
		}
	}
	return slots
}
