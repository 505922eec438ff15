package contracts

// Objective is the single conversational objective selected for a turn.
type Objective string

const (
	ObjectiveListen    Objective = "listen"
	ObjectiveReflect   Objective = "reflect"
	ObjectiveClarify   Objective = "clarify"
	ObjectivePlan      Objective = "plan"
	ObjectiveEncourage Objective = "encourage"
)

// StepType discriminates the plan-step union.
type StepType string

const (
	StepReflection   StepType = "reflection"
	StepQuestion     StepType = "question"
	StepActionCreate StepType = "action.create"
	StepBlockPropose StepType = "calendar.block.propose"
	StepNudge        StepType = "nudge.schedule"
)

// ReflectionStep is a short reflective statement rendered verbatim.
type ReflectionStep struct {
	TextTemplate string `json:"text_template"`
}

// QuestionStep asks the user something, either to confirm or to learn.
type QuestionStep struct {
	Target   string `json:"target"`  // person or activity
	Purpose  string `json:"purpose"` // confirm or learn
	Template string `json:"template"`
}

// TaskDraft is the payload of an action.create step.
type TaskDraft struct {
	Title string   `json:"title"`
	Due   string   `json:"due,omitempty"`
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// BlockDraft is the payload of a calendar.block.propose step.
type BlockDraft struct {
	Title           string `json:"title"`
	Start           string `json:"start,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// NudgeDraft is the payload of a nudge.schedule step.
type NudgeDraft struct {
	Title   string  `json:"title"`
	SendAt  string  `json:"send_at,omitempty"`
	Channel Channel `json:"channel,omitempty"`
}

// PlanStep is a tagged variant; exactly one payload field matching Type is
// populated. Consumers switch exhaustively on Type.
type PlanStep struct {
	Type       StepType        `json:"type"`
	Reflection *ReflectionStep `json:"reflection,omitempty"`
	Question   *QuestionStep   `json:"question,omitempty"`
	Task       *TaskDraft      `json:"task,omitempty"`
	Block      *BlockDraft     `json:"block,omitempty"`
	Nudge      *NudgeDraft     `json:"nudge,omitempty"`
}

// Routable reports whether the step carries a side effect for the action
// router (task creation, calendar proposal or nudge scheduling).
func (s PlanStep) Routable() bool {
	switch s.Type {
	case StepActionCreate, StepBlockPropose, StepNudge:
		return true
	default:
		return false
	}
}

// LearningGoal is an optional hypothesis or micro-question the plan wants
// answered over time.
type LearningGoal struct {
	Hypothesis    string `json:"hypothesis,omitempty"`
	MicroQuestion string `json:"micro_question,omitempty"`
}

// FollowupWindow schedules a later check-in related to this plan.
type FollowupWindow struct {
	When   string `json:"when"`
	Reason string `json:"reason,omitempty"`
}

// LearningHint is a (key, value) belief candidate attached to a plan for the
// learning engine to fold into the semantic trait store.
type LearningHint struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PlanGraph is the selected conversational plan for one turn.
type PlanGraph struct {
	SchemaVersion  string          `json:"schema_version"`
	ObjectiveNow   Objective       `json:"objective_now"`
	LearningGoal   *LearningGoal   `json:"learning_goal,omitempty"`
	Steps          []PlanStep      `json:"steps"`
	FollowupWindow *FollowupWindow `json:"followup_window,omitempty"`
}
