package models

// OrchestratorState is the aggregate root for one user's dialogue state. It
// is loaded from the session on startup and written back wholesale after
// every turn. No omitempty: the session store merges keys, so a cleared
// field must serialize as null to overwrite its old value.
type OrchestratorState struct {
	Plans                map[string]*Plan     `json:"plans"`
	ActivePlanID         string               `json:"active_plan_id"`
	LastAction           string               `json:"last_action"`
	AssessmentInProgress bool                 `json:"assessment_in_progress"`
	AssessmentData       *AssessmentSession   `json:"assessment_data"`
	ProposedTopic        string               `json:"proposed_topic"`
	PendingReview        []string             `json:"pending_review"`
	LastAssessmentResult string               `json:"last_assessment_result"`
	LastAssessmentData   *AssessmentSession   `json:"last_assessment_data"`
	Chats                map[string][]Message `json:"chats"`
}

func NewOrchestratorState() *OrchestratorState {
	return &OrchestratorState{
		Plans: make(map[string]*Plan),
		Chats: make(map[string][]Message),
	}
}

// ActivePlan resolves the active plan, or nil when none is selected.
func (s *OrchestratorState) ActivePlan() *Plan {
	if s.ActivePlanID == "" {
		return nil
	}
	return s.Plans[s.ActivePlanID]
}
