package models

type Week struct {
	Topic      string   `json:"topic"`
	Goal       string   `json:"goal"`
	Objectives []string `json:"objectives,omitempty"`
	Activities []string `json:"activities,omitempty"`
}

type PlanData struct {
	Weeks   []Week `json:"weeks"`
	Summary string `json:"summary,omitempty"`
}

type Plan struct {
	ID                   string   `json:"id"`
	MainTopic            string   `json:"main_topic"`
	Data                 PlanData `json:"data"`
	CurrentTopic         string   `json:"current_topic"`
	ActiveWeekIndex      int      `json:"active_week_index"`
	Progress             float64  `json:"progress"`
	PendingReview        []string `json:"pending_review,omitempty"`
	LastAssessmentResult string   `json:"last_assessment_result,omitempty"`
}
