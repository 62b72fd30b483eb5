package models

type PracticeProblem struct {
	Question   string `json:"q"`
	Difficulty string `json:"difficulty,omitempty"`
}

type LessonContent struct {
	Overview         string            `json:"overview"`
	WorkedExample    string            `json:"worked_example,omitempty"`
	PracticeProblems []PracticeProblem `json:"practice_problems,omitempty"`
}

type LessonResult struct {
	Topic       string        `json:"topic"`
	Content     LessonContent `json:"lesson_content"`
	GeneratedAt string        `json:"generated_at"`
}

type SkillProfile struct {
	SkillID       string  `json:"skill_id"`
	MasteryScore  float64 `json:"mastery_score"`
	LastPracticed string  `json:"last_practiced"`
}

type ProgressResult struct {
	SkillID    string  `json:"skill_id"`
	NewMastery float64 `json:"new_mastery"`
	Delta      float64 `json:"delta"`
	Trend      string  `json:"trend_summary"`
}

type CoachResult struct {
	Message string   `json:"message"`
	Routine []string `json:"routine"`
}

type MemoryItem struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}
