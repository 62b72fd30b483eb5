package roles

import (
	"context"
	"fmt"
	"log"

	"learncoach/models"
	"learncoach/services/generate"
)

const COACH_SYSTEM_PROMPT = "Motivational coach - produce JSON encouragement"

// Coach turns a progress snapshot into a short piece of encouragement and
// a small practice routine.
type Coach struct {
	userID string
	gen    generate.ContentGenerator
}

func NewCoach(gen generate.ContentGenerator, userID string) *Coach {
	return &Coach{userID: userID, gen: gen}
}

func (c *Coach) Run(ctx context.Context, progress models.ProgressResult) models.CoachResult {
	prompt := fmt.Sprintf(`A learner practicing '%s' just scored a mastery of %.3f (trend: %s).
Write a short encouraging message and suggest a 2-step practice routine.
Return ONLY JSON matching this schema:
%s`, progress.SkillID, progress.NewMastery, progress.Trend, schemaFor[models.CoachResult]())

	resp, err := c.gen.Generate(ctx, prompt, COACH_SYSTEM_PROMPT)
	if err != nil {
		log.Printf("[ERROR] Coach generation failed: %v", err)
		return fallbackCoach()
	}

	var result models.CoachResult
	if !decodeJSON(resp, &result) || result.Message == "" {
		return fallbackCoach()
	}
	if len(result.Routine) == 0 {
		result.Routine = fallbackCoach().Routine
	}
	return result
}

func fallbackCoach() models.CoachResult {
	return models.CoachResult{
		Message: "Keep going — small steps add up!",
		Routine: []string{"Study 10 minutes", "Review examples"},
	}
}
