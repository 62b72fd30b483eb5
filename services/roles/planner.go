package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"learncoach/models"
	"learncoach/services/generate"
	"learncoach/store"
)

const PLANNER_SYSTEM_PROMPT = "Curriculum planner - produce JSON plan"

// Planner turns a topic into a multi-week learning plan.
type Planner struct {
	userID string
	gen    generate.ContentGenerator
	store  store.Store
}

func NewPlanner(gen generate.ContentGenerator, s store.Store, userID string) *Planner {
	return &Planner{userID: userID, gen: gen, store: s}
}

type PlanRequest struct {
	Topic          string                    `json:"topic"`
	Request        string                    `json:"request,omitempty"`
	AssessmentData *models.AssessmentSession `json:"assessment,omitempty"`
}

func (p *Planner) buildPrompt(req PlanRequest) string {
	context := map[string]any{
		"user_id":    p.userID,
		"topic":      req.Topic,
		"assessment": req.AssessmentData,
	}
	ctxJSON, _ := json.Marshal(context)
	return fmt.Sprintf(
		"You are a curriculum planner. Produce a 4-week learning plan for the topic provided.\n\n"+
			"Return a JSON object matching this schema:\n%s\n\n"+
			"Each week needs keys: topic, goal, activities. Include a top-level 'summary'.\n\n"+
			"Context:\n%s",
		schemaFor[models.PlanData](), ctxJSON,
	)
}

// Run generates a plan, falling back to a deterministic 4-week outline when
// the generator output cannot be parsed. Never returns an empty plan.
func (p *Planner) Run(ctx context.Context, req PlanRequest) models.PlanData {
	topic := req.Topic
	if topic == "" {
		topic = req.Request
	}
	if topic == "" {
		topic = "General Topic"
	}
	req.Topic = topic

	var plan models.PlanData
	resp, err := p.gen.Generate(ctx, p.buildPrompt(req), PLANNER_SYSTEM_PROMPT)
	if err != nil {
		log.Printf("[ERROR] Planner generation failed: %v", err)
	} else if !decodeJSON(resp, &plan) {
		log.Printf("[ERROR] Planner returned unparseable plan for %q", topic)
	}

	if len(plan.Weeks) == 0 {
		plan = fallbackPlan(topic)
	}

	// Persist a simple current plan for other roles to consult.
	if err := p.store.Put(fmt.Sprintf("user:%s", p.userID), "current_plan", plan); err != nil {
		log.Printf("[ERROR] Failed to persist plan: %v", err)
	}

	return plan
}

func fallbackPlan(topic string) models.PlanData {
	return models.PlanData{
		Weeks: []models.Week{
			{
				Topic:      fmt.Sprintf("%s Basics", topic),
				Goal:       fmt.Sprintf("Understand key concepts of %s", topic),
				Activities: []string{"Reading", "Video", "Example"},
			},
			{
				Topic:      fmt.Sprintf("Intermediate %s", topic),
				Goal:       fmt.Sprintf("Practice and apply %s", topic),
				Activities: []string{"Project", "Exercises"},
			},
			{
				Topic:      fmt.Sprintf("Advanced %s", topic),
				Goal:       fmt.Sprintf("Build a real-world project using %s", topic),
				Activities: []string{"Capstone project"},
			},
			{
				Topic:      fmt.Sprintf("Revision & Assessment for %s", topic),
				Goal:       "Consolidate and test knowledge",
				Activities: []string{"Quiz", "Review"},
			},
		},
		Summary: fmt.Sprintf("A 4-week plan to learn %s.", topic),
	}
}
