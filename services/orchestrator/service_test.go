package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"learncoach/models"
	"learncoach/store"
)

type stubGenerator struct {
	response string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	return s.response, nil
}

// panicGenerator panics once armed, simulating a backend crash mid-turn.
type panicGenerator struct {
	armed bool
}

func (p *panicGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	if p.armed {
		panic("backend exploded")
	}
	return "plain text", nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.FileStore) {
	t.Helper()
	kv := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	return New(kv, &stubGenerator{response: "plain text"}, "u1"), kv
}

func TestPlanCreationFromLearnRequest(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	resp := o.Run(context.Background(), "I want to learn fractions")

	if !strings.Contains(resp, "new learning path") || !strings.Contains(resp, "**Fractions**") {
		t.Errorf("unexpected plan creation response: %q", resp)
	}
	plan := o.state.ActivePlan()
	if plan == nil {
		t.Fatal("no active plan after creation")
	}
	if plan.ActiveWeekIndex != 0 {
		t.Errorf("active week index = %d, want 0", plan.ActiveWeekIndex)
	}
	if plan.CurrentTopic != plan.Data.Weeks[0].Topic {
		t.Errorf("current topic = %q, want first week topic %q", plan.CurrentTopic, plan.Data.Weeks[0].Topic)
	}
	if len(plan.Data.Weeks) != 4 {
		t.Errorf("fallback plan has %d weeks, want 4", len(plan.Data.Weeks))
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	kv := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	gen := &stubGenerator{response: "plain text"}

	first := New(kv, gen, "u1")
	first.Run(context.Background(), "I want to learn fractions")
	planID := first.state.ActivePlanID

	second := New(kv, gen, "u1")
	if second.state.ActivePlanID != planID {
		t.Errorf("restored active plan = %q, want %q", second.state.ActivePlanID, planID)
	}
	if len(second.state.Plans) != 1 {
		t.Errorf("restored %d plans, want 1", len(second.state.Plans))
	}
}

func TestStateSavedWhenTurnPanics(t *testing.T) {
	kv := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	gen := &panicGenerator{}

	first := New(kv, gen, "u1")
	first.Run(context.Background(), "I want to learn fractions")
	first.state.PendingReview = []string{"Simplify 6/8."}
	first.saveState()

	// the review lesson clears pending_review before the backend blows up
	gen.armed = true
	resp := first.Run(context.Background(), "yes")
	if !strings.Contains(resp, "I encountered an error") {
		t.Fatalf("unexpected panic response: %q", resp)
	}
	if len(first.state.PendingReview) != 0 {
		t.Fatalf("pending review not cleared in memory: %v", first.state.PendingReview)
	}

	gen.armed = false
	second := New(kv, gen, "u1")
	if len(second.state.PendingReview) != 0 {
		t.Errorf("restart resurrected pending review: %v", second.state.PendingReview)
	}
}

func bulkQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{
			QID:      fmt.Sprintf("q%d", i+1),
			Prompt:   fmt.Sprintf("Question %d", i+1),
			Expected: fmt.Sprintf("answer%d", i+1),
		}
	}
	return questions
}

func bulkSubmission(questions []models.Question, correct int) string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, q := range questions {
		if i > 0 {
			sb.WriteString(", ")
		}
		answer := "totally different"
		if i < correct {
			answer = q.Expected
		}
		fmt.Fprintf(&sb, "%q: %q", q.QID, answer)
	}
	sb.WriteString("}")
	return sb.String()
}

func startBulk(o *Orchestrator, questions []models.Question) {
	o.state.AssessmentInProgress = true
	o.state.AssessmentData = &models.AssessmentSession{
		Mode:      models.AssessmentModeBulk,
		Topic:     "Fractions",
		Questions: questions,
		Answers:   map[string]string{},
	}
}

func TestBulkAssessmentPassAtExactThreshold(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Run(context.Background(), "I want to learn fractions")

	questions := bulkQuestions(10)
	startBulk(o, questions)

	resp := o.Run(context.Background(), bulkSubmission(questions, 7))

	if !strings.Contains(resp, "Congratulations") {
		t.Errorf("score of exactly 0.70 should pass, got: %q", resp)
	}
	if o.state.LastAssessmentResult != "pass" {
		t.Errorf("last assessment result = %q, want pass", o.state.LastAssessmentResult)
	}
	if o.state.AssessmentInProgress {
		t.Error("assessment still marked in progress")
	}
	if o.state.PendingReview != nil {
		t.Errorf("pending review = %v, want nil", o.state.PendingReview)
	}
	plan := o.state.ActivePlan()
	if plan.ActiveWeekIndex != 1 {
		t.Errorf("week index = %d, want 1 after pass", plan.ActiveWeekIndex)
	}
	if !strings.Contains(resp, "Next Up:") {
		t.Errorf("pass response missing next week: %q", resp)
	}
}

func TestBulkAssessmentFailBelowThreshold(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Run(context.Background(), "I want to learn fractions")

	questions := bulkQuestions(10)
	startBulk(o, questions)

	resp := o.Run(context.Background(), bulkSubmission(questions, 6))

	if !strings.Contains(resp, "Review Needed") {
		t.Errorf("score of 0.60 should fail, got: %q", resp)
	}
	if o.state.LastAssessmentResult != "fail" {
		t.Errorf("last assessment result = %q, want fail", o.state.LastAssessmentResult)
	}
	if len(o.state.PendingReview) != 4 {
		t.Errorf("pending review has %d entries, want 4", len(o.state.PendingReview))
	}
	plan := o.state.ActivePlan()
	if plan.ActiveWeekIndex != 0 {
		t.Errorf("week index = %d, want 0 after fail", plan.ActiveWeekIndex)
	}
	if o.state.LastAssessmentData == nil {
		t.Error("last assessment data not retained")
	}
}

func TestBulkAssessmentPassOnLastWeekCompletesPlan(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	planID := o.CreatePlan("Fractions", models.PlanData{
		Weeks: []models.Week{{Topic: "Basics"}, {Topic: "Advanced"}},
	})
	o.SwitchWeek(planID, 1)

	questions := bulkQuestions(4)
	startBulk(o, questions)

	resp := o.Run(context.Background(), bulkSubmission(questions, 4))
	if !strings.Contains(resp, "completed the entire learning path") {
		t.Errorf("expected plan completion, got: %q", resp)
	}
}

func TestInteractiveQuizSequencing(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.state.AssessmentInProgress = true
	o.state.AssessmentData = &models.AssessmentSession{
		Mode:  models.AssessmentModeInteractive,
		Topic: "Fractions",
		Questions: []models.Question{
			{QID: "q1", Prompt: "What is 3/4 as a decimal?", Expected: "0.75"},
			{QID: "q2", Prompt: "Simplify 6/8.", Expected: "3/4"},
		},
		Answers: map[string]string{},
	}

	resp := o.Run(context.Background(), "0.75")
	if !strings.Contains(resp, "Question 2/2") {
		t.Fatalf("expected second question, got: %q", resp)
	}
	if o.state.AssessmentData.Answers["q1"] != "0.75" {
		t.Errorf("first answer not recorded: %v", o.state.AssessmentData.Answers)
	}

	resp = o.Run(context.Background(), "3/4")
	if !strings.Contains(resp, "Quiz Complete!") {
		t.Fatalf("expected graded summary, got: %q", resp)
	}
	if !strings.Contains(resp, "Score:** 100%") {
		t.Errorf("expected perfect score, got: %q", resp)
	}
	if o.state.AssessmentInProgress {
		t.Error("assessment still marked in progress")
	}
	if o.state.AssessmentData != nil {
		t.Error("assessment data not cleared")
	}
}

func TestInteractiveQuizFailQueuesReview(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.state.AssessmentInProgress = true
	o.state.AssessmentData = &models.AssessmentSession{
		Mode:      models.AssessmentModeInteractive,
		Topic:     "Fractions",
		Questions: bulkQuestions(2),
		Answers:   map[string]string{},
	}

	o.Run(context.Background(), "totally different")
	resp := o.Run(context.Background(), "also different")

	if !strings.Contains(resp, "Review Recommended") {
		t.Fatalf("expected review recommendation, got: %q", resp)
	}
	if len(o.state.PendingReview) != 2 {
		t.Errorf("pending review has %d entries, want 2", len(o.state.PendingReview))
	}

	review := o.Run(context.Background(), "review")
	if !strings.Contains(review, "Targeted Review") {
		t.Errorf("expected targeted review, got: %q", review)
	}
	if o.state.PendingReview != nil {
		t.Error("pending review not cleared after targeted review")
	}
	if o.state.LastAction != "reviewing" {
		t.Errorf("last action = %q, want reviewing", o.state.LastAction)
	}
}

func TestFinishedAfterPassDoesNotRetake(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}, {Topic: "Advanced"}}})
	o.state.LastAssessmentResult = "pass"

	resp := o.Run(context.Background(), "finished")
	if !strings.Contains(resp, "already completed this week") {
		t.Errorf("expected idempotence guard, got: %q", resp)
	}
	if o.state.AssessmentInProgress {
		t.Error("no new assessment should start")
	}
}

func TestContinueAfterPassAdvancesWeek(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}, {Topic: "Advanced"}}})
	o.state.LastAssessmentResult = "pass"

	resp := o.Run(context.Background(), "continue")

	plan := o.state.ActivePlan()
	if plan.ActiveWeekIndex != 1 {
		t.Errorf("week index = %d, want 1", plan.ActiveWeekIndex)
	}
	if plan.CurrentTopic != "Advanced" {
		t.Errorf("current topic = %q, want Advanced", plan.CurrentTopic)
	}
	if o.state.LastAssessmentResult != "" {
		t.Errorf("pass flag not reset: %q", o.state.LastAssessmentResult)
	}
	if !strings.Contains(resp, "### Lesson: Advanced") {
		t.Errorf("expected lesson for new week, got: %q", resp)
	}
}

func TestContinueOnLastWeekReportsCompletion(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}}})
	o.state.LastAssessmentResult = "pass"

	resp := o.Run(context.Background(), "continue")
	if !strings.Contains(resp, "completed all weeks") {
		t.Errorf("expected completion message, got: %q", resp)
	}
}

func TestSwitchWeekBounds(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	planID := o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}, {Topic: "Advanced"}}})

	if o.SwitchWeek(planID, 99) {
		t.Error("out-of-range week switch should fail")
	}
	if got := o.state.Plans[planID].ActiveWeekIndex; got != 0 {
		t.Errorf("week index changed to %d on invalid switch", got)
	}

	if !o.SwitchWeek(planID, 1) {
		t.Fatal("valid week switch failed")
	}
	if got := o.state.Plans[planID].CurrentTopic; got != "Advanced" {
		t.Errorf("current topic = %q, want Advanced", got)
	}

	if o.SwitchWeek("nope", 0) {
		t.Error("switching to unknown plan should fail")
	}
}

func TestQuizRequestStartsInteractiveAssessment(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}}})

	resp := o.Run(context.Background(), "quiz me")
	if !strings.Contains(resp, "diagnostic quiz for **Basics**") {
		t.Errorf("unexpected quiz intro: %q", resp)
	}
	if !o.state.AssessmentInProgress {
		t.Fatal("assessment not started")
	}
	if o.state.AssessmentData.Mode != models.AssessmentModeInteractive {
		t.Errorf("mode = %q, want interactive", o.state.AssessmentData.Mode)
	}
	if !strings.Contains(resp, "Question 1/") {
		t.Errorf("intro missing first question: %q", resp)
	}
}

func TestFinishedStartsBulkAssessment(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.CreatePlan("Fractions", models.PlanData{Weeks: []models.Week{{Topic: "Basics"}}})

	resp := o.Run(context.Background(), "I'm done practicing")
	if !strings.Contains(resp, "End-of-Week Assessment: Basics") {
		t.Errorf("unexpected assessment intro: %q", resp)
	}
	if !o.state.AssessmentInProgress {
		t.Fatal("assessment not started")
	}
	if o.state.AssessmentData.Mode != models.AssessmentModeBulk {
		t.Errorf("mode = %q, want bulk", o.state.AssessmentData.Mode)
	}
}

func TestToxicInputRefused(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	resp := o.Run(context.Background(), "you are stupid")
	if !strings.Contains(resp, "violates safety guidelines") {
		t.Errorf("expected refusal, got: %q", resp)
	}
	if o.state.AssessmentInProgress {
		t.Error("refused input must not mutate assessment state")
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	kv := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	gen := &stubGenerator{response: "plain text"}

	o := New(kv, gen, "u1")
	messages := []models.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	o.SaveChatHistory("plan-1", messages)

	restored := New(kv, gen, "u1")
	got := restored.ChatHistory("plan-1")
	if len(got) != 2 || got[0].Content != "hi" {
		t.Errorf("restored chat history = %v", got)
	}
	if restored.ChatHistory("missing") != nil {
		t.Error("unknown chat key should return nil")
	}
}

func TestRegistryReusesOrchestrators(t *testing.T) {
	kv := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	reg := NewRegistry(kv, &stubGenerator{response: "plain text"})

	a := reg.For("u1")
	if reg.For("u1") != a {
		t.Error("registry returned a new orchestrator for the same user")
	}
	if reg.For("u2") == a {
		t.Error("registry shared an orchestrator across users")
	}
}
