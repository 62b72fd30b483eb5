package roles

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"learncoach/models"
	"learncoach/store"
)

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	return store.NewFileStore(filepath.Join(t.TempDir(), "store.json"))
}

func TestGenerateQuestionsParsesArray(t *testing.T) {
	gen := &stubGenerator{responses: []string{`[
		{"qid": "q1", "prompt": "What is 3/4 as a decimal?", "expected": "0.75"},
		{"qid": 2, "prompt": "Pick the prime.", "options": ["4", "7", "9"], "expected": "B"}
	]`}}
	a := NewAssessor(gen, newTestStore(t), "u1")

	questions := a.GenerateQuestions(context.Background(), "Fractions", 2)
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].QID != "q1" {
		t.Errorf("qid = %q, want q1", questions[0].QID)
	}
	if questions[1].QID != "2" {
		t.Errorf("numeric qid coerced to %q, want \"2\"", questions[1].QID)
	}
	if questions[1].Options["B"] != "7" {
		t.Errorf("list options not lettered: %v", questions[1].Options)
	}
}

func TestGenerateQuestionsFallsBackToSeed(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"generator error", &stubGenerator{err: errors.New("boom")}},
		{"unparseable output", &stubGenerator{responses: []string{"no json here"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssessor(tt.gen, newTestStore(t), "u1")
			questions := a.GenerateQuestions(context.Background(), "Fractions", 3)
			if len(questions) != 2 {
				t.Fatalf("got %d seed questions, want 2", len(questions))
			}
			if questions[0].Prompt != "What is 3/4 as a decimal?" {
				t.Errorf("unexpected seed question %q", questions[0].Prompt)
			}
		})
	}
}

func TestGradeAnswersScoresAndBanksMistakes(t *testing.T) {
	s := newTestStore(t)
	a := NewAssessor(&stubGenerator{}, s, "u1")

	questions := []models.Question{
		{QID: "q1", Prompt: "What is 3/4 as a decimal?", Expected: "0.75"},
		{QID: "q2", Prompt: "Simplify 6/8.", Expected: "3/4"},
	}
	answers := map[string]string{"q1": "0.75", "q2": "wrong"}

	result := a.GradeAnswers(context.Background(), "Fractions", questions, answers)

	if result.Phase != models.AssessmentPhaseResults {
		t.Errorf("phase = %q", result.Phase)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d graded results, want 2", len(result.Results))
	}
	if !result.Results[0].Correct {
		t.Error("q1 should be correct")
	}
	if result.Results[1].Correct {
		t.Error("q2 should be incorrect")
	}
	if result.AvgScore != 0.5 {
		t.Errorf("avg score = %v, want 0.5", result.AvgScore)
	}

	mistakes := a.Mistakes()
	if len(mistakes) != 1 {
		t.Fatalf("got %d banked mistakes, want 1", len(mistakes))
	}
	if mistakes[0].Question != "Simplify 6/8." {
		t.Errorf("banked question = %q", mistakes[0].Question)
	}
	if mistakes[0].Topic != "Fractions" {
		t.Errorf("banked topic = %q", mistakes[0].Topic)
	}

	// the bank lives next to the user's plan and skill profiles
	if _, found, _ := s.Get("user:u1", "mistake_bank"); !found {
		t.Error("mistake_bank not stored under user namespace")
	}
}

func TestGradeAnswersMultipleChoiceLetters(t *testing.T) {
	a := NewAssessor(&stubGenerator{}, newTestStore(t), "u1")

	questions := []models.Question{
		{QID: "q1", Prompt: "Pick the prime.", Options: models.Options{"A": "4", "B": "7"}, Expected: "B"},
	}

	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"bare letter", "B", true},
		{"lower case", "b", true},
		{"letter with text", "B) 7", true},
		{"option text", "7", true},
		{"wrong letter", "A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.GradeAnswers(context.Background(), "Primes", questions, map[string]string{"q1": tt.answer})
			if result.Results[0].Correct != tt.correct {
				t.Errorf("answer %q correct = %v, want %v", tt.answer, result.Results[0].Correct, tt.correct)
			}
		})
	}
}

func TestMistakeBankCapped(t *testing.T) {
	s := newTestStore(t)
	a := NewAssessor(&stubGenerator{}, s, "u1")

	for i := 0; i < maxMistakeEntries+25; i++ {
		a.bankMistake("Topic", "question")
	}
	if got := len(a.Mistakes()); got != maxMistakeEntries {
		t.Errorf("mistake bank size = %d, want %d", got, maxMistakeEntries)
	}
}
