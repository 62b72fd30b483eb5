package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/samber/lo"

	"learncoach/models"
	"learncoach/services/generate"
	"learncoach/services/grader"
	"learncoach/store"
)

const ASSESSOR_SYSTEM_PROMPT = "Assessment generator - produce JSON quiz questions"

const maxMistakeEntries = 200

const assessmentKeepLast = 10

// Assessor generates quiz questions and grades submitted answers. Grading
// results are appended to the user's session and a per-topic mistake bank.
type Assessor struct {
	userID string
	gen    generate.ContentGenerator
	store  store.Store
}

func NewAssessor(gen generate.ContentGenerator, s store.Store, userID string) *Assessor {
	return &Assessor{userID: userID, gen: gen, store: s}
}

// questionPayload matches the generator's JSON. QID is decoded loosely
// because models sometimes emit numeric ids.
type questionPayload struct {
	QID         json.RawMessage `json:"qid"`
	Prompt      string          `json:"prompt"`
	Options     models.Options  `json:"options"`
	Expected    string          `json:"expected"`
	Answer      string          `json:"answer"`
	Explanation string          `json:"explanation"`
}

func (p questionPayload) toQuestion(i int) models.Question {
	q := models.Question{
		QID:         coerceQID(p.QID, i),
		Prompt:      p.Prompt,
		Options:     p.Options,
		Expected:    p.Expected,
		Answer:      p.Answer,
		Explanation: p.Explanation,
	}
	return q
}

func coerceQID(raw json.RawMessage, i int) string {
	if len(raw) == 0 {
		return fmt.Sprintf("q%d", i+1)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return fmt.Sprintf("q%d", i+1)
}

// GenerateQuestions asks the generator for count questions on topic.
// Unparseable output falls back to a small deterministic seed set so an
// assessment can always start.
func (a *Assessor) GenerateQuestions(ctx context.Context, topic string, count int) []models.Question {
	if count <= 0 {
		count = 3
	}
	prompt := fmt.Sprintf(`Generate %d assessment questions for the topic '%s'.
Mix multiple-choice and short-answer questions.
Return ONLY a JSON array where each element follows this schema:
%s`, count, topic, schemaFor[models.Question]())

	resp, err := a.gen.Generate(ctx, prompt, ASSESSOR_SYSTEM_PROMPT)
	if err != nil {
		log.Printf("[ERROR] Assessor question generation failed: %v", err)
		return seedQuestions(topic)
	}

	var payloads []questionPayload
	if raw, ok := ExtractJSON(resp); ok {
		if err := json.Unmarshal(raw, &payloads); err != nil {
			// some models wrap the array in {"questions": [...]}
			var wrapper struct {
				Questions []questionPayload `json:"questions"`
			}
			if err := json.Unmarshal(raw, &wrapper); err == nil {
				payloads = wrapper.Questions
			}
		}
	}
	if len(payloads) == 0 {
		log.Printf("[INFO] Assessor falling back to seed questions for %q", topic)
		return seedQuestions(topic)
	}

	questions := lo.Map(payloads, func(p questionPayload, i int) models.Question {
		return p.toQuestion(i)
	})
	return questions
}

func seedQuestions(topic string) []models.Question {
	return []models.Question{
		{QID: "q1", Prompt: "What is 3/4 as a decimal?", Expected: "0.75"},
		{QID: "q2", Prompt: "Simplify the fraction 6/8.", Expected: "3/4"},
	}
}

// GradeAnswers grades each question against the submitted answers, records
// the outcome on the session, banks the mistakes and compacts the session
// history.
func (a *Assessor) GradeAnswers(ctx context.Context, topic string, questions []models.Question, answers map[string]string) models.AssessmentResult {
	session := store.NewSession(a.store, a.userID)

	var graded []models.GradedQuestion
	total := 0.0

	for _, q := range questions {
		answer := answers[q.QID]
		expected := q.ExpectedAnswer()

		res := gradeOne(q, expected, answer)
		graded = append(graded, models.GradedQuestion{
			QID:      q.QID,
			Prompt:   q.Prompt,
			Expected: expected,
			Answer:   answer,
			Score:    res.Score,
			Correct:  res.Correct,
			Feedback: res.Feedback,
		})
		total += res.Score

		session.AddEvent("user", map[string]any{"qid": q.QID, "text": answer}, "answer")
		session.AddEvent("system", map[string]any{"qid": q.QID, "score": res.Score, "correct": res.Correct}, "graded")
		if !res.Correct {
			a.bankMistake(topic, q.Prompt)
		}
	}

	avg := 0.0
	if len(graded) > 0 {
		avg = total / float64(len(graded))
	}

	result := models.AssessmentResult{
		Phase:    models.AssessmentPhaseResults,
		Results:  graded,
		AvgScore: avg,
	}

	session.AddEvent("system", map[string]any{
		"topic":     topic,
		"avg_score": avg,
		"graded":    len(graded),
	}, "assessment_summary")
	if compacted, err := a.store.CompactSession(session.ID(), assessmentKeepLast); err != nil {
		log.Printf("[ERROR] Assessor compaction failed: %v", err)
	} else if summary, ok := compacted["short_summary"].(string); ok {
		result.CompactedSummary = summary
	}
	return result
}

// gradeOne normalizes multiple-choice letter answers before delegating to
// the grader. "A) 0.75" and "a" both count as a match for option A.
func gradeOne(q models.Question, expected, answer string) grader.Result {
	if len(q.Options) > 0 {
		if expLetter := normalizeChoice(expected); expLetter != "" {
			if ansLetter := normalizeChoice(answer); ansLetter != "" {
				if expLetter == ansLetter {
					return grader.Result{Score: 1.0, Correct: true, Feedback: "Exact match."}
				}
				return grader.Result{Score: 0.0, Correct: false, Feedback: "Incorrect."}
			}
			// non-letter answers are graded against the expected option's text
			if text, ok := q.Options[expLetter]; ok {
				return grader.Grade(grader.Request{Expected: text, Answer: answer, Mode: grader.ModeMixed})
			}
		}
	}
	return grader.Grade(grader.Request{Expected: expected, Answer: answer, Mode: grader.ModeMixed})
}

// normalizeChoice reduces "A) ...", "a." or "A" to the bare upper-case
// letter; anything else returns "".
func normalizeChoice(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	head := s
	for _, sep := range []string{")", ".", ":"} {
		if idx := strings.Index(head, sep); idx > 0 {
			head = head[:idx]
			break
		}
	}
	head = strings.TrimSpace(head)
	if len(head) == 1 && head[0] >= 'A' && head[0] <= 'Z' {
		return head
	}
	if len(head) == 1 && head[0] >= 'a' && head[0] <= 'z' {
		return strings.ToUpper(head)
	}
	return ""
}

func (a *Assessor) bankMistake(topic, question string) {
	ns := "user:" + a.userID
	raw, found, err := a.store.Get(ns, "mistake_bank")
	if err != nil {
		log.Printf("[ERROR] Assessor could not read mistake bank: %v", err)
		return
	}

	var entries []any
	if found {
		if list, ok := raw.([]any); ok {
			entries = list
		}
	}
	entries = append(entries, map[string]any{
		"topic":     topic,
		"question":  question,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if len(entries) > maxMistakeEntries {
		entries = entries[len(entries)-maxMistakeEntries:]
	}
	if err := a.store.Put(ns, "mistake_bank", entries); err != nil {
		log.Printf("[ERROR] Assessor could not write mistake bank: %v", err)
	}
}

// Mistakes returns the banked mistakes for the user, newest last.
func (a *Assessor) Mistakes() []models.MistakeEntry {
	raw, found, err := a.store.Get("user:"+a.userID, "mistake_bank")
	if err != nil || !found {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var entries []models.MistakeEntry
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := models.MistakeEntry{}
		if v, ok := m["topic"].(string); ok {
			entry.Topic = v
		}
		if v, ok := m["question"].(string); ok {
			entry.Question = v
		}
		if v, ok := m["timestamp"].(string); ok {
			entry.Timestamp = v
		}
		entries = append(entries, entry)
	}
	return entries
}
