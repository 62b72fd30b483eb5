package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/samber/lo"

	"learncoach/models"
	"learncoach/services/roles"
)

func (o *Orchestrator) handleAssessmentTurn(ctx context.Context, userInput string) string {
	data := o.state.AssessmentData
	if data == nil {
		// inconsistent state, reset
		o.state.AssessmentInProgress = false
		return helpMessage
	}
	if data.Mode == models.AssessmentModeBulk {
		return o.finishBulkAssessment(ctx, userInput, data)
	}
	return o.continueInteractiveQuiz(ctx, userInput, data)
}

// finishBulkAssessment grades a whole end-of-week submission and applies the
// pass/fail gate: pass advances the week, fail queues the missed prompts for
// review.
func (o *Orchestrator) finishBulkAssessment(ctx context.Context, userInput string, data *models.AssessmentSession) string {
	questions := data.Questions

	answers, isJSON := decodeAnswerJSON(userInput)
	if !isJSON {
		parsed, ok := o.parseBulkAnswers(ctx, userInput, questions)
		if !ok {
			return "I couldn't read your answers. Please list them like 'q1: ..., q2: ...' and send them again."
		}
		answers = parsed
	}

	res := o.assessor.GradeAnswers(ctx, data.Topic, questions, answers)
	score := res.AvgScore

	out := []string{fmt.Sprintf("### Assessment Results\n**Score:** %.0f%%", score*100)}
	for _, r := range res.Results {
		icon := "✅"
		if !r.Correct {
			icon = "❌"
		}
		out = append(out, fmt.Sprintf("\n%s **%s**", icon, r.Prompt))
		out = append(out, "Your Answer: "+valueOr(r.Answer, "N/A"))
		if !r.Correct {
			out = append(out, "Correct Answer: "+valueOr(r.Expected, "N/A"))
		}
		out = append(out, "Feedback: "+r.Feedback)
	}

	o.state.AssessmentInProgress = false
	o.state.LastAssessmentData = data
	o.state.AssessmentData = nil

	prog := o.progress.Record(skillID(data.Topic), score)
	plan := o.state.ActivePlan()

	if score >= passThreshold {
		o.state.LastAssessmentResult = "pass"
		o.state.PendingReview = nil
		if plan != nil {
			plan.LastAssessmentResult = "pass"
			plan.PendingReview = nil
		}

		out = append(out, "\n\n🎉 **Congratulations!** You passed the assessment.")

		if plan != nil {
			weeks := plan.Data.Weeks
			if plan.ActiveWeekIndex+1 < len(weeks) {
				plan.ActiveWeekIndex++
				plan.CurrentTopic = weeks[plan.ActiveWeekIndex].Topic
				o.saveState()
				out = append(out, fmt.Sprintf("\n**Next Up:** %s\n\nReady to start?", plan.CurrentTopic))
			} else {
				out = append(out, "\n**You have completed the entire learning path!** 🎓")
			}
		}

		coach := o.coach.Run(ctx, prog)
		out = append(out, "\n_"+coach.Message+"_")
	} else {
		o.state.LastAssessmentResult = "fail"
		weak := lo.FilterMap(res.Results, func(r models.GradedQuestion, _ int) (string, bool) {
			return r.Prompt, !r.Correct
		})
		o.state.PendingReview = weak
		if plan != nil {
			plan.LastAssessmentResult = "fail"
			plan.PendingReview = weak
		}

		out = append(out, "\n\n⚠️ **Review Needed**")
		out = append(out, "You didn't quite reach the 70% passing score. I recommend reviewing the following concepts:")
		for _, area := range weak {
			out = append(out, "\n* "+area)
		}
		out = append(out, "\n\n(Say 'finished' again when you want to retake the quiz.)")
	}

	return strings.Join(out, "\n")
}

// continueInteractiveQuiz records the answer to the current question and
// either asks the next one or grades the whole quiz. A JSON object input is
// treated as a full submission.
func (o *Orchestrator) continueInteractiveQuiz(ctx context.Context, userInput string, data *models.AssessmentSession) string {
	if answers, ok := decodeAnswerJSON(userInput); ok {
		o.state.AssessmentInProgress = false
		o.state.AssessmentData = nil
		res := o.assessor.GradeAnswers(ctx, data.Topic, data.Questions, answers)
		o.progress.Record(skillID(data.Topic), res.AvgScore)
		return o.formatQuizComplete(res)
	}

	questions := data.Questions
	if data.Answers == nil {
		data.Answers = make(map[string]string)
	}
	if data.CurrentIndex >= 0 && data.CurrentIndex < len(questions) {
		data.Answers[questions[data.CurrentIndex].QID] = userInput
	}
	data.CurrentIndex++

	if data.CurrentIndex < len(questions) {
		next := questions[data.CurrentIndex]
		return fmt.Sprintf("**Question %d/%d**\n%s", data.CurrentIndex+1, len(questions), formatQuestion(next))
	}

	o.state.AssessmentInProgress = false
	o.state.AssessmentData = nil
	res := o.assessor.GradeAnswers(ctx, data.Topic, questions, data.Answers)
	o.progress.Record(skillID(data.Topic), res.AvgScore)
	return o.formatQuizComplete(res)
}

func (o *Orchestrator) formatQuizComplete(res models.AssessmentResult) string {
	out := []string{fmt.Sprintf("### Quiz Complete!\n**Score:** %.0f%%", res.AvgScore*100)}
	for _, r := range res.Results {
		icon := "✅"
		if !r.Correct {
			icon = "❌"
		}
		out = append(out, fmt.Sprintf("\n%s **%s**\n%s", icon, r.Prompt, r.Feedback))
	}
	out = append(out, "\n")

	if res.AvgScore < passThreshold {
		out = append(out, "### ⚠️ Review Recommended\n")
		out = append(out, "You missed a few key concepts. I recommend reviewing:\n")
		weak := lo.FilterMap(res.Results, func(r models.GradedQuestion, _ int) (string, bool) {
			return r.Prompt, !r.Correct
		})
		if len(weak) > 3 {
			weak = weak[:3]
		}
		for _, area := range weak {
			out = append(out, "- "+area+"\n")
		}
		o.state.PendingReview = weak
		out = append(out, "\nWould you like me to explain these concepts again? (Type 'Review' or 'Explain')")
	} else {
		out = append(out, "\nGreat job! Would you like to continue with the next lesson?")
	}
	return strings.Join(out, "\n")
}

// parseBulkAnswers maps unstructured answer text onto question ids with a
// generator call. Returns false when the mapping cannot be parsed so the
// caller can re-prompt instead of grading everything as wrong.
func (o *Orchestrator) parseBulkAnswers(ctx context.Context, userText string, questions []models.Question) (map[string]string, bool) {
	summary := lo.Map(questions, func(q models.Question, i int) string {
		qid := q.QID
		if qid == "" {
			qid = fmt.Sprintf("q%d", i+1)
		}
		return qid + ": " + q.Prompt
	})

	prompt := fmt.Sprintf(
		"The user provided the following answers to a quiz:\nUser Text: %q\n\nQuestions:\n%s\n\n"+
			"Map the user's answers to the Question IDs (q1, q2, etc.). "+
			"Return ONLY a valid JSON object where keys are 'q1', 'q2', etc. and values are the user's answer string. "+
			"If an answer is missing, omit the key. Do not include markdown formatting.",
		userText, strings.Join(summary, "\n"))

	resp, err := o.gen.Generate(ctx, prompt, "Data Parser")
	if err != nil {
		log.Printf("[ERROR] Failed to parse bulk answers: %v", err)
		return nil, false
	}
	raw, ok := roles.ExtractJSON(resp)
	if !ok {
		log.Printf("[ERROR] Bulk answer parser returned no JSON")
		return nil, false
	}
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		log.Printf("[ERROR] Bulk answer parser returned invalid JSON: %v", err)
		return nil, false
	}
	return stringifyValues(loose), true
}

// decodeAnswerJSON recognizes a structured {"q1": "...", ...} submission.
func decodeAnswerJSON(input string) (map[string]string, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var loose map[string]any
	if err := json.Unmarshal([]byte(trimmed), &loose); err != nil {
		return nil, false
	}
	return stringifyValues(loose), true
}

func stringifyValues(loose map[string]any) map[string]string {
	answers := make(map[string]string, len(loose))
	for k, v := range loose {
		if s, ok := v.(string); ok {
			answers[k] = s
		} else {
			answers[k] = fmt.Sprint(v)
		}
	}
	return answers
}

// formatQuestion renders a question with its options in letter order.
func formatQuestion(q models.Question) string {
	if len(q.Options) == 0 {
		return q.Prompt
	}
	letters := lo.Keys(q.Options)
	sort.Strings(letters)
	lines := []string{q.Prompt}
	for _, letter := range letters {
		lines = append(lines, fmt.Sprintf("%s) %s", letter, q.Options[letter]))
	}
	return strings.Join(lines, "\n")
}

func skillID(topic string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(topic)), " ", "-")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
