package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"learncoach/models"
	"learncoach/services/generate"
	"learncoach/services/guard"
	"learncoach/services/roles"
	"learncoach/store"
)

// passThreshold is the minimum average score that completes a week.
const passThreshold = 0.7

const helpMessage = "I'm here to help you learn. You can ask for a **plan** (e.g. 'I want to learn Python'), say **Start lesson**, ask for a **quiz**, or say **Done** when finished practicing."

// Orchestrator drives one user's tutoring dialogue: it classifies each turn,
// routes it to the right role and persists the resulting state after every
// run. Run never returns an error; failures become apology text.
type Orchestrator struct {
	userID string

	mu      sync.Mutex
	state   *models.OrchestratorState
	session *store.Session

	gen      generate.ContentGenerator
	guard    *guard.SecurityGuard
	planner  *roles.Planner
	tutor    *roles.Tutor
	assessor *roles.Assessor
	progress *roles.ProgressTracker
	coach    *roles.Coach
	memory   *roles.MemoryBank
}

func New(kv store.Store, gen generate.ContentGenerator, userID string) *Orchestrator {
	session := store.NewSession(kv, userID)
	o := &Orchestrator{
		userID:   userID,
		session:  session,
		gen:      gen,
		guard:    guard.New(),
		planner:  roles.NewPlanner(gen, kv, userID),
		tutor:    roles.NewTutor(gen, userID),
		assessor: roles.NewAssessor(gen, kv, userID),
		progress: roles.NewProgressTracker(kv, userID),
		coach:    roles.NewCoach(gen, userID),
		memory:   roles.NewMemoryBank(kv, userID),
	}
	o.state = loadState(session, userID)
	o.saveState()
	return o
}

// loadState rehydrates the dialogue state from the session. The "plans" key
// marks a previously saved state; anything else starts fresh.
func loadState(session *store.Session, userID string) *models.OrchestratorState {
	raw := session.State()
	if _, ok := raw["plans"]; ok {
		buf, err := json.Marshal(raw)
		if err == nil {
			state := models.NewOrchestratorState()
			if err := json.Unmarshal(buf, state); err == nil {
				if state.Plans == nil {
					state.Plans = make(map[string]*models.Plan)
				}
				if state.Chats == nil {
					state.Chats = make(map[string][]models.Message)
				}
				log.Printf("[INFO] Restored state for user %s (%d plans)", userID, len(state.Plans))
				return state
			}
		}
		log.Printf("[ERROR] Could not decode saved state for user %s, starting fresh", userID)
	}
	return models.NewOrchestratorState()
}

// saveState writes the whole state back to the session key by key, so state
// written by other components under unrelated keys survives.
func (o *Orchestrator) saveState() {
	buf, err := json.Marshal(o.state)
	if err != nil {
		log.Printf("[ERROR] Could not serialize state for user %s: %v", o.userID, err)
		return
	}
	var asMap map[string]any
	if err := json.Unmarshal(buf, &asMap); err != nil {
		log.Printf("[ERROR] Could not round-trip state for user %s: %v", o.userID, err)
		return
	}
	for k, v := range asMap {
		o.session.UpdateState(k, v)
	}
}

// Run processes one user turn and returns the assistant response.
func (o *Orchestrator) Run(ctx context.Context, userInput string) (response string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// state mutated before a failure still gets persisted
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Orchestrator run failed for user %s: %v", o.userID, r)
			response = fmt.Sprintf("I encountered an error: %v. Please try again.", r)
		}
		o.saveState()
	}()
	return o.runTurn(ctx, userInput)
}

func (o *Orchestrator) runTurn(ctx context.Context, userInput string) string {
	if ok, refusal := o.guard.CheckInput(userInput); !ok {
		log.Printf("[INFO] Input blocked for user %s", o.userID)
		if refusal == "" {
			refusal = "I cannot answer that."
		}
		return refusal
	}

	userInput = strings.TrimSpace(userInput)
	trimmed := strings.ToLower(userInput)

	// quietly bank long-term signals (struggles, preferences, completions)
	o.memory.ExtractInsight(userInput)

	currentTopic := ""
	if plan := o.state.ActivePlan(); plan != nil {
		currentTopic = plan.CurrentTopic
	}

	if o.state.AssessmentInProgress {
		return o.handleAssessmentTurn(ctx, userInput)
	}

	hasPlan := o.state.ActivePlan() != nil
	in := classifyIntent(trimmed, hasPlan, false, false)
	if in == intentContinue {
		resp, handled, affirm := o.handleContinue(trimmed, &currentTopic)
		if handled {
			return resp
		}
		in = classifyIntent(trimmed, hasPlan, true, affirm)
	}

	switch in {
	case intentQuiz:
		return o.startInteractiveQuiz(ctx, currentTopic, userInput)
	case intentPlan:
		return o.createPlanFromRequest(ctx, userInput)
	case intentAffirmative:
		return o.startLesson(ctx, currentTopic)
	case intentFinished:
		return o.startWeekAssessment(ctx, currentTopic)
	default:
		return o.answerFreeform(ctx, userInput, currentTopic)
	}
}

// handleContinue resolves "continue"/"next" turns. It either answers
// directly (handled=true), or advances the week and asks the caller to fall
// through to lesson generation (affirm=true with the updated topic).
func (o *Orchestrator) handleContinue(trimmed string, currentTopic *string) (resp string, handled, affirm bool) {
	if o.state.LastAction == "reviewing" {
		return "I hope that review helped! We can **retake the quiz** to verify your understanding, or I can **teach the lesson again**. What would you like to do?", true, false
	}

	if plan := o.state.ActivePlan(); plan != nil {
		weeks := plan.Data.Weeks
		autoAdvance := o.state.LastAssessmentResult == "pass"
		manualAdvance := strings.Contains(trimmed, "next") && strings.Contains(trimmed, "week")

		if autoAdvance || manualAdvance {
			if plan.ActiveWeekIndex+1 >= len(weeks) {
				return "You have completed all weeks in this plan! 🎓", true, false
			}
			plan.ActiveWeekIndex++
			plan.CurrentTopic = weeks[plan.ActiveWeekIndex].Topic
			o.state.LastAssessmentResult = ""
			o.state.PendingReview = nil
			o.state.LastAction = "planning"
			o.saveState()

			*currentTopic = plan.CurrentTopic
			return "", false, true
		}
	}

	if *currentTopic != "" {
		return "", false, true
	}
	return "", false, false
}

func (o *Orchestrator) startInteractiveQuiz(ctx context.Context, currentTopic, userInput string) string {
	topic := currentTopic
	if topic == "" {
		topic = sanitizeTopic(userInput)
	}
	if topic == "" {
		topic = "General"
	}

	questions := o.assessor.GenerateQuestions(ctx, topic, 3)
	if len(questions) == 0 {
		return fmt.Sprintf("Sorry, I couldn't generate a quiz for %s. Try again?", topic)
	}

	o.state.AssessmentInProgress = true
	o.state.AssessmentData = &models.AssessmentSession{
		Mode:      models.AssessmentModeInteractive,
		Topic:     topic,
		Questions: questions,
		Answers:   make(map[string]string),
	}

	return fmt.Sprintf("Here is a quick diagnostic quiz for **%s**:\n\n**Question 1/%d**\n%s",
		topic, len(questions), formatQuestion(questions[0]))
}

func (o *Orchestrator) createPlanFromRequest(ctx context.Context, userInput string) string {
	topic := sanitizeTopic(userInput)
	if topic == "" && o.state.ProposedTopic != "" {
		topic = o.state.ProposedTopic
		o.state.ProposedTopic = ""
	}
	if topic == "" {
		o.state.ProposedTopic = "General"
		return "What topic would you like to create a learning path for?"
	}

	planData := o.planner.Run(ctx, roles.PlanRequest{Topic: topic, AssessmentData: o.state.LastAssessmentData})
	if len(planData.Weeks) == 0 {
		return fmt.Sprintf("I couldn't create a plan for %s. Please try again.", topic)
	}

	planID := o.addPlan(topic, planData)
	firstTopic := o.state.Plans[planID].CurrentTopic
	o.state.ProposedTopic = ""
	o.state.LastAction = "planning"
	return planCreatedMessage(topic, firstTopic)
}

func planCreatedMessage(topic, firstTopic string) string {
	return fmt.Sprintf("I've created a **new learning path** for **%s**!\n\nWeek 1 Focus: %s\n\nWould you like to start a lesson on %s?",
		topic, firstTopic, firstTopic)
}

// addPlan registers a new plan, makes it active and clears assessment state
// carried over from the previous plan.
func (o *Orchestrator) addPlan(topic string, data models.PlanData) string {
	planID := uuid.NewString()[:8]
	firstTopic := topic
	if len(data.Weeks) > 0 && data.Weeks[0].Topic != "" {
		firstTopic = data.Weeks[0].Topic
	}
	o.state.Plans[planID] = &models.Plan{
		ID:           planID,
		MainTopic:    topic,
		Data:         data,
		CurrentTopic: firstTopic,
	}
	o.state.ActivePlanID = planID
	o.state.PendingReview = nil
	o.state.LastAssessmentResult = ""
	return planID
}

func (o *Orchestrator) startLesson(ctx context.Context, currentTopic string) string {
	if len(o.state.PendingReview) > 0 {
		areas := o.state.PendingReview
		o.state.PendingReview = nil
		lesson := o.tutor.Run(ctx, "Review: "+strings.Join(areas, ", "))
		o.state.LastAction = "reviewing"

		out := []string{fmt.Sprintf("### Targeted Review\nI've prepared a review on: **%s**\n", strings.Join(areas, ", "))}
		out = append(out, lesson.Content.Overview)
		out = append(out, "\nDoes that help clarify things? We can continue with the next lesson when you're ready.")
		return strings.Join(out, "\n")
	}

	// "yes" right after a pass means "start the new week's lesson"
	if o.state.LastAssessmentResult == "pass" {
		o.state.LastAssessmentResult = ""
	}

	topic := currentTopic
	if topic == "" {
		topic = o.state.ProposedTopic
	}
	if topic == "" {
		return "I'm ready to start! What topic would you like to begin with?"
	}

	lesson := o.tutor.Run(ctx, topic)
	o.state.LastAction = "teaching"
	return formatLesson(topic, lesson.Content)
}

func formatLesson(topic string, content models.LessonContent) string {
	out := []string{fmt.Sprintf("### Lesson: %s\n", topic)}
	if content.Overview != "" {
		out = append(out, "Lesson content:\n\n"+content.Overview)
	}
	if content.WorkedExample != "" {
		out = append(out, "\n**Worked Example:**\n\n"+content.WorkedExample)
	}
	if len(content.PracticeProblems) > 0 {
		lines := lo.Map(content.PracticeProblems, func(p models.PracticeProblem, _ int) string {
			difficulty := p.Difficulty
			if difficulty == "" {
				difficulty = "?"
			}
			return fmt.Sprintf("- %s (Difficulty: %s)", p.Question, difficulty)
		})
		out = append(out, "\n**Practice Problems:**\n"+strings.Join(lines, "\n"))
	} else {
		out = append(out, "\n**Practice Problems:**\n\n(No practice problems available)")
	}
	out = append(out, "\nLet me know when you're done practicing!")
	return strings.Join(out, "\n\n")
}

func (o *Orchestrator) startWeekAssessment(ctx context.Context, currentTopic string) string {
	if o.state.LastAssessmentResult == "pass" {
		return "You've already completed this week! Say **'next week'** to move on."
	}

	topic := currentTopic
	if topic == "" {
		topic = "general"
	}

	questions := o.assessor.GenerateQuestions(ctx, topic, 3)
	if len(questions) == 0 {
		return "Great job on finishing! I couldn't generate a quiz right now, but you can move on to the next week."
	}

	o.state.AssessmentInProgress = true
	o.state.AssessmentData = &models.AssessmentSession{
		Mode:      models.AssessmentModeBulk,
		Topic:     topic,
		Questions: questions,
		Answers:   make(map[string]string),
	}

	out := []string{fmt.Sprintf("### End-of-Week Assessment: %s\nTo complete this week, please answer the following questions.", topic)}
	for i, q := range questions {
		out = append(out, fmt.Sprintf("\n**%d.** %s", i+1, formatQuestion(q)))
	}
	return strings.Join(out, "\n")
}

func (o *Orchestrator) answerFreeform(ctx context.Context, userInput, currentTopic string) string {
	if len(userInput) <= 2 {
		return helpMessage
	}

	topicName := currentTopic
	if topicName == "" {
		topicName = "General"
	}

	quizContext := ""
	if lad := o.state.LastAssessmentData; lad != nil {
		summary := lo.Map(lad.Questions, func(q models.Question, _ int) string {
			return "Q: " + q.Prompt
		})
		quizContext = fmt.Sprintf("\n\nContext from recent quiz on '%s':\n%s\n", lad.Topic, strings.Join(summary, "\n"))
	}

	prompt := fmt.Sprintf(
		"The user is currently learning '%s'. They asked: '%s'. %s"+
			"Answer their question naturally and helpfully as a tutor. "+
			"If the user explicitly wants to learn a NEW topic (even if there are typos), "+
			"start your response with 'SWITCH_TOPIC: <new_topic>'. "+
			"Otherwise, just answer the question. "+
			"Do NOT ask them to create a new learning path unless they explicitly ask for a new topic. "+
			"If the question is about the recent quiz, use the quiz context to explain. "+
			"If you don't understand (e.g. foreign language), politely explain that you only speak English.",
		topicName, userInput, quizContext)

	answer, err := o.gen.Generate(ctx, prompt, "Helpful Tutor")
	if err != nil {
		log.Printf("[ERROR] Freeform answer failed for user %s: %v", o.userID, err)
		return helpMessage
	}

	if idx := strings.Index(answer, "SWITCH_TOPIC:"); idx >= 0 {
		rest := strings.TrimSpace(answer[idx+len("SWITCH_TOPIC:"):])
		newTopic := strings.TrimSpace(strings.SplitN(rest, "\n", 2)[0])
		if newTopic != "" {
			planData := o.planner.Run(ctx, roles.PlanRequest{Request: userInput, Topic: newTopic})
			planID := o.addPlan(newTopic, planData)
			o.state.LastAction = "planning"
			return planCreatedMessage(newTopic, o.state.Plans[planID].CurrentTopic)
		}
	}
	return answer
}

// ActiveContext returns a snapshot of the active plan, or nil when none.
func (o *Orchestrator) ActiveContext() *models.Plan {
	o.mu.Lock()
	defer o.mu.Unlock()
	plan := o.state.ActivePlan()
	if plan == nil {
		return nil
	}
	snapshot := *plan
	return &snapshot
}

// SwitchPlan makes planID the active plan. Unknown ids are a no-op.
func (o *Orchestrator) SwitchPlan(planID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.state.Plans[planID]; !ok {
		log.Printf("[INFO] Plan %s not found for user %s", planID, o.userID)
		return false
	}
	o.state.ActivePlanID = planID
	o.saveState()
	return true
}

// SwitchWeek activates planID and jumps to weekIndex. An out-of-range index
// leaves the plan untouched.
func (o *Orchestrator) SwitchWeek(planID string, weekIndex int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	plan, ok := o.state.Plans[planID]
	if !ok {
		log.Printf("[INFO] Plan %s not found for user %s", planID, o.userID)
		return false
	}
	o.state.ActivePlanID = planID
	weeks := plan.Data.Weeks
	if weekIndex < 0 || weekIndex >= len(weeks) {
		log.Printf("[INFO] Invalid week index %d for plan %s", weekIndex, planID)
		return false
	}
	plan.ActiveWeekIndex = weekIndex
	plan.CurrentTopic = weeks[weekIndex].Topic
	if plan.CurrentTopic == "" {
		plan.CurrentTopic = plan.MainTopic
	}
	o.saveState()
	return true
}

// CreatePlan registers a prebuilt plan and returns its id.
func (o *Orchestrator) CreatePlan(topic string, data models.PlanData) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	planID := o.addPlan(topic, data)
	o.saveState()
	return planID
}

// SaveChatHistory stores the message list for a chat context.
func (o *Orchestrator) SaveChatHistory(chatKey string, messages []models.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Chats == nil {
		o.state.Chats = make(map[string][]models.Message)
	}
	o.state.Chats[chatKey] = messages
	o.saveState()
}

// ChatHistory returns the stored messages for a chat context, empty when
// none were saved.
func (o *Orchestrator) ChatHistory(chatKey string) []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Chats[chatKey]
}
