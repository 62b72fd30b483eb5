package models

import (
	"encoding/json"
	"fmt"
)

// Options holds multiple-choice options keyed by letter. Generators sometimes
// emit a plain list instead of a letter->text object; that shape is accepted
// and letters are assigned positionally.
type Options map[string]string

func (o *Options) UnmarshalJSON(data []byte) error {
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		*o = asMap
		return nil
	}

	var asList []string
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("options must be an object or a list: %w", err)
	}

	opts := make(Options, len(asList))
	for i, text := range asList {
		opts[string(rune('A'+i))] = text
	}
	*o = opts
	return nil
}

type Question struct {
	QID         string  `json:"qid"`
	Prompt      string  `json:"prompt"`
	Options     Options `json:"options,omitempty"`
	Expected    string  `json:"expected,omitempty"`
	Answer      string  `json:"answer,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// ExpectedAnswer returns the reference answer regardless of which key the
// generator used.
func (q Question) ExpectedAnswer() string {
	if q.Expected != "" {
		return q.Expected
	}
	return q.Answer
}

const (
	AssessmentModeInteractive = "interactive"
	AssessmentModeBulk        = "bulk"
)

// AssessmentSession is the transient sub-state carried while an assessment
// is in progress.
type AssessmentSession struct {
	Mode         string            `json:"mode"`
	Topic        string            `json:"topic"`
	Questions    []Question        `json:"questions"`
	CurrentIndex int               `json:"current_index"`
	Answers      map[string]string `json:"answers"`
}

type GradedQuestion struct {
	QID      string  `json:"qid"`
	Prompt   string  `json:"prompt"`
	Expected string  `json:"expected"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
	Correct  bool    `json:"correct"`
	Feedback string  `json:"feedback"`
}

const (
	AssessmentPhaseQuestions = "questions"
	AssessmentPhaseResults   = "results"
)

// AssessmentResult is the tagged result of an Assessor run: either a fresh
// question set (PhaseQuestions) or graded results (PhaseResults).
type AssessmentResult struct {
	Phase            string           `json:"phase"`
	Questions        []Question       `json:"questions,omitempty"`
	Results          []GradedQuestion `json:"results,omitempty"`
	AvgScore         float64          `json:"avg_score"`
	CompactedSummary string           `json:"compacted_summary,omitempty"`
}

type MistakeEntry struct {
	Topic     string `json:"topic"`
	Question  string `json:"question"`
	Timestamp string `json:"timestamp"`
}
