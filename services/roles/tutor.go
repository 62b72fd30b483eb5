package roles

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"learncoach/models"
	"learncoach/services/generate"
)

const TUTOR_PROMPT = `Act as an expert tutor. Create a comprehensive and detailed lesson for '%s'.
The lesson MUST be detailed enough for a beginner to understand and solve the practice problems without external resources.
Include syntax rules, key concepts, common pitfalls, and usage examples in the overview.

Return the lesson in the following MARKDOWN format:

## Overview
[Detailed overview text...]

## Worked Example
[Explanation text...]

## Practice Problems
1. [Question text] (Difficulty: [Level])
2. ...
`

// Tutor generates lessons: an overview, a worked example and practice
// problems parsed out of the generator's markdown response.
type Tutor struct {
	userID string
	gen    generate.ContentGenerator
}

func NewTutor(gen generate.ContentGenerator, userID string) *Tutor {
	return &Tutor{userID: userID, gen: gen}
}

var difficultySuffix = regexp.MustCompile(`\(Difficulty:\s*([^)]+)\)\s*$`)

func (t *Tutor) Run(ctx context.Context, topic string) models.LessonResult {
	if topic == "" {
		topic = "General Topic"
	}
	log.Printf("[INFO] Tutor generating lesson for %q", topic)

	result := models.LessonResult{
		Topic:       topic,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := t.gen.Generate(ctx, fmt.Sprintf(TUTOR_PROMPT, topic), fmt.Sprintf("Tutor for %s", topic))
	if err != nil {
		log.Printf("[ERROR] Tutor generation failed: %v", err)
		result.Content = models.LessonContent{Overview: "Short lesson summary unavailable right now. Please try again."}
		return result
	}

	result.Content = parseLessonMarkdown(resp)
	return result
}

// parseLessonMarkdown splits a lesson into its sections by markdown headers.
// If no recognizable headers are present, the whole text becomes the
// overview.
func parseLessonMarkdown(text string) models.LessonContent {
	var overview, example []string
	var problems []models.PracticeProblem
	section := ""

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		switch {
		case strings.HasPrefix(lower, "#") && strings.Contains(lower, "overview"):
			section = "overview"
			continue
		case strings.HasPrefix(lower, "#") && strings.Contains(lower, "worked example"):
			section = "example"
			continue
		case strings.HasPrefix(lower, "#") && strings.Contains(lower, "practice problems"):
			section = "problems"
			continue
		}

		switch section {
		case "overview":
			overview = append(overview, line)
		case "example":
			example = append(example, line)
		case "problems":
			if stripped == "" {
				continue
			}
			if stripped[0] >= '0' && stripped[0] <= '9' || strings.HasPrefix(stripped, "-") {
				problems = append(problems, parsePracticeProblem(stripped))
			}
		}
	}

	content := models.LessonContent{
		Overview:         strings.TrimSpace(strings.Join(overview, "\n")),
		WorkedExample:    strings.TrimSpace(strings.Join(example, "\n")),
		PracticeProblems: problems,
	}

	if content.Overview == "" && content.WorkedExample == "" {
		content.Overview = strings.TrimSpace(text)
		content.PracticeProblems = nil
	}
	return content
}

func parsePracticeProblem(line string) models.PracticeProblem {
	text := strings.TrimSpace(strings.TrimLeft(line, "0123456789.- )"))
	difficulty := ""
	if m := difficultySuffix.FindStringSubmatch(text); m != nil {
		difficulty = strings.TrimSpace(m[1])
		text = strings.TrimSpace(difficultySuffix.ReplaceAllString(text, ""))
	}
	return models.PracticeProblem{Question: text, Difficulty: difficulty}
}
