package roles

import (
	"log"
	"math"
	"time"

	"learncoach/models"
	"learncoach/store"
)

// emaAlpha weights the newest score against accumulated mastery.
const emaAlpha = 0.3

// trendEpsilon is the dead band around zero delta.
const trendEpsilon = 0.01

// ProgressTracker maintains per-skill mastery scores as an exponential
// moving average of assessment scores.
type ProgressTracker struct {
	userID string
	store  store.Store
}

func NewProgressTracker(s store.Store, userID string) *ProgressTracker {
	return &ProgressTracker{userID: userID, store: s}
}

func (p *ProgressTracker) namespace() string {
	return "user:" + p.userID
}

// loadProfiles reads the skill_profiles list stored alongside the user's
// plan and mistake bank.
func (p *ProgressTracker) loadProfiles() []any {
	raw, found, err := p.store.Get(p.namespace(), "skill_profiles")
	if err != nil {
		log.Printf("[ERROR] ProgressTracker read failed for user %s: %v", p.userID, err)
		return nil
	}
	if !found {
		return nil
	}
	list, _ := raw.([]any)
	return list
}

// Record folds a new score in [0,1] into the skill's mastery and reports
// the direction of change. The first score for a skill becomes its mastery
// outright; later scores are blended through the moving average.
func (p *ProgressTracker) Record(skillID string, score float64) models.ProgressResult {
	score = clamp01(score)

	profiles := p.loadProfiles()
	var found map[string]any
	for _, item := range profiles {
		if m, ok := item.(map[string]any); ok && m["skill_id"] == skillID {
			found = m
			break
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var mastery, delta float64
	if found != nil {
		prev, _ := found["mastery_score"].(float64)
		mastery = round3(clamp01(prev*(1-emaAlpha) + score*emaAlpha))
		delta = round3(mastery - prev)
		found["mastery_score"] = mastery
		found["last_practiced"] = now
	} else {
		mastery = round3(score)
		delta = mastery
		profiles = append(profiles, map[string]any{
			"skill_id":       skillID,
			"mastery_score":  mastery,
			"last_practiced": now,
		})
	}

	trend := "stable"
	switch {
	case delta > trendEpsilon:
		trend = "improving"
	case delta < -trendEpsilon:
		trend = "declining"
	}

	if err := p.store.Put(p.namespace(), "skill_profiles", profiles); err != nil {
		log.Printf("[ERROR] ProgressTracker write failed for %s: %v", skillID, err)
	}

	return models.ProgressResult{
		SkillID:    skillID,
		NewMastery: mastery,
		Delta:      delta,
		Trend:      trend,
	}
}

// Profile returns the stored mastery for a skill, zeroed if never practiced.
func (p *ProgressTracker) Profile(skillID string) models.SkillProfile {
	profile := models.SkillProfile{SkillID: skillID}
	for _, item := range p.loadProfiles() {
		m, ok := item.(map[string]any)
		if !ok || m["skill_id"] != skillID {
			continue
		}
		if v, ok := m["mastery_score"].(float64); ok {
			profile.MasteryScore = v
		}
		if v, ok := m["last_practiced"].(string); ok {
			profile.LastPracticed = v
		}
		break
	}
	return profile
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
