package grader

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	ModeExact   = "exact"
	ModeNumeric = "numeric"
	ModeMixed   = "mixed"
)

type Request struct {
	Expected string `json:"expected"`
	Answer   string `json:"answer"`
	Mode     string `json:"mode"`
}

type Result struct {
	Score    float64 `json:"score"`
	Correct  bool    `json:"correct"`
	Feedback string  `json:"feedback"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Grade scores a student answer against the expected answer. Mixed mode
// prefers numeric/fraction equivalence, then exact match, then fuzzy string
// similarity; exact mode skips the numeric step.
func Grade(req Request) Result {
	mode := req.Mode
	if mode == "" {
		mode = ModeMixed
	}

	exp := clean(req.Expected)
	ans := clean(req.Answer)

	if exp != "" && exp == ans {
		return Result{Score: 1.0, Correct: true, Feedback: "Exact match."}
	}

	if mode == ModeMixed || mode == ModeNumeric {
		e, eok := parseNumber(exp)
		a, aok := parseNumber(ans)
		if eok && aok && e.Cmp(a) == 0 {
			return Result{Score: 1.0, Correct: true, Feedback: "Numeric/fraction equivalent."}
		}
		if mode == ModeNumeric {
			return Result{Score: 0.0, Correct: false, Feedback: "Numeric mismatch."}
		}
	}

	ratio := similarity(exp, ans)
	if ratio >= 0.85 {
		return Result{Score: 1.0, Correct: true, Feedback: fmt.Sprintf("Close match (similarity=%.2f).", ratio)}
	}
	if ratio >= 0.6 {
		return Result{Score: 0.5, Correct: false, Feedback: fmt.Sprintf("Partial match (similarity=%.2f).", ratio)}
	}
	return Result{Score: 0.0, Correct: false, Feedback: "Incorrect."}
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(s, " ")))
}

// parseNumber reads a decimal, fraction or percentage into an exact rational.
func parseNumber(s string) (*big.Rat, bool) {
	if s == "" {
		return nil, false
	}
	t := strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	if strings.HasSuffix(t, "%") {
		r, ok := new(big.Rat).SetString(strings.TrimSuffix(t, "%"))
		if !ok {
			return nil, false
		}
		return r.Quo(r, big.NewRat(100, 1)), true
	}

	// big.Rat accepts both "3/4" and "0.75" forms.
	r, ok := new(big.Rat).SetString(t)
	if !ok {
		return nil, false
	}
	return r, true
}

// similarity is a normalized Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
