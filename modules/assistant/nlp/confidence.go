package nlp

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

const (
	MinConfidence = 0.1
	MaxConfidence = 0.95
)

var specificKeywords = []string{
	"conductor", "vehicul", "licencia", "mantenimiento", "ruta", "viaje", "soat",
	"tecnomecanica", "venc", "placa", "flota", "alerta", "kilometraje",
}

var ambiguousTerms = map[string]struct{}{
	"cosa": {}, "cosas": {}, "algo": {}, "eso": {}, "esto": {}, "aquello": {},
	"coso": {}, "etc": {}, "cualquiera": {},
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

func sentenceCount(text string) int {
	n := 0
	for _, part := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(strings.Trim(part, "¿¡")) != "" {
			n++
		}
	}
	return n
}

// ScoreConfidence applies the weighted factors in order and clamps the
// result to [MinConfidence, MaxConfidence]. Unknown is always MinConfidence.
func ScoreConfidence(in intent.Intent, text string, folded []string, entityCount int) float64 {
	if in == intent.Unknown {
		return MinConfidence
	}
	score := 0.3
	n := len(folded)

	if n > 3 {
		score += 0.15
	}
	if n > 6 {
		score += 0.10
	}
	if sentenceCount(text) == 1 {
		score += 0.10
	}
	for _, tok := range folded {
		for _, kw := range specificKeywords {
			if strings.HasPrefix(tok, kw) {
				score += 0.08
				break
			}
		}
	}
	score += min(float64(entityCount)*0.05, 0.2)

	if n > 0 {
		total := 0
		for _, tok := range folded {
			total += utf8.RuneCountInString(tok)
		}
		if float64(total)/float64(n) > 5 {
			score += 0.10
		}
	}

	interrogative := HasInterrogative(folded)
	hasMark := strings.Contains(text, "?")
	if interrogative {
		score += 0.10
	}
	if (interrogative && hasMark) || (n > 2 && !hasMark) {
		score += 0.10
	}
	if in.Specific() {
		score += 0.10
	}
	if n < 2 {
		score -= 0.10
	}
	for _, tok := range folded {
		if _, ok := ambiguousTerms[tok]; ok {
			score -= 0.10
			break
		}
	}
	return ClampConfidence(score)
}

func ClampConfidence(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}
