package nlp

import (
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// DefaultMinBayesProbability is the posterior below which a Bayes guess is
// discarded in favour of unknown.
const DefaultMinBayesProbability = 0.35

// Source tells which stage decided the intent.
type Source string

const (
	SourcePattern  Source = "pattern"
	SourceBayes    Source = "bayes"
	SourceRefined  Source = "refined"
	SourceFallback Source = "fallback"
)

type Classification struct {
	Intent       intent.Intent
	Base         intent.Intent
	Source       Source
	PatternScore int
	Probability  float64
}

// Classifier is the hybrid of the keyword matcher and the Bayes model.
type Classifier struct {
	bayes          *BayesClassifier
	minProbability float64
}

func NewClassifier(bayes *BayesClassifier, minProbability float64) *Classifier {
	if minProbability <= 0 {
		minProbability = DefaultMinBayesProbability
	}
	return &Classifier{bayes: bayes, minProbability: minProbability}
}

// Classify picks the pattern intent when any keyword matched, otherwise the
// Bayes label when it is confident enough, otherwise unknown. The refinement
// table then runs on the result and takes priority.
func (c *Classifier) Classify(text string, folded []string) Classification {
	match := MatchPatterns(folded)
	result := Classification{Intent: intent.Unknown, Base: intent.Unknown, Source: SourceFallback, PatternScore: match.Score}

	switch {
	case match.Score > 0:
		result.Intent = match.Intent
		result.Source = SourcePattern
	case c.bayes != nil:
		prediction := c.bayes.Predict(text)
		result.Probability = prediction.Probability
		if prediction.Intent != intent.Unknown && prediction.Probability >= c.minProbability {
			result.Intent = prediction.Intent
			result.Source = SourceBayes
		}
	}
	result.Base = result.Intent

	if refined, ok := Refine(result.Intent, folded); ok {
		result.Intent = refined
		result.Source = SourceRefined
	}
	return result
}
