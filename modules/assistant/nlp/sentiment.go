package nlp

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var (
	positiveWords = []string{"gracias", "excelente", "genial", "perfecto", "bien", "bueno", "buena", "super", "increible", "feliz"}
	negativeWords = []string{"mal", "malo", "mala", "error", "problema", "falla", "terrible", "lento", "horrible", "pesimo", "molesto", "queja"}
)

// DetectSentiment compares positive and negative word hits on folded tokens.
func DetectSentiment(folded []string) Sentiment {
	score := 0
	for _, tok := range folded {
		for _, w := range positiveWords {
			if tok == w {
				score++
			}
		}
		for _, w := range negativeWords {
			if tok == w {
				score--
			}
		}
	}
	switch {
	case score > 0:
		return SentimentPositive
	case score < 0:
		return SentimentNegative
	}
	return SentimentNeutral
}
