package nlp

import (
	"math"
	"sort"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// BayesClassifier is a multinomial naive Bayes model over stemmed tokens
// with Laplace smoothing. It is immutable after training.
type BayesClassifier struct {
	labels      []intent.Intent
	logPrior    map[intent.Intent]float64
	tokenCounts map[intent.Intent]map[string]int
	totals      map[intent.Intent]int
	vocabulary  map[string]struct{}
}

// Prediction is the most probable label with its posterior.
type Prediction struct {
	Intent      intent.Intent
	Probability float64
}

// TrainBayes fits the model on corpus.
func TrainBayes(corpus Corpus) (*BayesClassifier, error) {
	if len(corpus.Examples) == 0 {
		return nil, ErrEmptyCorpus
	}
	b := &BayesClassifier{
		logPrior:    map[intent.Intent]float64{},
		tokenCounts: map[intent.Intent]map[string]int{},
		totals:      map[intent.Intent]int{},
		vocabulary:  map[string]struct{}{},
	}
	docs := 0
	perLabel := map[intent.Intent]int{}
	for label, examples := range corpus.Examples {
		in := intent.Parse(label)
		if in == intent.Unknown {
			continue
		}
		if _, ok := b.tokenCounts[in]; !ok {
			b.tokenCounts[in] = map[string]int{}
			b.labels = append(b.labels, in)
		}
		for _, example := range examples {
			docs++
			perLabel[in]++
			for _, feature := range features(example) {
				b.tokenCounts[in][feature]++
				b.totals[in]++
				b.vocabulary[feature] = struct{}{}
			}
		}
	}
	if docs == 0 {
		return nil, ErrEmptyCorpus
	}
	sort.Slice(b.labels, func(i, j int) bool { return b.labels[i] < b.labels[j] })
	for _, in := range b.labels {
		b.logPrior[in] = math.Log(float64(perLabel[in]) / float64(docs))
	}
	return b, nil
}

func features(text string) []string {
	stems := StemAll(Tokenize(text))
	out := stems[:0]
	for _, s := range stems {
		if IsStopword(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (b *BayesClassifier) Labels() []intent.Intent {
	return append([]intent.Intent(nil), b.labels...)
}

// Predict returns the label with the highest posterior. Text with no known
// features returns Unknown with probability 0.
func (b *BayesClassifier) Predict(text string) Prediction {
	feats := features(text)
	known := 0
	for _, f := range feats {
		if _, ok := b.vocabulary[f]; ok {
			known++
		}
	}
	if known == 0 {
		return Prediction{Intent: intent.Unknown}
	}

	vocab := float64(len(b.vocabulary))
	scores := make([]float64, len(b.labels))
	for i, in := range b.labels {
		score := b.logPrior[in]
		denom := float64(b.totals[in]) + vocab
		for _, f := range feats {
			if _, ok := b.vocabulary[f]; !ok {
				continue
			}
			score += math.Log((float64(b.tokenCounts[in][f]) + 1) / denom)
		}
		scores[i] = score
	}

	best := 0
	maxScore := scores[0]
	for i, s := range scores {
		if s > maxScore {
			maxScore = s
			best = i
		}
	}
	sum := 0.0
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	return Prediction{Intent: b.labels[best], Probability: 1 / sum}
}
