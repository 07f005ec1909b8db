package nlp

import (
	"runtime/debug"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

const (
	MinAnalysisComplexity = 1
	MaxAnalysisComplexity = 3
)

// Analysis is the structured reading of one message.
type Analysis struct {
	Text          string
	Tokens        []string
	StemmedTokens []string
	Intent        intent.Intent
	Confidence    float64
	Complexity    int
	Keywords      []string
	Sentiment     Sentiment
	Entities      Entities
	Context       Context
	Mentions      []intent.Domain
	Source        Source
}

// Folded returns the accent-folded tokens.
func (a Analysis) Folded() []string {
	return FoldAll(a.Tokens)
}

func (a Analysis) IsFallback() bool {
	return a.Source == SourceFallback && a.Intent == intent.Unknown
}

// Fallback is the fixed analysis returned for empty input or when a stage fails.
func Fallback(text string) Analysis {
	return Analysis{
		Text:          text,
		Tokens:        []string{},
		StemmedTokens: []string{},
		Intent:        intent.Unknown,
		Confidence:    MinConfidence,
		Complexity:    MinAnalysisComplexity,
		Keywords:      []string{},
		Sentiment:     SentimentNeutral,
		Entities:      EmptyEntities(),
		Context:       Context{Scope: ScopeGeneral},
		Source:        SourceFallback,
	}
}

type Analyzer struct {
	classifier *Classifier
	clock      clockwork.Clock
	logger     *logrus.Entry
}

type AnalyzerOption func(*Analyzer)

func WithClock(clock clockwork.Clock) AnalyzerOption {
	return func(a *Analyzer) {
		if clock != nil {
			a.clock = clock
		}
	}
}

func WithLogger(logger *logrus.Entry) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAnalyzer(classifier *Classifier, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		classifier: classifier,
		clock:      clockwork.NewRealClock(),
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewDefaultAnalyzer trains the Bayes model on the embedded corpus.
func NewDefaultAnalyzer(minBayesProbability float64, opts ...AnalyzerOption) (*Analyzer, error) {
	bayes, err := TrainBayes(DefaultCorpus())
	if err != nil {
		return nil, err
	}
	return NewAnalyzer(NewClassifier(bayes, minBayesProbability), opts...), nil
}

// Analyze never fails: empty input and panics in any stage produce Fallback.
func (a *Analyzer) Analyze(text string) (result Analysis) {
	if strings.TrimSpace(text) == "" {
		return Fallback(text)
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("nlp analysis panicked, using fallback")
			result = Fallback(text)
		}
	}()

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Fallback(text)
	}
	folded := FoldAll(tokens)
	entities := Extract(text, a.clock.Now())
	classification := a.classifier.Classify(text, folded)
	shape := AnalyzeContext(text, folded, entities)

	return Analysis{
		Text:          text,
		Tokens:        tokens,
		StemmedTokens: StemAll(tokens),
		Intent:        classification.Intent,
		Confidence:    ScoreConfidence(classification.Intent, text, folded, entities.Count()),
		Complexity:    analysisComplexity(folded, entities, shape),
		Keywords:      keywords(tokens),
		Sentiment:     DetectSentiment(folded),
		Entities:      entities,
		Context:       shape,
		Mentions:      Mentions(folded),
		Source:        classification.Source,
	}
}

func analysisComplexity(folded []string, entities Entities, ctx Context) int {
	c := MinAnalysisComplexity
	if len(folded) > 8 {
		c++
	}
	if entities.NonEmpty() >= 2 || ctx.HasNegation {
		c++
	}
	return min(c, MaxAnalysisComplexity)
}

// keywords are the distinct content tokens longer than two characters.
func keywords(tokens []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, tok := range ContentTokens(tokens) {
		if len([]rune(tok)) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
