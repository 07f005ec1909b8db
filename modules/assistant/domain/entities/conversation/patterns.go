package conversation

import (
	"sort"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// MinPhraseTokenLength excludes short function words from phrase tables.
const MinPhraseTokenLength = 4

type Tally struct {
	Success int
	Total   int
}

// Rate is Success/Total, 0 when nothing was observed.
func (t Tally) Rate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Success) / float64(t.Total)
}

type Running struct {
	Sum   float64
	Count int
}

func (r Running) Average() float64 {
	if r.Count == 0 {
		return 0
	}
	return r.Sum / float64(r.Count)
}

// Patterns aggregates what a user asks and how well it went.
type Patterns struct {
	IntentCounts       map[intent.Intent]int
	IntentSuccess      map[intent.Intent]Tally
	HourlyUsage        [24]int
	EntityTypes        map[string]int
	SuccessfulPhrases  map[string]int
	ProblematicPhrases map[string]int
	Confidence         map[intent.Intent]Running
}

func NewPatterns() Patterns {
	return Patterns{
		IntentCounts:       map[intent.Intent]int{},
		IntentSuccess:      map[intent.Intent]Tally{},
		EntityTypes:        map[string]int{},
		SuccessfulPhrases:  map[string]int{},
		ProblematicPhrases: map[string]int{},
		Confidence:         map[intent.Intent]Running{},
	}
}

func (p *Patterns) ensure() {
	if p.IntentCounts == nil {
		p.IntentCounts = map[intent.Intent]int{}
	}
	if p.IntentSuccess == nil {
		p.IntentSuccess = map[intent.Intent]Tally{}
	}
	if p.EntityTypes == nil {
		p.EntityTypes = map[string]int{}
	}
	if p.SuccessfulPhrases == nil {
		p.SuccessfulPhrases = map[string]int{}
	}
	if p.ProblematicPhrases == nil {
		p.ProblematicPhrases = map[string]int{}
	}
	if p.Confidence == nil {
		p.Confidence = map[intent.Intent]Running{}
	}
}

func (p *Patterns) observe(msg Message, tokens []string) {
	p.ensure()

	p.IntentCounts[msg.Intent]++

	tally := p.IntentSuccess[msg.Intent]
	tally.Total++
	if msg.Success {
		tally.Success++
	}
	p.IntentSuccess[msg.Intent] = tally

	p.HourlyUsage[msg.Timestamp.Hour()]++

	for category, values := range msg.Entities {
		if len(values) > 0 {
			p.EntityTypes[category] += len(values)
		}
	}

	phrases := p.ProblematicPhrases
	if msg.Success {
		phrases = p.SuccessfulPhrases
	}
	for _, tok := range tokens {
		if len([]rune(tok)) >= MinPhraseTokenLength {
			phrases[tok]++
		}
	}

	running := p.Confidence[msg.Intent]
	running.Sum += msg.Confidence
	running.Count++
	p.Confidence[msg.Intent] = running
}

func (p Patterns) Clone() Patterns {
	c := Patterns{
		IntentCounts:       make(map[intent.Intent]int, len(p.IntentCounts)),
		IntentSuccess:      make(map[intent.Intent]Tally, len(p.IntentSuccess)),
		HourlyUsage:        p.HourlyUsage,
		EntityTypes:        make(map[string]int, len(p.EntityTypes)),
		SuccessfulPhrases:  make(map[string]int, len(p.SuccessfulPhrases)),
		ProblematicPhrases: make(map[string]int, len(p.ProblematicPhrases)),
		Confidence:         make(map[intent.Intent]Running, len(p.Confidence)),
	}
	for k, v := range p.IntentCounts {
		c.IntentCounts[k] = v
	}
	for k, v := range p.IntentSuccess {
		c.IntentSuccess[k] = v
	}
	for k, v := range p.EntityTypes {
		c.EntityTypes[k] = v
	}
	for k, v := range p.SuccessfulPhrases {
		c.SuccessfulPhrases[k] = v
	}
	for k, v := range p.ProblematicPhrases {
		c.ProblematicPhrases[k] = v
	}
	for k, v := range p.Confidence {
		c.Confidence[k] = v
	}
	return c
}

// IntentRate pairs an intent with its observed success rate.
type IntentRate struct {
	Intent intent.Intent
	Rate   float64
	Total  int
}

// RankedIntents returns intents ordered by success rate descending, then by
// volume, then by name so the order is stable.
func (p Patterns) RankedIntents() []IntentRate {
	out := make([]IntentRate, 0, len(p.IntentSuccess))
	for i, t := range p.IntentSuccess {
		if t.Total == 0 {
			continue
		}
		out = append(out, IntentRate{Intent: i, Rate: t.Rate(), Total: t.Total})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Rate != out[b].Rate {
			return out[a].Rate > out[b].Rate
		}
		if out[a].Total != out[b].Total {
			return out[a].Total > out[b].Total
		}
		return out[a].Intent < out[b].Intent
	})
	return out
}

// Count is a name with an occurrence count.
type Count struct {
	Name  string
	Count int
}

// TopCounts sorts m by count descending (name ascending on ties) and keeps
// at most n entries whose count exceeds minCount.
func TopCounts(m map[string]int, n, minCount int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		if v > minCount {
			out = append(out, Count{Name: k, Count: v})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Name < out[b].Name
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
