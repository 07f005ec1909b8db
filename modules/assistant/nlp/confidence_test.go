package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

func score(in intent.Intent, text string) float64 {
	return ScoreConfidence(in, text, FoldAll(Tokenize(text)), Extract(text, fixedNow).Count())
}

func TestScoreConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MinConfidence, score(intent.Unknown, "¿Cuántos conductores están activos?"))
	assert.Equal(t, MaxConfidence, score(intent.CountDriver, "¿Cuántos conductores están activos?"))
	// 0.3 base + 0.1 single sentence - 0.1 single token
	assert.InDelta(t, 0.3, score(intent.Greeting, "hola"), 1e-9)
	// ambiguous wording costs 0.1
	assert.Less(t, score(intent.Driver, "algo de conductores"), score(intent.Driver, "nombres de conductores"))
}

func TestScoreConfidence_AlwaysClamped(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", "x", "¿?", "cosa algo eso",
		"¿Cuál es el estado general del sistema y cuántas licencias vencen el 15/04/2024 en Bogotá?",
		"conductor conductor conductor vehiculo vehiculo licencia licencia mantenimiento ruta viaje soat placa",
	}
	for _, in := range intent.All() {
		for _, text := range inputs {
			c := score(in, text)
			assert.GreaterOrEqual(t, c, MinConfidence)
			assert.LessOrEqual(t, c, MaxConfidence)
		}
	}
}

func TestScoreConfidence_Factors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		intent   intent.Intent
		text     string
		folded   []string
		entities int
		want     float64
	}{
		{"baseline", intent.Greeting, "ab cd", []string{"ab", "cd"}, 0, 0.4},
		{"single token", intent.Greeting, "ab", []string{"ab"}, 0, 0.3},
		{"two sentences", intent.Greeting, "ab. cd", []string{"ab", "cd"}, 0, 0.3},
		{"more than three tokens", intent.Greeting, "ab cd ef gh", []string{"ab", "cd", "ef", "gh"}, 0, 0.65},
		{"more than six tokens", intent.Greeting, "ab cd ef gh ij kl mn", []string{"ab", "cd", "ef", "gh", "ij", "kl", "mn"}, 0, 0.75},
		{"one keyword", intent.Greeting, "ab soat", []string{"ab", "soat"}, 0, 0.48},
		{"two keywords", intent.Greeting, "soat ruta", []string{"soat", "ruta"}, 0, 0.56},
		{"two entities", intent.Greeting, "ab cd", []string{"ab", "cd"}, 2, 0.5},
		{"entity bonus capped", intent.Greeting, "ab cd", []string{"ab", "cd"}, 10, 0.6},
		{"long average token", intent.Greeting, "abcdef ghijkl", []string{"abcdef", "ghijkl"}, 0, 0.5},
		{"interrogative without mark", intent.Greeting, "que cd", []string{"que", "cd"}, 0, 0.5},
		{"interrogative with mark", intent.Greeting, "¿que cd?", []string{"que", "cd"}, 0, 0.6},
		{"statement without mark", intent.Greeting, "ab cd ef", []string{"ab", "cd", "ef"}, 0, 0.5},
		{"statement with mark", intent.Greeting, "ab cd ef?", []string{"ab", "cd", "ef"}, 0, 0.4},
		{"specific intent", intent.CountDriver, "ab cd", []string{"ab", "cd"}, 0, 0.5},
		{"ambiguous term", intent.Greeting, "algo cd", []string{"algo", "cd"}, 0, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, ScoreConfidence(tc.intent, tc.text, tc.folded, tc.entities), 1e-9)
		})
	}
}
