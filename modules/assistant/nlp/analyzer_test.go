package nlp

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewDefaultAnalyzer(DefaultMinBayesProbability, WithClock(clockwork.NewFakeClockAt(fixedNow)))
	require.NoError(t, err)
	return a
}

func TestAnalyzer_CountDriverScenario(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t).Analyze("¿Cuántos conductores están activos?")

	assert.Equal(t, intent.CountDriver, a.Intent)
	assert.Equal(t, []string{"cuántos", "conductores", "están", "activos"}, a.Tokens)
	assert.Equal(t, []string{"cuanto", "conductor", "estan", "activo"}, a.StemmedTokens)
	assert.Equal(t, ScopeAvailable, a.Context.Scope)
	assert.True(t, a.Context.IsQuestion)
	assert.Equal(t, []intent.Domain{intent.DomainDriver}, a.Mentions)
	assert.Equal(t, SentimentNeutral, a.Sentiment)
	assert.Contains(t, a.Keywords, "conductores")
	assert.NotContains(t, a.Keywords, "están")
	assert.InDelta(t, MaxConfidence, a.Confidence, 1e-9)
	assert.False(t, a.IsFallback())
}

func TestAnalyzer_EmptyInputFallsBack(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(t)
	for _, text := range []string{"", "   ", "¿?"} {
		a := analyzer.Analyze(text)
		assert.Equal(t, intent.Unknown, a.Intent, text)
		assert.Equal(t, MinConfidence, a.Confidence, text)
		assert.Zero(t, a.Entities.Count(), text)
		assert.NotNil(t, a.Entities.Get(Dates), text)
		assert.True(t, a.IsFallback(), text)
	}
}

func TestAnalyzer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	// no keyword matches, so the nil classifier is dereferenced
	text := "quien maneja la unidad"
	a := NewAnalyzer(nil).Analyze(text)
	assert.Equal(t, Fallback(text), a)
}

func TestAnalyzer_RangesHoldForAnyInput(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(t)
	inputs := []string{
		"hola", "adiós", "¿qué puedes hacer?", "cosa",
		"¿Cuál es el estado general del sistema?",
		"Muestra los 10 vehículos en mantenimiento desde Cali hacia Bogotá el 15/04/2024 a las 8 am",
		"no quiero ver nada de los conductores inactivos ni de las rutas canceladas del último trimestre",
	}
	for _, text := range inputs {
		a := analyzer.Analyze(text)
		assert.GreaterOrEqual(t, a.Confidence, MinConfidence, text)
		assert.LessOrEqual(t, a.Confidence, MaxConfidence, text)
		assert.GreaterOrEqual(t, a.Complexity, MinAnalysisComplexity, text)
		assert.LessOrEqual(t, a.Complexity, MaxAnalysisComplexity, text)
		assert.True(t, a.Intent.Valid(), text)
	}
}

func TestAnalyzer_UsesInjectedClockForRelativeDates(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t).Analyze("viajes de mañana")
	d, ok := a.Entities.First(Dates)
	require.True(t, ok)
	assert.Equal(t, "2024-03-16", d.Value)
	assert.Equal(t, "2024-03-16", a.Context.TimeReference)
}
