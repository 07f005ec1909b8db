package conversation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

var t0 = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func userMessage(t *testing.T, text string, at time.Time, in intent.Intent, success bool) Message {
	t.Helper()
	m, err := NewMessage(SenderUser, text, at)
	require.NoError(t, err)
	m.Intent = in
	m.Success = success
	m.Confidence = 0.8
	return m
}

func TestKey_RoundTrip(t *testing.T) {
	t.Parallel()

	k := Key{UserID: 12, CompanyID: 7}
	assert.Equal(t, "12_7", k.String())
	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	for _, bad := range []string{"", "12", "a_7", "12_b"} {
		_, err := ParseKey(bad)
		require.ErrorIs(t, err, ErrInvalidKey, bad)
	}
	assert.False(t, Key{UserID: 0, CompanyID: 1}.Valid())
}

func TestNewMessage_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMessage(SenderUser, "", t0)
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = NewMessage("system", "hola", t0)
	require.ErrorIs(t, err, ErrInvalidSender)
	_, err = NewMessage(SenderBot, string(make([]byte, MaxMessageLength+1)), t0)
	require.ErrorIs(t, err, ErrMessageTooLong)

	_, err = NewMessage(SenderUser, strings.Repeat("ñ", MaxMessageLength), t0)
	require.NoError(t, err)
	_, err = NewMessage(SenderUser, strings.Repeat("ñ", MaxMessageLength+1), t0)
	require.ErrorIs(t, err, ErrMessageTooLong)

	m, err := NewMessage(SenderBot, "hola", t0)
	require.NoError(t, err)
	assert.Equal(t, intent.Unknown, m.Intent)
	assert.False(t, m.FromUser())
}

func TestRecord_AppendEvictsOldest(t *testing.T) {
	t.Parallel()

	r := New(Key{UserID: 1, CompanyID: 1}, t0)
	for i := 0; i < MaxMessages+1; i++ {
		r.Append(userMessage(t, fmt.Sprintf("mensaje %d", i), t0.Add(time.Duration(i)*time.Minute), intent.Count, true))
	}

	require.Len(t, r.Messages, MaxMessages)
	assert.Equal(t, "mensaje 1", r.Messages[0].Text)
	assert.Equal(t, fmt.Sprintf("mensaje %d", MaxMessages), r.Messages[MaxMessages-1].Text)
	assert.Equal(t, t0.Add(MaxMessages*time.Minute), r.LastActivity)
	assert.Equal(t, r.LastActivity, r.Newest())
}

func TestRecord_Expired(t *testing.T) {
	t.Parallel()

	r := New(Key{UserID: 1, CompanyID: 1}, t0)
	assert.Equal(t, t0, r.Newest())
	r.Append(userMessage(t, "hola", t0.Add(time.Hour), intent.Greeting, true))

	assert.False(t, r.Expired(t0.Add(time.Hour)))
	assert.True(t, r.Expired(t0.Add(time.Hour+time.Nanosecond)))
}

func TestRecord_Recent(t *testing.T) {
	t.Parallel()

	r := New(Key{UserID: 1, CompanyID: 1}, t0)
	assert.Empty(t, r.Recent(10))
	for i := 0; i < 12; i++ {
		r.Append(userMessage(t, fmt.Sprintf("m%d", i), t0, intent.Count, true))
	}
	recent := r.Recent(10)
	require.Len(t, recent, 10)
	assert.Equal(t, "m2", recent[0].Text)
	assert.Equal(t, "m11", recent[9].Text)
}

func TestRecord_ObserveUpdatesPatterns(t *testing.T) {
	t.Parallel()

	r := New(Key{UserID: 1, CompanyID: 1}, t0)
	ok := userMessage(t, "cuantos conductores activos", t0, intent.CountDriver, true)
	ok.Entities = map[string][]string{"numbers": {"5"}, "dates": {}}
	r.Observe(ok, []string{"cuantos", "conductores", "activos", "hay"})
	bad := userMessage(t, "cosa rara", t0.Add(2*time.Hour), intent.Unknown, false)
	bad.Confidence = 0.1
	r.Observe(bad, []string{"cosa", "rara"})

	p := r.Patterns
	assert.Equal(t, 1, p.IntentCounts[intent.CountDriver])
	assert.Equal(t, Tally{Success: 1, Total: 1}, p.IntentSuccess[intent.CountDriver])
	assert.Equal(t, Tally{Success: 0, Total: 1}, p.IntentSuccess[intent.Unknown])
	assert.Equal(t, 1, p.HourlyUsage[9])
	assert.Equal(t, 1, p.HourlyUsage[11])
	assert.Equal(t, map[string]int{"numbers": 1}, p.EntityTypes)
	assert.Equal(t, map[string]int{"cuantos": 1, "conductores": 1, "activos": 1}, p.SuccessfulPhrases)
	assert.Equal(t, map[string]int{"cosa": 1, "rara": 1}, p.ProblematicPhrases)
	assert.InDelta(t, 0.8, p.Confidence[intent.CountDriver].Average(), 1e-9)
	assert.Equal(t, 2, r.TotalTurns())
	assert.Equal(t, 1, r.SuccessfulTurns())
}

func TestRecord_CloneIsDeep(t *testing.T) {
	t.Parallel()

	r := New(Key{UserID: 1, CompanyID: 1}, t0)
	m := userMessage(t, "hola", t0, intent.Greeting, true)
	m.Entities = map[string][]string{"persons": {"Ana"}}
	r.Append(m)
	r.Observe(m, []string{"hola"})
	r.Suggestions = []Suggestion{{Text: "x", Relevance: 0.5}}

	c := r.Clone()
	c.Messages[0].Entities["persons"][0] = "Luis"
	c.Patterns.IntentCounts[intent.Greeting] = 99
	c.Suggestions[0].Text = "y"

	assert.Equal(t, "Ana", r.Messages[0].Entities["persons"][0])
	assert.Equal(t, 1, r.Patterns.IntentCounts[intent.Greeting])
	assert.Equal(t, "x", r.Suggestions[0].Text)
}

func TestPatterns_RankedIntents(t *testing.T) {
	t.Parallel()

	p := NewPatterns()
	p.IntentSuccess[intent.LicenseExpiry] = Tally{Success: 8, Total: 10}
	p.IntentSuccess[intent.CountDriver] = Tally{Success: 2, Total: 2}
	p.IntentSuccess[intent.Greeting] = Tally{Success: 0, Total: 0}

	ranked := p.RankedIntents()
	require.Len(t, ranked, 2)
	assert.Equal(t, intent.CountDriver, ranked[0].Intent)
	assert.Equal(t, intent.LicenseExpiry, ranked[1].Intent)
	assert.InDelta(t, 0.8, ranked[1].Rate, 1e-9)
}

func TestTopCounts(t *testing.T) {
	t.Parallel()

	got := TopCounts(map[string]int{"a": 3, "b": 5, "c": 2, "d": 3}, 2, 2)
	assert.Equal(t, []Count{{Name: "b", Count: 5}, {Name: "a", Count: 3}}, got)
}

func TestMergeSuggestions(t *testing.T) {
	t.Parallel()

	learned := []Suggestion{
		{Text: "A", Relevance: 0.72, Origin: OriginLearned},
		{Text: "B", Relevance: 0.9, Origin: OriginLearned},
	}
	defaults := []Suggestion{
		{Text: "A", Relevance: 0.5, Origin: OriginDefault},
		{Text: "C", Relevance: 0.6, Origin: OriginDefault},
		{Text: "D", Relevance: 0.4, Origin: OriginDefault},
		{Text: "E", Relevance: 0.3, Origin: OriginDefault},
		{Text: "F", Relevance: 0.2, Origin: OriginDefault},
		{Text: "", Relevance: 1},
	}

	got := MergeSuggestions(MaxSuggestions, learned, defaults)
	require.Len(t, got, MaxSuggestions)
	texts := make([]string, len(got))
	for i, s := range got {
		texts[i] = s.Text
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Relevance, s.Relevance)
		}
	}
	assert.Equal(t, []string{"B", "A", "C", "D", "E"}, texts)
	assert.Equal(t, OriginLearned, got[1].Origin)
}
