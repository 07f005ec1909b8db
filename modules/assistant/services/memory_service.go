package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

const (
	recentWindow      = 10
	maxRelatedTurns   = 5
	minSimilarity     = 0.3
	topStatsLimit     = 5
	improvementCutoff = 0.5
)

// SnapshotScheduler is told about every key whose durable image is stale.
type SnapshotScheduler interface {
	MarkDirty(key conversation.Key)
	MarkDeleted(keys ...conversation.Key)
}

type nopScheduler struct{}

func (nopScheduler) MarkDirty(conversation.Key)       {}
func (nopScheduler) MarkDeleted(...conversation.Key) {}

type MessageInput struct {
	Sender     conversation.Sender
	Text       string
	Intent     intent.Intent
	Entities   map[string][]string
	Success    bool
	Confidence float64
}

type RelatedMessage struct {
	Message    conversation.Message
	Similarity float64
}

type RelevantContext struct {
	Recent  []conversation.Message
	Related []RelatedMessage
}

type IntentStat struct {
	Intent      intent.Intent
	SuccessRate int
	Total       int
}

type LearningStats struct {
	TotalInteractions      int
	SuccessfulInteractions int
	SuccessRate            int
	TopIntents             []IntentStat
	TopEntityTypes         []conversation.Count
	ImprovementAreas       []IntentStat
	LastActivity           time.Time
}

type MemoryServiceConfig struct {
	Repo      conversation.Repository
	Snapshots SnapshotScheduler
	Clock     clockwork.Clock
	Logger    *logrus.Entry
}

// MemoryService owns per user conversation state. Every operation on a key
// runs under that key's lock.
type MemoryService struct {
	repo      conversation.Repository
	snapshots SnapshotScheduler
	clock     clockwork.Clock
	logger    *logrus.Entry
	locks     *keyedMutex
}

func NewMemoryService(config MemoryServiceConfig) *MemoryService {
	s := &MemoryService{
		repo:      config.Repo,
		snapshots: config.Snapshots,
		clock:     config.Clock,
		logger:    config.Logger,
		locks:     newKeyedMutex(),
	}
	if s.snapshots == nil {
		s.snapshots = nopScheduler{}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	return s
}

// load returns the stored record, or nil when there is none.
func (s *MemoryService) load(ctx context.Context, key conversation.Key) (*conversation.Record, error) {
	record, err := s.repo.Get(ctx, key)
	if errors.Is(err, conversation.ErrRecordNotFound) {
		return nil, nil
	}
	return record, err
}

func phraseTokens(text string) []string {
	return nlp.FoldAll(nlp.Tokenize(text))
}

// AddMessage appends a turn, folds user turns into the patterns and queues a
// snapshot of the record.
func (s *MemoryService) AddMessage(ctx context.Context, key conversation.Key, in MessageInput) (conversation.Message, error) {
	if !key.Valid() {
		return conversation.Message{}, conversation.ErrInvalidKey
	}
	now := s.clock.Now()
	msg, err := conversation.NewMessage(in.Sender, in.Text, now)
	if err != nil {
		return conversation.Message{}, err
	}
	if in.Intent.Valid() {
		msg.Intent = in.Intent
	}
	msg.Entities = in.Entities
	msg.Success = in.Success
	msg.Confidence = nlp.ClampConfidence(in.Confidence)

	unlock := s.locks.Lock(key)
	defer unlock()

	record, err := s.load(ctx, key)
	if err != nil {
		return conversation.Message{}, err
	}
	if record == nil {
		record = conversation.New(key, now)
	}
	record.Append(msg.Clone())
	if msg.FromUser() {
		record.Observe(msg, phraseTokens(msg.Text))
	}
	if err := s.repo.Put(ctx, record); err != nil {
		return conversation.Message{}, err
	}
	s.snapshots.MarkDirty(key)
	return msg, nil
}

// GetRelevantContext returns the newest messages plus earlier user turns
// similar to current. A missing record yields an empty context.
func (s *MemoryService) GetRelevantContext(ctx context.Context, key conversation.Key, current string) (RelevantContext, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	result := RelevantContext{Recent: []conversation.Message{}, Related: []RelatedMessage{}}
	record, err := s.load(ctx, key)
	if err != nil || record == nil {
		return result, err
	}
	result.Recent = record.Recent(recentWindow)

	tokens := phraseTokens(current)
	for i := len(record.Messages) - 1; i >= 0; i-- {
		m := record.Messages[i]
		if !m.FromUser() {
			continue
		}
		sim := nlp.Jaccard(tokens, phraseTokens(m.Text))
		if sim > minSimilarity {
			result.Related = append(result.Related, RelatedMessage{Message: m.Clone(), Similarity: sim})
		}
	}
	sort.SliceStable(result.Related, func(a, b int) bool {
		return result.Related[a].Similarity > result.Related[b].Similarity
	})
	if len(result.Related) > maxRelatedTurns {
		result.Related = result.Related[:maxRelatedTurns]
	}
	return result, nil
}

// GetSuggestions returns at most five suggestions, unique by text and sorted
// by relevance. The list is cached on the record until the next turn.
func (s *MemoryService) GetSuggestions(ctx context.Context, key conversation.Key) ([]conversation.Suggestion, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	record, err := s.load(ctx, key)
	if err != nil {
		return suggestionsFor(nil), err
	}
	if record == nil {
		return suggestionsFor(nil), nil
	}
	if record.Suggestions != nil {
		out := make([]conversation.Suggestion, len(record.Suggestions))
		copy(out, record.Suggestions)
		return out, nil
	}

	suggestions := suggestionsFor(record)
	record.Suggestions = suggestions
	if err := s.repo.Put(ctx, record); err != nil {
		s.logger.WithError(err).WithField("key", key.String()).Warn("failed to cache suggestions")
	} else {
		s.snapshots.MarkDirty(key)
	}
	out := make([]conversation.Suggestion, len(suggestions))
	copy(out, suggestions)
	return out, nil
}

func (s *MemoryService) GetLearningStats(ctx context.Context, key conversation.Key) (LearningStats, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	stats := LearningStats{
		TopIntents:       []IntentStat{},
		TopEntityTypes:   []conversation.Count{},
		ImprovementAreas: []IntentStat{},
	}
	record, err := s.load(ctx, key)
	if err != nil || record == nil {
		return stats, err
	}

	stats.TotalInteractions = record.TotalTurns()
	stats.SuccessfulInteractions = record.SuccessfulTurns()
	if stats.TotalInteractions > 0 {
		stats.SuccessRate = percent(float64(stats.SuccessfulInteractions) / float64(stats.TotalInteractions))
	}
	stats.LastActivity = record.LastActivity

	for _, ranked := range record.Patterns.RankedIntents() {
		stat := IntentStat{Intent: ranked.Intent, SuccessRate: percent(ranked.Rate), Total: ranked.Total}
		if len(stats.TopIntents) < topStatsLimit {
			stats.TopIntents = append(stats.TopIntents, stat)
		}
		if ranked.Rate < improvementCutoff {
			stats.ImprovementAreas = append(stats.ImprovementAreas, stat)
		}
	}
	stats.TopEntityTypes = conversation.TopCounts(record.Patterns.EntityTypes, topStatsLimit, 0)
	return stats, nil
}

// Forget removes the record of key. Forgetting an unknown key is not an error.
func (s *MemoryService) Forget(ctx context.Context, key conversation.Key) error {
	if !key.Valid() {
		return conversation.ErrInvalidKey
	}
	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.snapshots.MarkDeleted(key)
	return nil
}

// Restore seeds the repository from a durable snapshot. Records already
// older than maxAge are skipped. It returns the number of restored records.
func (s *MemoryService) Restore(ctx context.Context, store conversation.SnapshotStore, maxAge time.Duration) (int, error) {
	snapshot, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.clock.Now().Add(-maxAge)
	restored := 0
	stale := []conversation.Key{}
	for key, record := range snapshot.Memories {
		if maxAge > 0 && record.Expired(cutoff) {
			stale = append(stale, key)
			continue
		}
		if err := s.repo.Put(ctx, record); err != nil {
			s.logger.WithError(err).WithField("key", key.String()).Warn("failed to restore conversation")
			continue
		}
		restored++
	}
	if len(stale) > 0 {
		s.snapshots.MarkDeleted(stale...)
	}
	s.logger.WithFields(logrus.Fields{
		"restored":   restored,
		"stale":      len(stale),
		"last_saved": snapshot.LastSaved,
	}).Info("conversation memory restored")
	return restored, nil
}

func percent(rate float64) int {
	return int(math.Round(rate * 100))
}

// blank reports whether text has nothing worth remembering.
func blank(text string) bool {
	return strings.TrimSpace(text) == ""
}
