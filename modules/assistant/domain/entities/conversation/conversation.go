package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRecordNotFound = errors.New("conversation record not found")
	ErrInvalidKey     = errors.New("invalid conversation key")
)

// MaxMessages bounds the history kept per record; older messages are evicted first.
const MaxMessages = 50

// Key identifies a record by user and company.
type Key struct {
	UserID    int64
	CompanyID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%d", k.UserID, k.CompanyID)
}

func (k Key) Valid() bool {
	return k.UserID > 0 && k.CompanyID > 0
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	user, company, ok := strings.Cut(s, "_")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	u, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	c, err := strconv.ParseInt(company, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{UserID: u, CompanyID: c}, nil
}

type Repository interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Put(ctx context.Context, record *Record) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context) ([]*Record, error)
	// Sweep deletes every record whose newest activity is before cutoff and
	// returns the deleted keys.
	Sweep(ctx context.Context, cutoff time.Time) ([]Key, error)
}

// Snapshot is the durable image of all records.
type Snapshot struct {
	Memories  map[Key]*Record
	LastSaved time.Time
}

// SnapshotStore persists records outside the process. It is read once at
// startup and written asynchronously afterwards.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Write(ctx context.Context, upserts []*Record, deletes []Key) error
}

// Record is the per user and company conversation state.
type Record struct {
	Key          Key
	Messages     []Message
	Patterns     Patterns
	Suggestions  []Suggestion
	Created      time.Time
	LastActivity time.Time
}

func New(key Key, now time.Time) *Record {
	return &Record{
		Key:          key,
		Patterns:     NewPatterns(),
		Created:      now,
		LastActivity: now,
	}
}

// Append adds msg, evicts the oldest messages beyond MaxMessages and
// invalidates the suggestion cache.
func (r *Record) Append(msg Message) {
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > MaxMessages {
		trimmed := make([]Message, MaxMessages)
		copy(trimmed, r.Messages[len(r.Messages)-MaxMessages:])
		r.Messages = trimmed
	}
	if msg.Timestamp.After(r.LastActivity) {
		r.LastActivity = msg.Timestamp
	}
	r.Suggestions = nil
}

// Newest returns the timestamp of the most recent message, falling back to
// the creation time for an empty record.
func (r *Record) Newest() time.Time {
	if n := len(r.Messages); n > 0 {
		return r.Messages[n-1].Timestamp
	}
	return r.Created
}

// Expired reports whether the newest message is strictly older than cutoff.
func (r *Record) Expired(cutoff time.Time) bool {
	return r.Newest().Before(cutoff)
}

// Recent returns up to n newest messages, oldest first.
func (r *Record) Recent(n int) []Message {
	if n <= 0 {
		return nil
	}
	start := len(r.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(r.Messages)-start)
	copy(out, r.Messages[start:])
	return out
}

// Observe folds a user turn into the pattern aggregates. tokens are the
// normalised tokens of msg.Text.
func (r *Record) Observe(msg Message, tokens []string) {
	r.Patterns.observe(msg, tokens)
	r.Suggestions = nil
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		c.Messages[i] = m.Clone()
	}
	c.Patterns = r.Patterns.Clone()
	if r.Suggestions != nil {
		c.Suggestions = make([]Suggestion, len(r.Suggestions))
		copy(c.Suggestions, r.Suggestions)
	}
	return &c
}

// TotalTurns and SuccessfulTurns count observed user turns.
func (r *Record) TotalTurns() int {
	total := 0
	for _, t := range r.Patterns.IntentSuccess {
		total += t.Total
	}
	return total
}

func (r *Record) SuccessfulTurns() int {
	total := 0
	for _, t := range r.Patterns.IntentSuccess {
		total += t.Success
	}
	return total
}
