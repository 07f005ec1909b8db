package conversation

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
	ErrInvalidSender  = errors.New("invalid sender")
)

// MaxMessageLength is counted in runes.
const MaxMessageLength = 2000

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one turn of a conversation. It is never modified after being
// appended to a Record.
type Message struct {
	ID         uuid.UUID
	Text       string
	Sender     Sender
	Timestamp  time.Time
	Intent     intent.Intent
	Entities   map[string][]string
	Success    bool
	Confidence float64
}

func NewMessage(sender Sender, text string, timestamp time.Time) (Message, error) {
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return Message{}, ErrMessageTooLong
	}
	switch sender {
	case SenderUser, SenderBot:
	default:
		return Message{}, ErrInvalidSender
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return Message{
		ID:        uuid.New(),
		Text:      text,
		Sender:    sender,
		Timestamp: timestamp,
		Intent:    intent.Unknown,
	}, nil
}

func (m Message) FromUser() bool {
	return m.Sender == SenderUser
}

func (m Message) Clone() Message {
	c := m
	if m.Entities != nil {
		c.Entities = make(map[string][]string, len(m.Entities))
		for k, v := range m.Entities {
			c.Entities[k] = append([]string(nil), v...)
		}
	}
	return c
}
