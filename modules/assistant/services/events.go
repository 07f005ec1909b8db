package services

import (
	"time"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// TurnProcessedEvent is published after every ProcessQuery call.
type TurnProcessedEvent struct {
	Key            conversation.Key
	Intent         intent.Intent
	Confidence     float64
	Success        bool
	Table          string
	ResultCount    int
	ProcessingTime time.Duration
	Timestamp      time.Time
}

type MemoryForgottenEvent struct {
	Key       conversation.Key
	Timestamp time.Time
}
