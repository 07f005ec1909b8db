package models

import (
	"time"
)

type Message struct {
	ID         string              `json:"id"`
	Text       string              `json:"text"`
	Sender     string              `json:"sender"`
	Timestamp  time.Time           `json:"timestamp"`
	Intent     string              `json:"intent"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Success    bool                `json:"success"`
	Confidence float64             `json:"confidence"`
}

type Tally struct {
	Success int `json:"success"`
	Total   int `json:"total"`
}

type Running struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

type Patterns struct {
	IntentCounts       map[string]int     `json:"intent_counts"`
	IntentSuccess      map[string]Tally   `json:"intent_success"`
	HourlyUsage        []int              `json:"hourly_usage"`
	EntityTypes        map[string]int     `json:"entity_types"`
	SuccessfulPhrases  map[string]int     `json:"successful_phrases"`
	ProblematicPhrases map[string]int     `json:"problematic_phrases"`
	Confidence         map[string]Running `json:"confidence"`
}

type Suggestion struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	Category  string  `json:"category"`
	Origin    string  `json:"origin"`
}

type Conversation struct {
	UserID       int64        `json:"user_id"`
	CompanyID    int64        `json:"company_id"`
	Messages     []Message    `json:"messages"`
	Patterns     Patterns     `json:"patterns"`
	Suggestions  []Suggestion `json:"suggestions,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
}

// Snapshot is the exported image of every conversation, keyed by
// "<user>_<company>".
type Snapshot struct {
	Memories  map[string]Conversation `json:"memories"`
	LastSaved time.Time               `json:"last_saved"`
}
