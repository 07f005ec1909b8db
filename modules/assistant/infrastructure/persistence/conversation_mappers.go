package persistence

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence/models"
)

func ToDBMessage(msg conversation.Message) models.Message {
	entities := make(map[string][]string, len(msg.Entities))
	for k, v := range msg.Entities {
		entities[k] = append([]string(nil), v...)
	}
	return models.Message{
		ID:         msg.ID.String(),
		Text:       msg.Text,
		Sender:     string(msg.Sender),
		Timestamp:  msg.Timestamp,
		Intent:     string(msg.Intent),
		Entities:   entities,
		Success:    msg.Success,
		Confidence: msg.Confidence,
	}
}

func ToDomainMessage(model models.Message) (conversation.Message, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return conversation.Message{}, errors.Wrap(err, fmt.Sprintf("failed to parse message UUID from string: %s", model.ID))
	}
	sender := conversation.Sender(model.Sender)
	if sender != conversation.SenderUser && sender != conversation.SenderBot {
		return conversation.Message{}, errors.Wrap(conversation.ErrInvalidSender, model.Sender)
	}
	return conversation.Message{
		ID:         id,
		Text:       model.Text,
		Sender:     sender,
		Timestamp:  model.Timestamp,
		Intent:     intent.Parse(model.Intent),
		Entities:   model.Entities,
		Success:    model.Success,
		Confidence: model.Confidence,
	}, nil
}

func toDBPatterns(p conversation.Patterns) models.Patterns {
	out := models.Patterns{
		IntentCounts:       make(map[string]int, len(p.IntentCounts)),
		IntentSuccess:      make(map[string]models.Tally, len(p.IntentSuccess)),
		HourlyUsage:        append([]int(nil), p.HourlyUsage[:]...),
		EntityTypes:        p.EntityTypes,
		SuccessfulPhrases:  p.SuccessfulPhrases,
		ProblematicPhrases: p.ProblematicPhrases,
		Confidence:         make(map[string]models.Running, len(p.Confidence)),
	}
	for k, v := range p.IntentCounts {
		out.IntentCounts[string(k)] = v
	}
	for k, v := range p.IntentSuccess {
		out.IntentSuccess[string(k)] = models.Tally{Success: v.Success, Total: v.Total}
	}
	for k, v := range p.Confidence {
		out.Confidence[string(k)] = models.Running{Sum: v.Sum, Count: v.Count}
	}
	return out
}

func toDomainPatterns(model models.Patterns) (conversation.Patterns, error) {
	if len(model.HourlyUsage) > 24 {
		return conversation.Patterns{}, errors.Errorf("hourly usage has %d buckets", len(model.HourlyUsage))
	}
	p := conversation.NewPatterns()
	copy(p.HourlyUsage[:], model.HourlyUsage)
	for k, v := range model.IntentCounts {
		p.IntentCounts[intent.Parse(k)] += v
	}
	for k, v := range model.IntentSuccess {
		p.IntentSuccess[intent.Parse(k)] = conversation.Tally{Success: v.Success, Total: v.Total}
	}
	for k, v := range model.EntityTypes {
		p.EntityTypes[k] = v
	}
	for k, v := range model.SuccessfulPhrases {
		p.SuccessfulPhrases[k] = v
	}
	for k, v := range model.ProblematicPhrases {
		p.ProblematicPhrases[k] = v
	}
	for k, v := range model.Confidence {
		p.Confidence[intent.Parse(k)] = conversation.Running{Sum: v.Sum, Count: v.Count}
	}
	return p, nil
}

func ToDBConversation(r *conversation.Record) models.Conversation {
	messages := make([]models.Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		messages = append(messages, ToDBMessage(msg))
	}
	suggestions := make([]models.Suggestion, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		suggestions = append(suggestions, models.Suggestion{
			Text:      s.Text,
			Relevance: s.Relevance,
			Category:  s.Category,
			Origin:    string(s.Origin),
		})
	}
	return models.Conversation{
		UserID:       r.Key.UserID,
		CompanyID:    r.Key.CompanyID,
		Messages:     messages,
		Patterns:     toDBPatterns(r.Patterns),
		Suggestions:  suggestions,
		CreatedAt:    r.Created,
		LastActivity: r.LastActivity,
	}
}

func ToDomainConversation(model models.Conversation) (*conversation.Record, error) {
	key := conversation.Key{UserID: model.UserID, CompanyID: model.CompanyID}
	if !key.Valid() {
		return nil, errors.Wrap(conversation.ErrInvalidKey, key.String())
	}
	patterns, err := toDomainPatterns(model.Patterns)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to map patterns of %s", key))
	}
	messages := make([]conversation.Message, 0, len(model.Messages))
	for _, m := range model.Messages {
		msg, err := ToDomainMessage(m)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to map message of %s", key))
		}
		messages = append(messages, msg)
	}
	if len(messages) > conversation.MaxMessages {
		messages = messages[len(messages)-conversation.MaxMessages:]
	}
	var suggestions []conversation.Suggestion
	for _, s := range model.Suggestions {
		suggestions = append(suggestions, conversation.Suggestion{
			Text:      s.Text,
			Relevance: s.Relevance,
			Category:  s.Category,
			Origin:    conversation.Origin(s.Origin),
		})
	}
	return &conversation.Record{
		Key:          key,
		Messages:     messages,
		Patterns:     patterns,
		Suggestions:  suggestions,
		Created:      model.CreatedAt,
		LastActivity: model.LastActivity,
	}, nil
}

// ToDBSnapshot renders the JSON-shaped export of a snapshot.
func ToDBSnapshot(s conversation.Snapshot) models.Snapshot {
	out := models.Snapshot{
		Memories:  make(map[string]models.Conversation, len(s.Memories)),
		LastSaved: s.LastSaved,
	}
	for key, r := range s.Memories {
		out.Memories[key.String()] = ToDBConversation(r)
	}
	return out
}
