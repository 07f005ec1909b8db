package dtos

import "time"

type QueryRequestDTO struct {
	Message string `json:"message"`
}

type SuggestionDTO struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	Category  string  `json:"category"`
	Origin    string  `json:"origin"`
}

type PlanDTO struct {
	SQL           string  `json:"sql,omitempty"`
	Params        []any   `json:"params,omitempty"`
	Table         string  `json:"table,omitempty"`
	Explanation   string  `json:"explanation"`
	Complexity    float64 `json:"complexity"`
	EstimatedRows int     `json:"estimatedRows"`
	IsMultiQuery  bool    `json:"isMultiQuery"`
}

type ContextDTO struct {
	IsQuestion    bool   `json:"isQuestion"`
	HasNegation   bool   `json:"hasNegation"`
	IsImperative  bool   `json:"isImperative"`
	TimeReference string `json:"timeReference,omitempty"`
	Scope         string `json:"scope"`
}

type MetadataDTO struct {
	Classifier   string              `json:"classifier"`
	Complexity   int                 `json:"complexity"`
	Sentiment    string              `json:"sentiment"`
	Keywords     []string            `json:"keywords"`
	Entities     map[string][]string `json:"entities"`
	Context      ContextDTO          `json:"context"`
	RelatedTurns []string            `json:"relatedTurns"`
	Plan         PlanDTO             `json:"plan"`
	Rows         []map[string]any    `json:"rows"`
	ErrorCode    string              `json:"errorCode,omitempty"`
}

type QueryResponseDTO struct {
	Response         string          `json:"response"`
	Intent           string          `json:"intent"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Suggestions      []SuggestionDTO `json:"suggestions"`
	Metadata         MetadataDTO     `json:"metadata"`
}

type IntentStatDTO struct {
	Intent      string `json:"intent"`
	SuccessRate int    `json:"successRate"`
	Total       int    `json:"total"`
}

type CountDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LearningStatsDTO struct {
	TotalInteractions      int             `json:"totalInteractions"`
	SuccessfulInteractions int             `json:"successfulInteractions"`
	SuccessRate            int             `json:"successRate"`
	TopIntents             []IntentStatDTO `json:"topIntents"`
	TopEntityTypes         []CountDTO      `json:"topEntityTypes"`
	ImprovementAreas       []IntentStatDTO `json:"improvementAreas"`
	LastActivity           *time.Time      `json:"lastActivity,omitempty"`
}
