package mappers

import (
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/dtos"
	"github.com/flotatrack/fleet-assistant/modules/assistant/services"
)

func SuggestionsToDTO(in []conversation.Suggestion) []dtos.SuggestionDTO {
	out := make([]dtos.SuggestionDTO, 0, len(in))
	for _, s := range in {
		out = append(out, dtos.SuggestionDTO{
			Text:      s.Text,
			Relevance: s.Relevance,
			Category:  s.Category,
			Origin:    string(s.Origin),
		})
	}
	return out
}

func QueryResponseToDTO(resp services.QueryResponse) *dtos.QueryResponseDTO {
	meta := resp.Metadata
	rows := make([]map[string]any, 0, len(meta.Rows))
	for _, r := range meta.Rows {
		rows = append(rows, r)
	}
	keywords := meta.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	related := meta.RelatedTurns
	if related == nil {
		related = []string{}
	}
	return &dtos.QueryResponseDTO{
		Response:         resp.ResponseText,
		Intent:           resp.Intent.String(),
		Confidence:       resp.Confidence,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		Suggestions:      SuggestionsToDTO(resp.Suggestions),
		Metadata: dtos.MetadataDTO{
			Classifier: string(meta.Classifier),
			Complexity: meta.Complexity,
			Sentiment:  string(meta.Sentiment),
			Keywords:   keywords,
			Entities:   meta.Entities,
			Context: dtos.ContextDTO{
				IsQuestion:    meta.Context.IsQuestion,
				HasNegation:   meta.Context.HasNegation,
				IsImperative:  meta.Context.IsImperative,
				TimeReference: meta.Context.TimeReference,
				Scope:         string(meta.Context.Scope),
			},
			RelatedTurns: related,
			Plan: dtos.PlanDTO{
				SQL:           meta.Plan.SQL,
				Params:        meta.Plan.Params,
				Table:         meta.Plan.Table,
				Explanation:   meta.Plan.Explanation,
				Complexity:    meta.Plan.Complexity,
				EstimatedRows: meta.Plan.EstimatedRows,
				IsMultiQuery:  meta.Plan.IsMultiQuery,
			},
			Rows:      rows,
			ErrorCode: meta.ErrorCode,
		},
	}
}

func intentStatsToDTO(in []services.IntentStat) []dtos.IntentStatDTO {
	out := make([]dtos.IntentStatDTO, 0, len(in))
	for _, s := range in {
		out = append(out, dtos.IntentStatDTO{Intent: s.Intent.String(), SuccessRate: s.SuccessRate, Total: s.Total})
	}
	return out
}

func LearningStatsToDTO(stats services.LearningStats) *dtos.LearningStatsDTO {
	counts := make([]dtos.CountDTO, 0, len(stats.TopEntityTypes))
	for _, c := range stats.TopEntityTypes {
		counts = append(counts, dtos.CountDTO{Name: c.Name, Count: c.Count})
	}
	dto := &dtos.LearningStatsDTO{
		TotalInteractions:      stats.TotalInteractions,
		SuccessfulInteractions: stats.SuccessfulInteractions,
		SuccessRate:            stats.SuccessRate,
		TopIntents:             intentStatsToDTO(stats.TopIntents),
		TopEntityTypes:         counts,
		ImprovementAreas:       intentStatsToDTO(stats.ImprovementAreas),
	}
	if !stats.LastActivity.IsZero() {
		last := stats.LastActivity
		dto.LastActivity = &last
	}
	return dto
}
