package services

import (
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// canonicalQuestions is the question text offered back for a learned intent.
// Intents without an entry are never suggested.
var canonicalQuestions = map[intent.Intent]string{
	intent.Status:                "¿Cuál es el estado de la flota?",
	intent.Count:                 "¿Cuántos vehículos hay registrados?",
	intent.Report:                "Genera un reporte de la operación",
	intent.Maintenance:           "¿Qué vehículos están en mantenimiento?",
	intent.License:               "¿Qué licencias vencen pronto?",
	intent.Route:                 "Muestra las rutas activas",
	intent.Schedule:              "Muestra los viajes programados",
	intent.Driver:                "Muestra los conductores activos",
	intent.Vehicle:               "Muestra los vehículos disponibles",
	intent.SystemStatus:          "¿Cuál es el estado general del sistema?",
	intent.DriverLicense:         "Muestra las licencias de los conductores",
	intent.LicenseExpiry:         "¿Qué licencias vencen pronto?",
	intent.VehicleMaintenance:    "¿Qué vehículos están en mantenimiento?",
	intent.CountDriver:           "¿Cuántos conductores están activos?",
	intent.CountVehicle:          "¿Cuántos vehículos están disponibles?",
	intent.ListDriver:            "Muestra la lista de conductores",
	intent.ListVehicle:           "Muestra la lista de vehículos",
	intent.ListRoute:             "Muestra las rutas activas",
	intent.ListSchedule:          "Muestra los viajes programados",
	intent.Alerts:                "Muestra las alertas de vencimiento",
	intent.ExpiryAlerts:          "¿Qué documentos están por vencer?",
	intent.Dashboard:             "Muestra el tablero operacional",
	intent.Summary:               "Genera un resumen operacional",
	intent.DriverPerformance:     "¿Cuál es el rendimiento de los conductores?",
	intent.VehiclePerformance:    "¿Cuál es el rendimiento de los vehículos?",
	intent.RoutePerformance:      "¿Cuál es el rendimiento de las rutas?",
	intent.PredictiveMaintenance: "¿Qué vehículos necesitarán mantenimiento pronto?",
	intent.PredictiveLicense:     "¿Qué licencias vencerán pronto?",
}

var defaultSuggestions = []conversation.Suggestion{
	{Text: "¿Cuál es el estado general del sistema?", Relevance: 0.6, Category: string(intent.SystemStatus), Origin: conversation.OriginDefault},
	{Text: "¿Cuántos conductores están activos?", Relevance: 0.55, Category: string(intent.CountDriver), Origin: conversation.OriginDefault},
	{Text: "¿Cuántos vehículos están disponibles?", Relevance: 0.5, Category: string(intent.CountVehicle), Origin: conversation.OriginDefault},
	{Text: "Muestra las alertas de vencimiento", Relevance: 0.45, Category: string(intent.Alerts), Origin: conversation.OriginDefault},
	{Text: "¿Qué licencias vencen pronto?", Relevance: 0.4, Category: string(intent.LicenseExpiry), Origin: conversation.OriginDefault},
	{Text: "¿Qué vehículos están en mantenimiento?", Relevance: 0.35, Category: string(intent.VehicleMaintenance), Origin: conversation.OriginDefault},
}

const (
	learnedIntentRate    = 0.7
	learnedIntentLimit   = 3
	learnedIntentWeight  = 0.9
	learnedPhraseMin     = 2
	learnedPhraseLimit   = 3
	learnedPhraseBase    = 0.3
	learnedPhraseStep    = 0.05
	learnedPhraseCeiling = 0.7
	phraseCategory       = "phrase"
)

// learnedSuggestions derives suggestions from the record's patterns.
func learnedSuggestions(p conversation.Patterns) []conversation.Suggestion {
	out := []conversation.Suggestion{}
	taken := 0
	for _, ranked := range p.RankedIntents() {
		if taken == learnedIntentLimit {
			break
		}
		if ranked.Rate <= learnedIntentRate {
			break
		}
		text, ok := canonicalQuestions[ranked.Intent]
		if !ok {
			continue
		}
		out = append(out, conversation.Suggestion{
			Text:      text,
			Relevance: ranked.Rate * learnedIntentWeight,
			Category:  string(ranked.Intent),
			Origin:    conversation.OriginLearned,
		})
		taken++
	}
	for _, phrase := range conversation.TopCounts(p.SuccessfulPhrases, learnedPhraseLimit, learnedPhraseMin) {
		out = append(out, conversation.Suggestion{
			Text:      "Consultar sobre " + phrase.Name,
			Relevance: min(learnedPhraseBase+learnedPhraseStep*float64(phrase.Count), learnedPhraseCeiling),
			Category:  phraseCategory,
			Origin:    conversation.OriginLearned,
		})
	}
	return out
}

func suggestionsFor(record *conversation.Record) []conversation.Suggestion {
	if record == nil {
		return conversation.MergeSuggestions(conversation.MaxSuggestions, defaultSuggestions)
	}
	return conversation.MergeSuggestions(conversation.MaxSuggestions, learnedSuggestions(record.Patterns), defaultSuggestions)
}
