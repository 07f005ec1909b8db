package nlp

import (
	"strings"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

// Keyword sets are matched by substring against folded tokens, so they are
// written folded and chosen so that no set hits a common word of another.
var baseKeywords = map[intent.Intent][]string{
	intent.Greeting:    {"hola", "buenos", "buenas", "saludos", "hey"},
	intent.Farewell:    {"adios", "chao", "bye"},
	intent.Help:        {"ayuda", "ayudar", "help", "puedes", "funciona"},
	intent.Status:      {"estado", "situacion", "general", "sistema", "operacion"},
	intent.Count:       {"cuanto", "cuanta", "cantidad", "numero", "total", "contar"},
	intent.List:        {"mostrar", "muestra", "listar", "lista", "cuales", "dame", "enumera"},
	intent.Filter:      {"filtr", "unicamente", "exclusivamente", "cuyo"},
	intent.Report:      {"reporte", "informe", "resumen", "estadistica", "rendimiento", "desempeno", "analisis"},
	intent.Maintenance: {"mantenimiento", "reparacion", "taller", "averia"},
	intent.License:     {"licencia", "pase", "venc", "expira", "caduc"},
	intent.Route:       {"ruta", "recorrido", "trayecto", "destino"},
	intent.Schedule:    {"viaje", "horario", "programacion", "agenda", "salida", "turno"},
	intent.Driver:      {"conductor", "chofer", "piloto", "motorista"},
	intent.Vehicle:     {"vehicul", "camion", "buses", "flota", "carro", "placa", "furgon"},
	intent.Company:     {"empresa", "compania", "organizacion"},
	intent.User:        {"usuario", "cuenta", "perfil"},
}

// domainNouns recognise which entity kinds a message talks about.
var domainNouns = map[intent.Domain][]string{
	intent.DomainDriver:   baseKeywords[intent.Driver],
	intent.DomainVehicle:  baseKeywords[intent.Vehicle],
	intent.DomainRoute:    baseKeywords[intent.Route],
	intent.DomainSchedule: baseKeywords[intent.Schedule],
	intent.DomainCompany:  baseKeywords[intent.Company],
	intent.DomainUser:     baseKeywords[intent.User],
}

// Keywords returns a copy of the keyword set of a base intent.
func Keywords(in intent.Intent) []string {
	return append([]string(nil), baseKeywords[in]...)
}

func containsAny(token string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}

func anyToken(folded []string, keywords ...string) bool {
	for _, tok := range folded {
		if containsAny(tok, keywords) {
			return true
		}
	}
	return false
}

// PatternMatch is the outcome of the keyword matcher.
type PatternMatch struct {
	Intent intent.Intent
	Score  int
}

// MatchPatterns scores each base intent by the number of folded tokens that
// contain one of its keywords. The highest score wins; ties go to the intent
// declared first.
func MatchPatterns(folded []string) PatternMatch {
	best := PatternMatch{Intent: intent.Unknown}
	for _, in := range intent.Base() {
		score := 0
		for _, tok := range folded {
			if containsAny(tok, baseKeywords[in]) {
				score++
			}
		}
		if score > best.Score {
			best = PatternMatch{Intent: in, Score: score}
		}
	}
	return best
}

// Mentions lists the entity kinds referenced by the folded tokens, in the
// fixed order of intent.Domains.
func Mentions(folded []string) []intent.Domain {
	var out []intent.Domain
	for _, d := range intent.Domains() {
		if anyToken(folded, domainNouns[d]...) {
			out = append(out, d)
		}
	}
	return out
}

var (
	expiryWords      = []string{"venc", "expir", "caduc"}
	predictiveWords  = []string{"pronto", "proxim", "predic", "prever", "anticip"}
	performanceWords = []string{"rendimiento", "desempeno", "eficiencia", "productividad"}
	dashboardWords   = []string{"tablero", "dashboard", "panel"}
)

// refinement combines a base intent with co-occurring tokens into a
// composite. Rules are evaluated in order and the first match wins.
type refinement struct {
	result intent.Intent
	bases  []intent.Intent
	match  func(folded []string) bool
}

func (r refinement) applies(base intent.Intent, folded []string) bool {
	if len(r.bases) > 0 {
		found := false
		for _, b := range r.bases {
			if b == base {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return r.match(folded)
}

func has(keywords ...string) func([]string) bool {
	return func(folded []string) bool { return anyToken(folded, keywords...) }
}

func all(preds ...func([]string) bool) func([]string) bool {
	return func(folded []string) bool {
		for _, p := range preds {
			if !p(folded) {
				return false
			}
		}
		return true
	}
}

var (
	hasDriver   = has(baseKeywords[intent.Driver]...)
	hasVehicle  = has(baseKeywords[intent.Vehicle]...)
	hasRoute    = has(baseKeywords[intent.Route]...)
	hasSchedule = has(baseKeywords[intent.Schedule]...)
	hasExpiry   = has(expiryWords...)
	hasLicense  = has("licencia", "pase")
)

var refinements = []refinement{
	{intent.SystemStatus, []intent.Intent{intent.Status}, has("general", "sistema")},
	{intent.ExpiryAlerts, nil, all(has("alerta"), hasExpiry)},
	{intent.Alerts, nil, has("alerta")},
	{intent.PredictiveMaintenance, nil, all(has(predictiveWords...), has("mantenimiento", "reparacion", "taller"))},
	{intent.PredictiveLicense, nil, all(has(predictiveWords...), hasLicense)},
	{intent.LicenseExpiry, []intent.Intent{intent.Driver, intent.License}, hasExpiry},
	{intent.DriverLicense, []intent.Intent{intent.Driver, intent.License}, all(has("licencia"), hasDriver)},
	{intent.VehicleMaintenance, []intent.Intent{intent.Vehicle}, has("mantenimiento")},
	{intent.VehicleMaintenance, []intent.Intent{intent.Maintenance}, hasVehicle},
	{intent.DriverPerformance, nil, all(has(performanceWords...), hasDriver)},
	{intent.VehiclePerformance, nil, all(has(performanceWords...), hasVehicle)},
	{intent.RoutePerformance, nil, all(has(performanceWords...), hasRoute)},
	{intent.Summary, []intent.Intent{intent.Report, intent.Status}, has("resumen")},
	{intent.Dashboard, nil, has(dashboardWords...)},
	{intent.CountDriver, []intent.Intent{intent.Count}, hasDriver},
	{intent.CountVehicle, []intent.Intent{intent.Count}, hasVehicle},
	{intent.ListDriver, []intent.Intent{intent.List}, hasDriver},
	{intent.ListVehicle, []intent.Intent{intent.List}, hasVehicle},
	{intent.ListRoute, []intent.Intent{intent.List}, hasRoute},
	{intent.ListSchedule, []intent.Intent{intent.List}, hasSchedule},
}

// Refine applies the refinement table to a base classification. It returns
// the base intent unchanged when no rule matches.
func Refine(base intent.Intent, folded []string) (intent.Intent, bool) {
	for _, r := range refinements {
		if r.applies(base, folded) {
			return r.result, true
		}
	}
	return base, false
}
