package nlp

import (
	"strings"
)

type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeAvailable   Scope = "available"
	ScopeUnavailable Scope = "unavailable"
	ScopeGeneral     Scope = "general"
)

// Context describes the shape of the question.
type Context struct {
	IsQuestion    bool
	HasNegation   bool
	IsImperative  bool
	TimeReference string
	Scope         Scope
}

var interrogatives = map[string]struct{}{
	"que": {}, "cual": {}, "cuales": {}, "cuanto": {}, "cuantos": {}, "cuanta": {},
	"cuantas": {}, "como": {}, "donde": {}, "cuando": {}, "quien": {}, "quienes": {},
}

var negations = map[string]struct{}{
	"no": {}, "nunca": {}, "ningun": {}, "ninguno": {}, "ninguna": {}, "nadie": {},
	"nada": {}, "jamas": {}, "tampoco": {}, "sin": {},
}

var imperatives = map[string]struct{}{
	"muestra": {}, "muestrame": {}, "mostrar": {}, "dame": {}, "lista": {}, "listar": {},
	"enumera": {}, "busca": {}, "buscar": {}, "genera": {}, "generar": {}, "filtra": {},
	"dime": {}, "indica": {}, "cuenta": {}, "calcula": {}, "envia": {}, "exporta": {},
	"trae": {}, "ver": {},
}

// Scope keywords are substrings of folded tokens. Unavailable is checked
// first because "inactivo" contains "activo".
var (
	unavailableWords = []string{"inactiv", "ocupad", "indisponib", "fuera de servicio", "no disponible", "no activ", "en uso", "en mantenimiento"}
	availableWords   = []string{"disponib", "activ", "libre", "en servicio", "operativ"}
	allWords         = []string{"todos", "todas", "todo", "completo", "completa", "cualquier"}
)

// HasInterrogative reports whether any folded token is a question word.
func HasInterrogative(folded []string) bool {
	for _, tok := range folded {
		if _, ok := interrogatives[tok]; ok {
			return true
		}
	}
	return false
}

// AnalyzeContext derives the question shape. folded are the folded tokens,
// entities the already extracted entities.
func AnalyzeContext(text string, folded []string, entities Entities) Context {
	ctx := Context{
		IsQuestion: strings.ContainsAny(text, "?¿") || HasInterrogative(folded),
		Scope:      detectScope(folded),
	}
	for _, tok := range folded {
		if _, ok := negations[tok]; ok {
			ctx.HasNegation = true
			break
		}
	}
	lead := folded
	if len(lead) > 2 && lead[0] == "por" && lead[1] == "favor" {
		lead = lead[2:]
	}
	if len(lead) > 0 {
		_, ctx.IsImperative = imperatives[lead[0]]
	}
	if d, ok := entities.First(Dates); ok {
		ctx.TimeReference = d.Value
	} else if t, ok := entities.First(Temporal); ok {
		ctx.TimeReference = t.Value
	}
	return ctx
}

func detectScope(folded []string) Scope {
	joined := " " + strings.Join(folded, " ") + " "
	matches := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(w, " ") {
				if strings.Contains(joined, " "+w) {
					return true
				}
				continue
			}
			for _, tok := range folded {
				if strings.Contains(tok, w) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case matches(unavailableWords):
		return ScopeUnavailable
	case matches(availableWords):
		return ScopeAvailable
	case matches(allWords):
		return ScopeAll
	}
	return ScopeGeneral
}
