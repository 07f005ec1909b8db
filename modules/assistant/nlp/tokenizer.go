// Package nlp turns a free-text Spanish question into a structured Analysis.
// Every function here is pure; the Analyzer is safe for concurrent use.
package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenize lowercases text, drops punctuation (¿ and ¡ included) and splits
// on whitespace. Accents are kept.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)
	return strings.Fields(cleaned)
}

// Fold strips combining marks so "vehículo" and "vehiculo" compare equal.
// ñ folds to n.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldAll folds and lowercases every token.
func FoldAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = strings.ToLower(Fold(tok))
	}
	return out
}

// longest first
var stemSuffixes = []string{
	"amientos", "imientos", "aciones", "uciones", "amiento", "imiento",
	"adores", "adoras", "mente", "acion", "ucion", "iendo", "ador", "adora",
	"ando", "ados", "adas", "idos", "idas", "ado", "ada", "ido", "ida",
	"es", "s",
}

// minStemLength keeps short words intact.
const minStemLength = 3

// Stem applies a light Spanish suffix stemmer to a folded token.
func Stem(token string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= minStemLength {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}

// StemAll folds and stems every token.
func StemAll(tokens []string) []string {
	folded := FoldAll(tokens)
	for i, tok := range folded {
		folded[i] = Stem(tok)
	}
	return folded
}

// Jaccard is |A∩B| / |A∪B| over the token sets. Two empty sets are identical.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"de": {}, "del": {}, "al": {}, "a": {}, "en": {}, "y": {}, "o": {}, "que": {},
	"es": {}, "son": {}, "por": {}, "para": {}, "con": {}, "se": {}, "me": {}, "mi": {},
	"mis": {}, "su": {}, "sus": {}, "lo": {}, "le": {}, "les": {}, "hay": {}, "esta": {},
	"estan": {}, "este": {}, "esto": {}, "eso": {}, "como": {}, "cual": {}, "cuales": {},
	"muy": {}, "mas": {}, "ya": {}, "tengo": {}, "tiene": {}, "tienen": {}, "quiero": {},
	"favor": {},
}

// IsStopword reports whether a folded token carries no content.
func IsStopword(folded string) bool {
	_, ok := stopwords[folded]
	return ok
}

// ContentTokens drops stopwords; tokens are compared folded but returned as given.
func ContentTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if IsStopword(strings.ToLower(Fold(tok))) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
