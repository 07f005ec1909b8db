package nlp

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"
)

// Category names an entity list.
type Category string

const (
	Dates         Category = "dates"
	Numbers       Category = "numbers"
	Locations     Category = "locations"
	Persons       Category = "persons"
	Temporal      Category = "temporal"
	Quantities    Category = "quantities"
	Phones        Category = "phones"
	Emails        Category = "emails"
	URLs          Category = "urls"
	Money         Category = "money"
	Percentages   Category = "percentages"
	Times         Category = "times"
	Durations     Category = "durations"
	Distances     Category = "distances"
	Organizations Category = "organizations"
)

// Categories returns every category in extraction order.
func Categories() []Category {
	return []Category{
		Dates, Numbers, Locations, Persons, Temporal, Quantities, Phones, Emails,
		URLs, Money, Percentages, Times, Durations, Distances, Organizations,
	}
}

// Entity is a typed span of the input. Value holds the normalised form:
// YYYY-MM-DD for dates, HH:MM for times, digits for phones, the decimal
// string for numeric categories.
type Entity struct {
	Text   string
	Value  string
	Unit   string
	Number decimal.Decimal
}

// Entities is an immutable category to list mapping.
type Entities struct {
	lists map[Category][]Entity
}

// Get returns a copy of the list for c; never nil.
func (e Entities) Get(c Category) []Entity {
	list := e.lists[c]
	out := make([]Entity, len(list))
	copy(out, list)
	return out
}

func (e Entities) First(c Category) (Entity, bool) {
	list := e.lists[c]
	if len(list) == 0 {
		return Entity{}, false
	}
	return list[0], true
}

// Count is the total number of entities across categories.
func (e Entities) Count() int {
	n := 0
	for _, list := range e.lists {
		n += len(list)
	}
	return n
}

// NonEmpty counts categories with at least one entity.
func (e Entities) NonEmpty() int {
	n := 0
	for _, list := range e.lists {
		if len(list) > 0 {
			n++
		}
	}
	return n
}

// Texts flattens the entities to raw texts per category, every category present.
func (e Entities) Texts() map[string][]string {
	out := make(map[string][]string, len(Categories()))
	for _, c := range Categories() {
		texts := make([]string, 0, len(e.lists[c]))
		for _, ent := range e.lists[c] {
			texts = append(texts, ent.Text)
		}
		out[string(c)] = texts
	}
	return out
}

// EmptyEntities has every category present and empty.
func EmptyEntities() Entities {
	lists := make(map[Category][]Entity, len(Categories()))
	for _, c := range Categories() {
		lists[c] = []Entity{}
	}
	return Entities{lists: lists}
}

type pass struct {
	category Category
	extract  func(text string, now time.Time) []Entity
}

var passes = []pass{
	{Dates, extractDates},
	{Numbers, extractNumbers},
	{Locations, extractLocations},
	{Persons, extractPersons},
	{Temporal, extractTemporal},
	{Quantities, extractQuantities},
	{Phones, extractPhones},
	{Emails, extractEmails},
	{URLs, extractURLs},
	{Money, extractMoney},
	{Percentages, extractPercentages},
	{Times, extractTimes},
	{Durations, extractDurations},
	{Distances, extractDistances},
	{Organizations, extractOrganizations},
}

// Extract runs every pass independently over text. Spans may overlap across
// categories. now anchors relative dates.
func Extract(text string, now time.Time) Entities {
	out := EmptyEntities()
	if strings.TrimSpace(text) == "" {
		return out
	}
	for _, p := range passes {
		if found := p.extract(text, now); len(found) > 0 {
			out.lists[p.category] = found
		}
	}
	return out
}

var monthNumbers = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June, "julio": time.July,
	"agosto": time.August, "septiembre": time.September, "setiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,
}

const monthAlternation = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre`

var (
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDateRe  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`)
	writtenDateRe  = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(` + monthAlternation + `)(?:\s+(?:de|del)\s+(\d{4}))?`)
	relativeDateRe = regexp.MustCompile(`(?i)\b(pasado\s+mañana|anteayer|hoy|mañana|ayer)\b`)
)

func dateEntity(text string, year int, month time.Month, day int) (Entity, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return Entity{}, false
	}
	return Entity{Text: text, Value: d.Format("2006-01-02")}, true
}

func extractDates(text string, now time.Time) []Entity {
	var out []Entity
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if e, ok := dateEntity(m[0], y, time.Month(mo), d); ok {
			out = append(out, e)
		}
	}
	for _, m := range numericDateRe.FindAllStringSubmatch(text, -1) {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			y += 2000
		}
		if e, ok := dateEntity(m[0], y, time.Month(mo), d); ok {
			out = append(out, e)
		}
	}
	for _, m := range writtenDateRe.FindAllStringSubmatch(text, -1) {
		d, _ := strconv.Atoi(m[1])
		month := monthNumbers[strings.ToLower(m[2])]
		y := now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		if e, ok := dateEntity(m[0], y, month, d); ok {
			out = append(out, e)
		}
	}
	for _, m := range relativeDateRe.FindAllString(text, -1) {
		offset := 0
		switch strings.Join(strings.Fields(strings.ToLower(m)), " ") {
		case "pasado mañana":
			offset = 2
		case "mañana":
			offset = 1
		case "ayer":
			offset = -1
		case "anteayer":
			offset = -2
		}
		d := now.AddDate(0, 0, offset)
		out = append(out, Entity{Text: m, Value: d.Format("2006-01-02")})
	}
	return out
}

var (
	numberRe     = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`)
	wordNumberRe = regexp.MustCompile(`(?i)\b(uno|una|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez|veinte|cincuenta|cien)\b`)
)

var wordNumbers = map[string]int64{
	"uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5, "seis": 6,
	"siete": 7, "ocho": 8, "nueve": 9, "diez": 10, "veinte": 20, "cincuenta": 50, "cien": 100,
}

// parseNumber reads 12, 12.5 and 12,5.
func parseNumber(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func numericEntity(text, raw, unit string) (Entity, bool) {
	n, ok := parseNumber(raw)
	if !ok {
		return Entity{}, false
	}
	return Entity{Text: text, Value: n.String(), Unit: unit, Number: n}, true
}

func extractNumbers(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range numberRe.FindAllString(text, -1) {
		if e, ok := numericEntity(m, m, ""); ok {
			out = append(out, e)
		}
	}
	for _, m := range wordNumberRe.FindAllString(text, -1) {
		// "una" is an article far more often than a number.
		if strings.EqualFold(m, "una") {
			continue
		}
		n := decimal.NewFromInt(wordNumbers[strings.ToLower(m)])
		out = append(out, Entity{Text: m, Value: n.String(), Number: n})
	}
	return out
}

var cities = []string{
	"Bogotá", "Medellín", "Cali", "Barranquilla", "Cartagena", "Cúcuta",
	"Bucaramanga", "Pereira", "Santa Marta", "Ibagué", "Manizales", "Villavicencio",
	"Pasto", "Montería", "Neiva", "Armenia", "Popayán", "Sincelejo", "Valledupar",
	"Tunja", "Riohacha", "Quibdó", "Florencia", "Yopal", "Girardot", "Soacha",
	"Palmira", "Buenaventura", "Tuluá", "Duitama", "Sogamoso", "Zipaquirá",
}

var prepositionPlaceRe = regexp.MustCompile(`(?:^|\s)(?i:desde|hacia|hasta|en)\s+(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`)

var wordRe = regexp.MustCompile(`\p{L}+`)

// extractLocations matches the city gazetteer allowing one edit on longer
// names, then capitalised words after a place preposition. Every occurrence
// is kept; only overlapping spans are dropped.
func extractLocations(text string, _ time.Time) []Entity {
	type span struct {
		start, end int
		entity     Entity
	}
	var spans []span
	add := func(start, end int, canonical string) {
		for _, s := range spans {
			if start < s.end && s.start < end {
				return
			}
		}
		spans = append(spans, span{start, end, Entity{Text: text[start:end], Value: canonical}})
	}

	words := wordRe.FindAllStringIndex(text, -1)
	for _, city := range cities {
		size := len(strings.Fields(city))
		for i := 0; i+size <= len(words); i++ {
			start, end := words[i][0], words[i+size-1][1]
			parts := make([]string, size)
			for j := range parts {
				parts[j] = text[words[i+j][0]:words[i+j][1]]
			}
			if matchesCity(strings.Join(parts, " "), city) {
				add(start, end, city)
			}
		}
	}
	for _, m := range prepositionPlaceRe.FindAllStringSubmatchIndex(text, -1) {
		add(m[2], m[3], text[m[2]:m[3]])
	}

	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	out := make([]Entity, len(spans))
	for i, s := range spans {
		out[i] = s.entity
	}
	return out
}

func matchesCity(candidate, city string) bool {
	if len([]rune(candidate)) < 4 {
		return strings.EqualFold(Fold(candidate), Fold(city))
	}
	rank := fuzzy.RankMatchNormalizedFold(candidate, city)
	if rank < 0 {
		return false
	}
	if len([]rune(city)) < 6 {
		return rank == 0
	}
	return rank <= 1
}

var personRe = regexp.MustCompile(`\b(?i:conductora|conductor|chofer|señora|señor|sra\.?|sr\.?|doña|don)\s+(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`)

func extractPersons(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range personRe.FindAllStringSubmatch(text, -1) {
		out = append(out, Entity{Text: m[1], Value: m[1]})
	}
	return out
}

var temporalRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:pasado\s+mañana|anteayer|hoy|mañana|ayer)\b`),
	regexp.MustCompile(`(?i)\b(?:lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`),
	regexp.MustCompile(`(?i)\b(?:(?:en|por)\s+la\s+(?:mañana|tarde|noche)|madrugada|mediod[ií]a|medianoche)\b`),
	regexp.MustCompile(`(?i)\b(?:` + monthAlternation + `)\b`),
	regexp.MustCompile(`(?i)(?:(?:[uú]ltim[oa]s|pr[oó]xim[oa]s)\s+)?\b\d+\s+(?:d[ií]as?|semanas?|mes(?:es)?|a[ñn]os?)\b`),
	regexp.MustCompile(`(?i)(?:\best[ea]|pr[oó]xim[oa]|la\s+pr[oó]xima|el\s+pr[oó]ximo|[uú]ltim[oa]|pasad[oa])\s+(?:semana|mes|a[ñn]o|trimestre|quincena|semestre)\b`),
	regexp.MustCompile(`(?i)\b(?:trimestre|quincena|semestre)\b`),
}

func extractTemporal(text string, _ time.Time) []Entity {
	var out []Entity
	for _, re := range temporalRes {
		for _, m := range re.FindAllString(text, -1) {
			out = append(out, Entity{Text: m, Value: strings.ToLower(m)})
		}
	}
	return out
}

var quantityRe = regexp.MustCompile(`(?i)\b(\d+)\s+(veh[ií]culos?|camiones|cami[oó]n|buses|bus|d[ií]as?|km|kil[oó]metros?|horas?|personas?|pasajeros?|viajes?)\b`)

func quantityUnit(word string) string {
	w := strings.ToLower(Fold(word))
	switch {
	case strings.HasPrefix(w, "vehicul"), strings.HasPrefix(w, "camion"), strings.HasPrefix(w, "bus"):
		return "vehicles"
	case strings.HasPrefix(w, "dia"):
		return "days"
	case w == "km", strings.HasPrefix(w, "kilometro"):
		return "km"
	case strings.HasPrefix(w, "hora"):
		return "hours"
	case strings.HasPrefix(w, "persona"), strings.HasPrefix(w, "pasajero"):
		return "people"
	case strings.HasPrefix(w, "viaje"):
		return "trips"
	}
	return ""
}

func extractQuantities(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range quantityRe.FindAllStringSubmatch(text, -1) {
		if e, ok := numericEntity(m[0], m[1], quantityUnit(m[2])); ok {
			out = append(out, e)
		}
	}
	return out
}

var (
	phoneRe  = regexp.MustCompile(`(?:\+?57[\s-]?)?(?:3\d{2}|60\d)[\s-]?\d{3}[\s-]?\d{4}\b`)
	digitsRe = regexp.MustCompile(`\d`)
)

func extractPhones(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := strings.Join(digitsRe.FindAllString(m, -1), "")
		out = append(out, Entity{Text: m, Value: digits})
	}
	return out
}

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

func extractEmails(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range emailRe.FindAllString(text, -1) {
		out = append(out, Entity{Text: m, Value: strings.ToLower(m)})
	}
	return out
}

var urlRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"]+[^\s<>".,;:!?)]`)

func extractURLs(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range urlRe.FindAllString(text, -1) {
		out = append(out, Entity{Text: m, Value: m})
	}
	return out
}

var (
	moneySymbolRe = regexp.MustCompile(`\$\s?(\d{1,3}(?:[.,]\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)
	moneyWordRe   = regexp.MustCompile(`(?i)\b(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d{1,2})?)\s*(pesos|cop|usd|d[oó]lares)\b`)
	thousandsRe   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?$|^\d{1,3}(?:,\d{3})+$`)
)

// parseAmount reads Colombian (1.500.000,50) and plain (1500.5) amounts.
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := raw
	if thousandsRe.MatchString(s) {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func currency(word string) string {
	switch w := strings.ToLower(Fold(word)); w {
	case "usd", "dolares":
		return "USD"
	default:
		return "COP"
	}
}

func extractMoney(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range moneySymbolRe.FindAllStringSubmatch(text, -1) {
		if amount, ok := parseAmount(m[1]); ok {
			out = append(out, Entity{Text: m[0], Value: amount.StringFixed(2), Unit: "COP", Number: amount})
		}
	}
	for _, m := range moneyWordRe.FindAllStringSubmatch(text, -1) {
		if amount, ok := parseAmount(m[1]); ok {
			out = append(out, Entity{Text: m[0], Value: amount.StringFixed(2), Unit: currency(m[2]), Number: amount})
		}
	}
	return out
}

var percentRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s?(?:%|por\s+ciento)`)

func extractPercentages(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range percentRe.FindAllStringSubmatch(text, -1) {
		if e, ok := numericEntity(m[0], m[1], "%"); ok {
			out = append(out, e)
		}
	}
	return out
}

var (
	clockRe    = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3]):([0-5]\d)(?:\s*(a\.?\s?m\b\.?|p\.?\s?m\b\.?))?`)
	meridiemRe = regexp.MustCompile(`(?i)\b(1[0-2]|0?[1-9])\s*(a\.?\s?m\b\.?|p\.?\s?m\b\.?)`)
)

func clockValue(hour, minute int, meridiem string) (string, bool) {
	m := strings.ToLower(strings.NewReplacer(".", "", " ", "").Replace(meridiem))
	switch m {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func extractTimes(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range clockRe.FindAllStringSubmatch(text, -1) {
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if v, ok := clockValue(h, minute, m[3]); ok {
			out = append(out, Entity{Text: m[0], Value: v})
		}
	}
	for _, idx := range meridiemRe.FindAllStringSubmatchIndex(text, -1) {
		// "10:30 pm" is already covered by the clock pattern.
		if idx[0] > 0 && text[idx[0]-1] == ':' {
			continue
		}
		h, _ := strconv.Atoi(text[idx[2]:idx[3]])
		if v, ok := clockValue(h, 0, text[idx[4]:idx[5]]); ok {
			out = append(out, Entity{Text: text[idx[0]:idx[1]], Value: v})
		}
	}
	return out
}

var durationRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(minutos?|mins?|horas?|hrs?|d[ií]as?|semanas?|mes(?:es)?)\b`)

func durationUnit(word string) string {
	w := strings.ToLower(Fold(word))
	switch {
	case strings.HasPrefix(w, "min"):
		return "minutes"
	case strings.HasPrefix(w, "h"):
		return "hours"
	case strings.HasPrefix(w, "dia"):
		return "days"
	case strings.HasPrefix(w, "semana"):
		return "weeks"
	default:
		return "months"
	}
}

func extractDurations(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range durationRe.FindAllStringSubmatch(text, -1) {
		if e, ok := numericEntity(m[0], m[1], durationUnit(m[2])); ok {
			out = append(out, e)
		}
	}
	return out
}

var distanceRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(km|kil[oó]metros?|metros?|mts?)\b`)

func extractDistances(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range distanceRe.FindAllStringSubmatch(text, -1) {
		unit := "m"
		if w := strings.ToLower(Fold(m[2])); w == "km" || strings.HasPrefix(w, "kilometro") {
			unit = "km"
		}
		if e, ok := numericEntity(m[0], m[1], unit); ok {
			out = append(out, e)
		}
	}
	return out
}

var (
	orgPrefixRe = regexp.MustCompile(`\b(?i:empresa|compañía|compania|cooperativa|transportes|flota)\s+(\p{Lu}[\p{L}&]*(?:\s+\p{Lu}[\p{L}&]*)*)`)
	orgSuffixRe = regexp.MustCompile(`(\p{Lu}[\p{L}&]*(?:\s+\p{Lu}[\p{L}&]*)*)\s+(?:S\.?A\.?S\.?|S\.?A\.?|Ltda\.?)`)
)

func extractOrganizations(text string, _ time.Time) []Entity {
	var out []Entity
	for _, m := range orgPrefixRe.FindAllStringSubmatch(text, -1) {
		out = append(out, Entity{Text: m[0], Value: m[1]})
	}
	for _, m := range orgSuffixRe.FindAllStringSubmatch(text, -1) {
		out = append(out, Entity{Text: m[0], Value: m[1]})
	}
	return out
}
