package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/serrors"
)

const (
	Language     = "es"
	maxListLines = 5
	dateLayout   = "2006-01-02"
	apologyKey   = "Assistant.Replies.Apology"
)

// Responder renders results as Spanish text from the message catalogue.
type Responder struct {
	localizer *i18n.Localizer
	logger    *logrus.Entry
}

func NewResponder(bundle *i18n.Bundle, logger *logrus.Entry) *Responder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Responder{
		localizer: i18n.NewLocalizer(bundle, Language),
		logger:    logger,
	}
}

func (r *Responder) t(id string, data map[string]any) string {
	msg, err := r.localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		r.logger.WithError(err).WithField("message_id", id).Warn("missing responder message")
		return id
	}
	return msg
}

func (r *Responder) Apology() string {
	return r.t(apologyKey, nil)
}

// ForError localises a coded error, falling back to the apology. Internal
// details never reach the text.
func (r *Responder) ForError(err error) string {
	var base *serrors.Base
	if errors.As(err, &base) && base.LocaleKey != "" {
		return r.t(base.LocaleKey, nil)
	}
	return r.Apology()
}

// Respond turns the analysis, the plan and its rows into a reply.
func (r *Responder) Respond(analysis nlp.Analysis, plan queryplan.Plan, rows []executor.Row) string {
	switch analysis.Intent {
	case intent.Greeting:
		return r.t("Assistant.Replies.Greeting", nil)
	case intent.Farewell:
		return r.t("Assistant.Replies.Farewell", nil)
	case intent.Help:
		return r.t("Assistant.Replies.Help", nil)
	case intent.Unknown:
		return r.t("Assistant.Replies.Unknown", nil)
	}
	if !plan.HasSQL() {
		return r.t("Assistant.Replies.NoPlan", map[string]any{"Explanation": plan.Explanation})
	}

	subject := r.subject(plan.FromTable)
	switch {
	case analysis.Intent == intent.SystemStatus && len(rows) > 0:
		data := make(map[string]any, len(rows[0]))
		for k, v := range rows[0] {
			data[k] = formatValue(v)
		}
		return r.t("Assistant.Replies.SystemStatus", data)
	case analysis.Intent == intent.Alerts:
		return r.alerts(rows)
	case len(rows) == 0:
		return r.t("Assistant.Replies.Empty", map[string]any{"Subject": subject})
	case len(rows) == 1 && len(rows[0]) == 1 && rows[0]["total"] != nil:
		return r.t("Assistant.Replies.Count", map[string]any{"Total": formatValue(rows[0]["total"]), "Subject": subject})
	}
	return r.list(rows, subject)
}

func (r *Responder) subject(table string) string {
	if table == "" {
		table = "Default"
	}
	msg, err := r.localizer.Localize(&i18n.LocalizeConfig{MessageID: "Assistant.Subjects." + table})
	if err != nil {
		return r.t("Assistant.Subjects.Default", nil)
	}
	return msg
}

func (r *Responder) alerts(rows []executor.Row) string {
	lines := []string{r.t("Assistant.Replies.AlertsHeader", nil)}
	for _, row := range rows {
		total := formatValue(row["total"])
		if total == "0" || total == "" {
			continue
		}
		kind := fmt.Sprint(row["tipo"])
		label, err := r.localizer.Localize(&i18n.LocalizeConfig{MessageID: "Assistant.AlertKinds." + kind})
		if err != nil {
			label = kind
		}
		lines = append(lines, r.t("Assistant.Replies.AlertLine", map[string]any{
			"Kind":     label,
			"Total":    total,
			"Affected": formatValue(row["afectados"]),
		}))
	}
	if len(lines) == 1 {
		return r.t("Assistant.Replies.NoAlerts", nil)
	}
	return strings.Join(lines, "\n")
}

func (r *Responder) list(rows []executor.Row, subject string) string {
	lines := []string{r.t("Assistant.Replies.List", map[string]any{"Count": len(rows), "Subject": subject})}
	for i, row := range rows {
		if i == maxListLines {
			lines = append(lines, r.t("Assistant.Replies.More", map[string]any{"Remaining": len(rows) - maxListLines}))
			break
		}
		lines = append(lines, "- "+formatRow(row))
	}
	return strings.Join(lines, "\n")
}

// formatRow prints non-null columns as "k: v" in column name order.
func formatRow(row executor.Row) string {
	keys := make([]string, 0, len(row))
	for k, v := range row {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + formatValue(row[k])
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(dateLayout)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "sí"
		}
		return "no"
	}
	return fmt.Sprint(v)
}
