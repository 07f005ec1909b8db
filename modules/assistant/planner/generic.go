package planner

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
)

const countAll = "COUNT(*) as total"

// mentionResolved intents take their table from the first mentioned domain
// and only fall back to the static lookup.
var mentionResolved = map[intent.Intent]bool{
	intent.Status: true,
	intent.Count:  true,
	intent.List:   true,
	intent.Filter: true,
	intent.Report: true,
}

var countIntents = map[intent.Intent]bool{
	intent.Count:        true,
	intent.CountDriver:  true,
	intent.CountVehicle: true,
}

var detailIntents = map[intent.Intent]bool{
	intent.License:            true,
	intent.Maintenance:        true,
	intent.DriverLicense:      true,
	intent.LicenseExpiry:      true,
	intent.VehicleMaintenance: true,
}

func resolveTable(a nlp.Analysis) string {
	if mentionResolved[a.Intent] {
		for _, d := range a.Mentions {
			if name, ok := domainTables[d]; ok {
				return name
			}
		}
	}
	return primaryTables[a.Intent]
}

func (p *Planner) generic(req request) (queryplan.Plan, error) {
	a := req.analysis
	name := resolveTable(a)
	if name == "" {
		return nullPlan(fmt.Sprintf("No se pudo determinar qué datos consultar para %q", a.Intent)), nil
	}
	table, ok := Lookup(name)
	if !ok {
		return queryplan.Plan{}, fmt.Errorf("planner: table %s missing from catalogue", name)
	}

	plan := queryplan.Plan{FromTable: table.Name}
	if table.TenantScoped() {
		plan.Where(tenantPredicate(table, plan.Bind(req.companyID)))
	}
	statusFiltered := p.intentPredicates(&plan, table, a)
	if !table.View {
		joinMentioned(&plan, table, a.Mentions)
	}
	plan.SelectFields = selectFields(table, a.Intent, plan.Joins)
	p.entityFilters(&plan, table, a.Entities)
	if !statusFiltered {
		statusFiltered = scopeFilter(&plan, table, a.Context.Scope)
	}
	p.optimize(&plan, table, statusFiltered)

	plan.Score()
	plan.Explanation = explain(table, a.Intent, plan)
	plan.SQL = plan.Render()
	return plan, nil
}

func (p *Planner) intentPredicates(plan *queryplan.Plan, table Table, a nlp.Analysis) bool {
	switch a.Intent {
	case intent.LicenseExpiry:
		column := table.Column("licencia_vencimiento")
		plan.Where(fmt.Sprintf("%s BETWEEN CURRENT_DATE AND CURRENT_DATE + %s::int", column, plan.Bind(p.opts.ExpiryWindowDays)))
		plan.OrderBy = append(plan.OrderBy, column+" ASC")
	case intent.VehicleMaintenance:
		plan.Where(fmt.Sprintf("%s = %s", table.Column(table.StatusColumn), plan.Bind("mantenimiento")))
		return true
	case intent.ExpiryAlerts:
		column := table.Column("dias_restantes")
		plan.Where(fmt.Sprintf("%s BETWEEN 0 AND %s", column, plan.Bind(p.alertWindow(a.Entities))))
		plan.OrderBy = append(plan.OrderBy, column+" ASC")
	}
	return false
}

func joinMentioned(plan *queryplan.Plan, table Table, mentions []intent.Domain) {
	for _, d := range mentions {
		target, ok := domainTables[d]
		if !ok || target == table.Name || plan.HasJoin(target) {
			continue
		}
		if j, ok := relation(table.Name, target); ok {
			plan.Joins = append(plan.Joins, j)
		}
	}
}

func selectFields(table Table, in intent.Intent, joins []queryplan.Join) []string {
	if countIntents[in] {
		if len(joins) > 0 {
			return []string{fmt.Sprintf("COUNT(DISTINCT %s) as total", table.Column("id"))}
		}
		return []string{countAll}
	}
	if len(table.BasicFields) == 0 {
		return []string{table.Name + ".*"}
	}
	fields := table.qualify(table.BasicFields)
	if detailIntents[in] {
		fields = append(fields, table.qualify(table.SpecializedFields)...)
	}
	for _, j := range joins {
		if joined, ok := Lookup(j.Table); ok {
			fields = append(fields, joined.qualify(joined.LabelFields)...)
		}
	}
	return fields
}

func (p *Planner) entityFilters(plan *queryplan.Plan, table Table, entities nlp.Entities) {
	if date, ok := entities.First(nlp.Dates); ok && table.DateColumn != "" {
		plan.Where(fmt.Sprintf("DATE(%s) = %s", table.Column(table.DateColumn), plan.Bind(date.Value)))
	}
	if n, ok := requestedLimit(entities); ok {
		plan.Limit = clampLimit(n, p.opts.MaxLimit)
	}
}

// clampLimit bounds n to [1, maxLimit] before converting, so numbers beyond
// int64 cannot wrap.
func clampLimit(n decimal.Decimal, maxLimit int) int {
	if n.GreaterThan(decimal.NewFromInt(int64(maxLimit))) {
		return maxLimit
	}
	return max(int(n.IntPart()), 1)
}

// requestedLimit is the first positive integer of the message that is not
// part of a date, a clock time or a time span.
func requestedLimit(entities nlp.Entities) (decimal.Decimal, bool) {
	var spans []string
	for _, c := range []nlp.Category{nlp.Dates, nlp.Times, nlp.Temporal, nlp.Durations, nlp.Percentages, nlp.Money, nlp.Phones} {
		for _, e := range entities.Get(c) {
			spans = append(spans, e.Text)
		}
	}
	for _, n := range entities.Get(nlp.Numbers) {
		if !n.Number.IsInteger() || !n.Number.IsPositive() {
			continue
		}
		inside := false
		for _, s := range spans {
			if strings.Contains(s, n.Text) {
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		return n.Number, true
	}
	return decimal.Zero, false
}

func scopeFilter(plan *queryplan.Plan, table Table, scope nlp.Scope) bool {
	if table.StatusColumn == "" || table.AvailableStatus == "" {
		return false
	}
	column := table.Column(table.StatusColumn)
	switch scope {
	case nlp.ScopeAvailable:
		plan.Where(fmt.Sprintf("%s = %s", column, plan.Bind(table.AvailableStatus)))
	case nlp.ScopeUnavailable:
		plan.Where(fmt.Sprintf("%s <> %s", column, plan.Bind(table.AvailableStatus)))
	default:
		return false
	}
	return true
}

// optimize orders by the filtered status column and applies the default
// limit. Aggregate-only selects cannot be ordered by a plain column.
func (p *Planner) optimize(plan *queryplan.Plan, table Table, statusFiltered bool) {
	if statusFiltered && !aggregateOnly(*plan) {
		column := table.Column(table.StatusColumn)
		if !contains(plan.OrderBy, column) {
			plan.OrderBy = append(plan.OrderBy, column)
		}
	}
	if plan.Limit == 0 {
		plan.Limit = p.opts.DefaultLimit
	}
}

func aggregateOnly(plan queryplan.Plan) bool {
	if len(plan.GroupBy) > 0 || len(plan.SelectFields) == 0 {
		return false
	}
	for _, f := range plan.SelectFields {
		if !strings.HasPrefix(f, "COUNT(") {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func explain(table Table, in intent.Intent, plan queryplan.Plan) string {
	var b strings.Builder
	if countIntents[in] {
		fmt.Fprintf(&b, "Conteo de registros en %s", table.Name)
	} else {
		fmt.Fprintf(&b, "Consulta de %s", table.Name)
	}
	if len(plan.Joins) > 0 {
		joined := make([]string, len(plan.Joins))
		for i, j := range plan.Joins {
			joined[i] = j.Table
		}
		fmt.Fprintf(&b, " relacionada con %s", strings.Join(joined, ", "))
	}
	fmt.Fprintf(&b, " con %d condiciones", len(plan.WhereConditions))
	if plan.Limit > 0 {
		fmt.Fprintf(&b, ", máximo %d filas", plan.Limit)
	}
	return b.String()
}
