package planner

import (
	"fmt"
	"strings"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
)

const (
	statusComplexity   = 3
	templateComplexity = 4
	performanceLimit   = 10
	maxWindowDays      = 365
)

type statusMetric struct {
	alias     string
	table     string
	condition string
}

// statusMetrics are the scalar subqueries of the system status row. $1 is
// the company, $2 the expiry window in days.
var statusMetrics = []statusMetric{
	{"conductores_activos", Conductores, "estado = 'activo'"},
	{"vehiculos_disponibles", Vehiculos, "estado = 'disponible'"},
	{"viajes_en_progreso", Viajes, "estado = 'en_progreso'"},
	{"conductores_inactivos", Conductores, "estado <> 'activo'"},
	{"vehiculos_en_mantenimiento", Vehiculos, "estado = 'mantenimiento'"},
	{"viajes_completados_hoy", Viajes, "estado = 'completado' AND DATE(fecha_llegada) = CURRENT_DATE"},
	{"licencias_por_vencer", Conductores, "licencia_vencimiento BETWEEN CURRENT_DATE AND CURRENT_DATE + $2::int"},
	{"soat_por_vencer", Vehiculos, "soat_vencimiento BETWEEN CURRENT_DATE AND CURRENT_DATE + $2::int"},
	{"tecnomecanica_por_vencer", Vehiculos, "tecnomecanica_vencimiento BETWEEN CURRENT_DATE AND CURRENT_DATE + $2::int"},
}

// systemStatus ignores entities and context: the row shape never changes.
func (p *Planner) systemStatus(req request) (queryplan.Plan, error) {
	fields := make([]string, len(statusMetrics))
	for i, m := range statusMetrics {
		fields[i] = fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE empresa_id = $1 AND %s) AS %s", m.table, m.condition, m.alias)
	}
	return queryplan.Plan{
		SelectFields:  fields,
		Params:        []any{req.companyID, p.opts.ExpiryWindowDays},
		Complexity:    statusComplexity,
		EstimatedRows: 1,
		IsMultiQuery:  true,
		Explanation:   fmt.Sprintf("Estado general del sistema: %d indicadores en una sola fila", len(statusMetrics)),
		SQL:           "SELECT " + strings.Join(fields, ", "),
	}, nil
}

type alertSource struct {
	kind      string
	table     string
	label     string
	column    string
	condition string
}

var alertSources = []alertSource{
	{"licencia", Conductores, "nombre || ' ' || apellido", "licencia_vencimiento", "estado = 'activo'"},
	{"soat", Vehiculos, "placa", "soat_vencimiento", ""},
	{"tecnomecanica", Vehiculos, "placa", "tecnomecanica_vencimiento", ""},
}

// alertWindow is the first day quantity of the message, or the configured
// window.
func (p *Planner) alertWindow(entities nlp.Entities) int {
	for _, c := range []nlp.Category{nlp.Quantities, nlp.Durations} {
		for _, e := range entities.Get(c) {
			if e.Unit != "days" || !e.Number.IsPositive() {
				continue
			}
			return int(min(e.Number.IntPart(), maxWindowDays))
		}
	}
	return p.opts.AlertWindowDays
}

func (p *Planner) smartAlerts(req request) (queryplan.Plan, error) {
	window := p.alertWindow(req.analysis.Entities)
	parts := make([]string, len(alertSources))
	for i, s := range alertSources {
		conditions := []string{"empresa_id = $1"}
		if s.condition != "" {
			conditions = append(conditions, s.condition)
		}
		conditions = append(conditions, s.column+" BETWEEN CURRENT_DATE AND CURRENT_DATE + $2::int")
		parts[i] = fmt.Sprintf(
			"SELECT '%s' AS tipo, COUNT(*) AS total, COALESCE(STRING_AGG(%s, ', '), '') AS afectados FROM %s WHERE %s",
			s.kind, s.label, s.table, strings.Join(conditions, " AND "),
		)
	}
	return queryplan.Plan{
		SelectFields:  []string{"tipo", "total", "afectados"},
		Params:        []any{req.companyID, window},
		Complexity:    templateComplexity,
		EstimatedRows: len(alertSources),
		IsMultiQuery:  true,
		Explanation:   fmt.Sprintf("Alertas de vencimiento de licencias, SOAT y tecnomecánica en los próximos %d días", window),
		SQL:           strings.Join(parts, " UNION ALL "),
	}, nil
}

type performanceTemplate struct {
	table       string
	tripColumn  string
	fields      []string
	extra       []string
	explanation string
}

var tripAggregates = []string{
	"COUNT(Viajes.id) AS total_viajes",
	"COALESCE(SUM(Viajes.pasajeros), 0) AS total_pasajeros",
	"SUM(CASE WHEN Viajes.estado = 'completado' THEN 1 ELSE 0 END) AS viajes_completados",
}

var (
	driverPerformance = performanceTemplate{
		table:       Conductores,
		tripColumn:  "conductor_id",
		fields:      []string{"id", "nombre", "apellido"},
		explanation: "Rendimiento de conductores",
	}
	vehiclePerformance = performanceTemplate{
		table:       Vehiculos,
		tripColumn:  "vehiculo_id",
		fields:      []string{"id", "placa", "marca", "modelo"},
		explanation: "Rendimiento de vehículos",
	}
	routePerformance = performanceTemplate{
		table:       Rutas,
		tripColumn:  "ruta_id",
		fields:      []string{"id", "nombre", "origen", "destino"},
		extra:       []string{"COALESCE(SUM(Rutas.distancia_km), 0) AS km_recorridos"},
		explanation: "Rendimiento de rutas",
	}
)

func (p *Planner) performance(req request, tpl performanceTemplate) (queryplan.Plan, error) {
	table, _ := Lookup(tpl.table)
	grouped := table.qualify(tpl.fields)

	plan := queryplan.Plan{FromTable: table.Name}
	plan.Joins = []queryplan.Join{{
		Kind:  queryplan.InnerJoin,
		Table: Viajes,
		On:    fmt.Sprintf("Viajes.%s = %s AND Viajes.empresa_id = %s", tpl.tripColumn, table.Column("id"), table.Column(table.CompanyColumn)),
	}}
	plan.SelectFields = append(append(append([]string{}, grouped...), tripAggregates...), tpl.extra...)
	plan.Where(tenantPredicate(table, plan.Bind(req.companyID)))
	plan.Where("Viajes.fecha_salida >= CURRENT_DATE - " + plan.Bind(p.opts.LookbackDays) + "::int")
	plan.GroupBy = grouped
	plan.OrderBy = []string{"total_viajes DESC"}
	plan.Limit = performanceLimit

	plan.Score()
	plan.Complexity = templateComplexity
	plan.EstimatedRows = min(plan.EstimatedRows, performanceLimit)
	plan.Explanation = fmt.Sprintf("%s en los últimos %d días, top %d por número de viajes", tpl.explanation, p.opts.LookbackDays, performanceLimit)
	plan.SQL = plan.Render()
	return plan, nil
}

func (p *Planner) driverPerformance(req request) (queryplan.Plan, error) {
	return p.performance(req, driverPerformance)
}

func (p *Planner) vehiclePerformance(req request) (queryplan.Plan, error) {
	return p.performance(req, vehiclePerformance)
}

func (p *Planner) routePerformance(req request) (queryplan.Plan, error) {
	return p.performance(req, routePerformance)
}

func (p *Planner) predictiveMaintenance(req request) (queryplan.Plan, error) {
	table, _ := Lookup(Vehiculos)
	nearest := "LEAST(Vehiculos.soat_vencimiento, Vehiculos.tecnomecanica_vencimiento) - CURRENT_DATE"
	idle := "CURRENT_DATE - Vehiculos.ultimo_mantenimiento"

	plan := queryplan.Plan{FromTable: table.Name}
	plan.SelectFields = append(table.qualify([]string{"id", "placa", "marca", "modelo", "kilometraje", "ultimo_mantenimiento"}),
		fmt.Sprintf("(%s) AS dias_desde_mantenimiento", idle),
		fmt.Sprintf("(%s) AS dias_para_vencimiento", nearest),
		fmt.Sprintf("CASE WHEN %[1]s <= 7 OR %[2]s > 180 THEN 'alta' WHEN %[1]s <= 30 OR %[2]s > 90 THEN 'media' ELSE 'baja' END AS prioridad", nearest, idle),
	)
	plan.Where(tenantPredicate(table, plan.Bind(req.companyID)))
	plan.Where(fmt.Sprintf("%s = %s", table.Column(table.StatusColumn), plan.Bind(table.AvailableStatus)))
	plan.OrderBy = []string{"dias_para_vencimiento ASC"}

	plan.Score()
	plan.Complexity = templateComplexity
	plan.Explanation = "Vehículos disponibles ordenados por cercanía de vencimientos y tiempo sin mantenimiento"
	plan.SQL = plan.Render()
	return plan, nil
}

func (p *Planner) predictiveLicense(req request) (queryplan.Plan, error) {
	table, _ := Lookup(Conductores)
	remaining := "Conductores.licencia_vencimiento - CURRENT_DATE"

	plan := queryplan.Plan{FromTable: table.Name}
	plan.SelectFields = append(table.qualify([]string{"id", "nombre", "apellido", "licencia_numero", "licencia_categoria", "licencia_vencimiento"}),
		fmt.Sprintf("(%s) AS dias_para_vencimiento", remaining),
		fmt.Sprintf("CASE WHEN %[1]s < 0 THEN 'vencida' WHEN %[1]s <= 7 THEN 'critica' WHEN %[1]s <= 30 THEN 'alta' ELSE 'normal' END AS urgencia", remaining),
	)
	plan.Where(tenantPredicate(table, plan.Bind(req.companyID)))
	plan.Where(fmt.Sprintf("%s = %s", table.Column(table.StatusColumn), plan.Bind(table.AvailableStatus)))
	plan.OrderBy = []string{"dias_para_vencimiento ASC"}

	plan.Score()
	plan.Complexity = templateComplexity
	plan.Explanation = "Conductores activos ordenados por días para el vencimiento de la licencia"
	plan.SQL = plan.Render()
	return plan, nil
}
