// Package planner turns an analysed message into a parameterised, tenant
// scoped query plan. It never executes anything.
package planner

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

type Options struct {
	// DefaultLimit is applied to generic plans that set no limit.
	DefaultLimit int
	// MaxLimit caps a limit taken from the message.
	MaxLimit         int
	AlertWindowDays  int
	ExpiryWindowDays int
	// LookbackDays is the window of the performance templates.
	LookbackDays int
}

func DefaultOptions() Options {
	return Options{
		DefaultLimit:     50,
		MaxLimit:         100,
		AlertWindowDays:  30,
		ExpiryWindowDays: 30,
		LookbackDays:     30,
	}
}

func (o Options) Validate() error {
	switch {
	case o.DefaultLimit <= 0, o.MaxLimit <= 0:
		return fmt.Errorf("%w: limits must be positive", ErrInvalidOptions)
	case o.DefaultLimit > o.MaxLimit:
		return fmt.Errorf("%w: default limit %d exceeds max limit %d", ErrInvalidOptions, o.DefaultLimit, o.MaxLimit)
	case o.AlertWindowDays <= 0, o.ExpiryWindowDays <= 0, o.LookbackDays <= 0:
		return fmt.Errorf("%w: day windows must be positive", ErrInvalidOptions)
	}
	return nil
}

type request struct {
	analysis  nlp.Analysis
	companyID int64
}

type handler func(p *Planner, req request) (queryplan.Plan, error)

// handlers is the exhaustive intent table; New refuses to build a planner
// that misses any intent.
func handlers() map[intent.Intent]handler {
	h := map[intent.Intent]handler{
		intent.Greeting: conversational,
		intent.Farewell: conversational,
		intent.Help:     conversational,
		intent.Unknown:  conversational,
		intent.Company:  unsupported,
		intent.User:     unsupported,

		intent.SystemStatus:          (*Planner).systemStatus,
		intent.Alerts:                (*Planner).smartAlerts,
		intent.DriverPerformance:     (*Planner).driverPerformance,
		intent.VehiclePerformance:    (*Planner).vehiclePerformance,
		intent.RoutePerformance:      (*Planner).routePerformance,
		intent.PredictiveMaintenance: (*Planner).predictiveMaintenance,
		intent.PredictiveLicense:     (*Planner).predictiveLicense,
	}
	for _, in := range []intent.Intent{
		intent.Status, intent.Count, intent.List, intent.Filter, intent.Report,
		intent.Maintenance, intent.License, intent.Route, intent.Schedule,
		intent.Driver, intent.Vehicle,
		intent.DriverLicense, intent.LicenseExpiry, intent.VehicleMaintenance,
		intent.CountDriver, intent.CountVehicle,
		intent.ListDriver, intent.ListVehicle, intent.ListRoute, intent.ListSchedule,
		intent.ExpiryAlerts, intent.Dashboard, intent.Summary,
	} {
		h[in] = (*Planner).generic
	}
	return h
}

type Planner struct {
	opts     Options
	handlers map[intent.Intent]handler
	logger   *logrus.Entry
}

type Option func(*Planner)

func WithLogger(logger *logrus.Entry) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(opts Options, options ...Option) (*Planner, error) {
	return newPlanner(opts, handlers(), options...)
}

func newPlanner(opts Options, table map[intent.Intent]handler, options ...Option) (*Planner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for _, in := range intent.All() {
		if _, ok := table[in]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, in)
		}
	}
	p := &Planner{opts: opts, handlers: table, logger: logging.Nop()}
	for _, o := range options {
		o(p)
	}
	return p, nil
}

func (p *Planner) Options() Options {
	return p.opts
}

// Build returns a complete plan or an error, never a partial plan. A plan
// with empty SQL means no retrieval is needed.
func (p *Planner) Build(analysis nlp.Analysis, companyID int64) (queryplan.Plan, error) {
	if companyID <= 0 {
		return queryplan.Plan{}, ErrInvalidTenant
	}
	h, ok := p.handlers[analysis.Intent]
	if !ok {
		return queryplan.Plan{}, fmt.Errorf("%w: %s", ErrMissingHandler, analysis.Intent)
	}
	plan, err := h(p, request{analysis: analysis, companyID: companyID})
	if err != nil {
		return queryplan.Plan{}, err
	}
	p.logger.WithFields(logrus.Fields{
		"intent":     analysis.Intent,
		"table":      plan.FromTable,
		"complexity": plan.Complexity,
		"has_sql":    plan.HasSQL(),
	}).Debug("query plan built")
	return plan, nil
}

func nullPlan(explanation string) queryplan.Plan {
	return queryplan.Plan{
		Complexity:  queryplan.MinComplexity,
		Explanation: explanation,
	}
}

func conversational(_ *Planner, req request) (queryplan.Plan, error) {
	return nullPlan(fmt.Sprintf("La intención %q no requiere consultar datos", req.analysis.Intent)), nil
}

func unsupported(_ *Planner, req request) (queryplan.Plan, error) {
	return nullPlan(fmt.Sprintf("No hay una tabla asociada a la intención %q", req.analysis.Intent)), nil
}
