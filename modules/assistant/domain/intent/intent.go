// Package intent defines the closed set of intents the assistant can
// classify a message into.
package intent

// Intent is the classified purpose of a user message.
type Intent string

// Base intents, in the order the pattern matcher declares them. Ties in the
// matcher resolve to the earliest entry.
const (
	Greeting    Intent = "greeting"
	Farewell    Intent = "farewell"
	Help        Intent = "help"
	Status      Intent = "status"
	Count       Intent = "count"
	List        Intent = "list"
	Filter      Intent = "filter"
	Report      Intent = "report"
	Maintenance Intent = "maintenance"
	License     Intent = "license"
	Route       Intent = "route"
	Schedule    Intent = "schedule"
	Driver      Intent = "driver"
	Vehicle     Intent = "vehicle"
	Company     Intent = "company"
	User        Intent = "user"
)

// Composite intents produced by the refinement table.
const (
	SystemStatus          Intent = "system_status"
	DriverLicense         Intent = "driver_license"
	LicenseExpiry         Intent = "license_expiry"
	VehicleMaintenance    Intent = "vehicle_maintenance"
	CountDriver           Intent = "count_driver"
	CountVehicle          Intent = "count_vehicle"
	ListDriver            Intent = "list_driver"
	ListVehicle           Intent = "list_vehicle"
	ListRoute             Intent = "list_route"
	ListSchedule          Intent = "list_schedule"
	Alerts                Intent = "alerts"
	ExpiryAlerts          Intent = "expiry_alerts"
	Dashboard             Intent = "dashboard"
	Summary               Intent = "summary"
	DriverPerformance     Intent = "driver_performance"
	VehiclePerformance    Intent = "vehicle_performance"
	RoutePerformance      Intent = "route_performance"
	PredictiveMaintenance Intent = "predictive_maintenance"
	PredictiveLicense     Intent = "predictive_license"
)

const Unknown Intent = "unknown"

var base = []Intent{
	Greeting, Farewell, Help, Status, Count, List, Filter, Report,
	Maintenance, License, Route, Schedule, Driver, Vehicle, Company, User,
}

var composite = []Intent{
	SystemStatus, DriverLicense, LicenseExpiry, VehicleMaintenance,
	CountDriver, CountVehicle, ListDriver, ListVehicle, ListRoute, ListSchedule,
	Alerts, ExpiryAlerts, Dashboard, Summary,
	DriverPerformance, VehiclePerformance, RoutePerformance,
	PredictiveMaintenance, PredictiveLicense,
}

var byName = func() map[string]Intent {
	m := make(map[string]Intent, len(base)+len(composite)+1)
	for _, i := range All() {
		m[string(i)] = i
	}
	return m
}()

// Base returns the base intents in declaration order.
func Base() []Intent {
	out := make([]Intent, len(base))
	copy(out, base)
	return out
}

func Composite() []Intent {
	out := make([]Intent, len(composite))
	copy(out, composite)
	return out
}

// All returns every intent, Unknown included.
func All() []Intent {
	out := make([]Intent, 0, len(base)+len(composite)+1)
	out = append(out, base...)
	out = append(out, composite...)
	return append(out, Unknown)
}

// Parse maps a string to its intent. Anything unrecognised is Unknown.
func Parse(s string) Intent {
	if i, ok := byName[s]; ok {
		return i
	}
	return Unknown
}

func (i Intent) String() string {
	return string(i)
}

func (i Intent) Valid() bool {
	_, ok := byName[string(i)]
	return ok
}

// Conversational intents never need data retrieval.
func (i Intent) Conversational() bool {
	switch i {
	case Greeting, Farewell, Help, Unknown:
		return true
	}
	return false
}

// Specific intents get a confidence bonus.
func (i Intent) Specific() bool {
	switch i {
	case LicenseExpiry, VehicleMaintenance, SystemStatus, CountDriver, CountVehicle:
		return true
	}
	return false
}

// Domain is an entity kind a message can mention.
type Domain string

const (
	DomainDriver   Domain = "driver"
	DomainVehicle  Domain = "vehicle"
	DomainRoute    Domain = "route"
	DomainSchedule Domain = "schedule"
	DomainCompany  Domain = "company"
	DomainUser     Domain = "user"
)

// Domains returns the entity kinds in a fixed order.
func Domains() []Domain {
	return []Domain{DomainDriver, DomainVehicle, DomainRoute, DomainSchedule, DomainCompany, DomainUser}
}

// Domain returns the entity kind an intent is primarily about, or "".
func (i Intent) Domain() Domain {
	switch i {
	case Driver, CountDriver, ListDriver, DriverLicense, LicenseExpiry, License,
		DriverPerformance, PredictiveLicense:
		return DomainDriver
	case Vehicle, CountVehicle, ListVehicle, VehicleMaintenance, Maintenance,
		VehiclePerformance, PredictiveMaintenance:
		return DomainVehicle
	case Route, ListRoute, RoutePerformance:
		return DomainRoute
	case Schedule, ListSchedule:
		return DomainSchedule
	case Company:
		return DomainCompany
	case User:
		return DomainUser
	}
	return ""
}
