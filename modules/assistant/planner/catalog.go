package planner

import (
	"fmt"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

const (
	Conductores         = "Conductores"
	Vehiculos           = "Vehiculos"
	Rutas               = "Rutas"
	Viajes              = "Viajes"
	AlertasVencimientos = "AlertasVencimientos"
	ResumenOperacional  = "ResumenOperacional"
)

// Table is the planner's view of a relation. Empty column names mean the
// relation has no such column.
type Table struct {
	Name              string
	CompanyColumn     string
	StatusColumn      string
	AvailableStatus   string
	DateColumn        string
	BasicFields       []string
	SpecializedFields []string
	// LabelFields are added to the select list when the table is joined.
	LabelFields []string
	View        bool
}

func (t Table) Column(name string) string {
	return t.Name + "." + name
}

func (t Table) qualify(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = t.Column(c)
	}
	return out
}

func (t Table) TenantScoped() bool {
	return t.CompanyColumn != ""
}

var catalog = map[string]Table{
	Conductores: {
		Name:              Conductores,
		CompanyColumn:     "empresa_id",
		StatusColumn:      "estado",
		AvailableStatus:   "activo",
		DateColumn:        "fecha_registro",
		BasicFields:       []string{"id", "nombre", "apellido", "cedula", "telefono", "estado"},
		SpecializedFields: []string{"licencia_numero", "licencia_categoria", "licencia_vencimiento"},
		LabelFields:       []string{"nombre", "apellido"},
	},
	Vehiculos: {
		Name:              Vehiculos,
		CompanyColumn:     "empresa_id",
		StatusColumn:      "estado",
		AvailableStatus:   "disponible",
		DateColumn:        "ultimo_mantenimiento",
		BasicFields:       []string{"id", "placa", "marca", "modelo", "capacidad", "estado"},
		SpecializedFields: []string{"kilometraje", "ultimo_mantenimiento", "soat_vencimiento", "tecnomecanica_vencimiento"},
		LabelFields:       []string{"placa"},
	},
	Rutas: {
		Name:            Rutas,
		CompanyColumn:   "empresa_id",
		StatusColumn:    "estado",
		AvailableStatus: "activa",
		BasicFields:     []string{"id", "nombre", "origen", "destino", "distancia_km", "estado"},
		LabelFields:     []string{"nombre"},
	},
	Viajes: {
		Name:          Viajes,
		CompanyColumn: "empresa_id",
		DateColumn:    "fecha_salida",
		BasicFields:   []string{"id", "ruta_id", "vehiculo_id", "conductor_id", "fecha_salida", "fecha_llegada", "estado", "pasajeros"},
		LabelFields:   []string{"fecha_salida", "estado"},
	},
	AlertasVencimientos: {
		Name:          AlertasVencimientos,
		CompanyColumn: "empresa_id",
		DateColumn:    "fecha_vencimiento",
		BasicFields:   []string{"tipo", "referencia", "fecha_vencimiento", "dias_restantes"},
		View:          true,
	},
	ResumenOperacional: {
		Name:          ResumenOperacional,
		CompanyColumn: "empresa_id",
		View:          true,
	},
}

// Lookup returns the catalogue entry of a table.
func Lookup(name string) (Table, bool) {
	t, ok := catalog[name]
	return t, ok
}

var domainTables = map[intent.Domain]string{
	intent.DomainDriver:   Conductores,
	intent.DomainVehicle:  Vehiculos,
	intent.DomainRoute:    Rutas,
	intent.DomainSchedule: Viajes,
}

// primaryTables is the static intent to table lookup. Intents absent here
// resolve through the domains the message mentions.
var primaryTables = map[intent.Intent]string{
	intent.Driver:             Conductores,
	intent.CountDriver:        Conductores,
	intent.ListDriver:         Conductores,
	intent.DriverLicense:      Conductores,
	intent.License:            Conductores,
	intent.LicenseExpiry:      Conductores,
	intent.Vehicle:            Vehiculos,
	intent.CountVehicle:       Vehiculos,
	intent.ListVehicle:        Vehiculos,
	intent.VehicleMaintenance: Vehiculos,
	intent.Maintenance:        Vehiculos,
	intent.Route:              Rutas,
	intent.ListRoute:          Rutas,
	intent.Schedule:           Viajes,
	intent.ListSchedule:       Viajes,
	intent.ExpiryAlerts:       AlertasVencimientos,
	intent.Dashboard:          ResumenOperacional,
	intent.Summary:            ResumenOperacional,
	intent.Status:             ResumenOperacional,
	intent.Report:             ResumenOperacional,
}

type tablePair struct {
	from, to string
}

// relations are the cross-entity joins. Every ON clause also matches the
// company column so a join never crosses tenants.
var relations = map[tablePair]queryplan.Join{
	{Conductores, Vehiculos}: {Kind: queryplan.LeftJoin, Table: Vehiculos, On: "Vehiculos.conductor_id = Conductores.id AND Vehiculos.empresa_id = Conductores.empresa_id"},
	{Vehiculos, Conductores}: {Kind: queryplan.LeftJoin, Table: Conductores, On: "Conductores.id = Vehiculos.conductor_id AND Conductores.empresa_id = Vehiculos.empresa_id"},
	{Viajes, Vehiculos}:      {Kind: queryplan.InnerJoin, Table: Vehiculos, On: "Vehiculos.id = Viajes.vehiculo_id AND Vehiculos.empresa_id = Viajes.empresa_id"},
	{Viajes, Rutas}:          {Kind: queryplan.InnerJoin, Table: Rutas, On: "Rutas.id = Viajes.ruta_id AND Rutas.empresa_id = Viajes.empresa_id"},
	{Viajes, Conductores}:    {Kind: queryplan.InnerJoin, Table: Conductores, On: "Conductores.id = Viajes.conductor_id AND Conductores.empresa_id = Viajes.empresa_id"},
	{Rutas, Viajes}:          {Kind: queryplan.LeftJoin, Table: Viajes, On: "Viajes.ruta_id = Rutas.id AND Viajes.empresa_id = Rutas.empresa_id"},
	{Vehiculos, Viajes}:      {Kind: queryplan.LeftJoin, Table: Viajes, On: "Viajes.vehiculo_id = Vehiculos.id AND Viajes.empresa_id = Vehiculos.empresa_id"},
	{Conductores, Viajes}:    {Kind: queryplan.LeftJoin, Table: Viajes, On: "Viajes.conductor_id = Conductores.id AND Viajes.empresa_id = Conductores.empresa_id"},
}

func relation(from, to string) (queryplan.Join, bool) {
	j, ok := relations[tablePair{from, to}]
	return j, ok
}

func tenantPredicate(t Table, placeholder string) string {
	return fmt.Sprintf("%s = %s", t.Column(t.CompanyColumn), placeholder)
}
