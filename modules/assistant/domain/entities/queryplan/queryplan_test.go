package queryplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Render(t *testing.T) {
	t.Parallel()

	p := Plan{
		SelectFields: []string{"Conductores.nombre", "Vehiculos.placa"},
		FromTable:    "Conductores",
		Joins: []Join{{
			Kind:  LeftJoin,
			Table: "Vehiculos",
			On:    "Vehiculos.conductor_id = Conductores.id AND Vehiculos.empresa_id = Conductores.empresa_id",
		}},
		OrderBy: []string{"Conductores.estado"},
		Limit:   50,
	}
	ph := p.Bind(int64(7))
	p.Where("Conductores.empresa_id = " + ph)
	p.Where("Conductores.estado = " + p.Bind("activo"))

	assert.Equal(t,
		"SELECT Conductores.nombre, Vehiculos.placa FROM Conductores "+
			"LEFT JOIN Vehiculos ON Vehiculos.conductor_id = Conductores.id AND Vehiculos.empresa_id = Conductores.empresa_id "+
			"WHERE Conductores.empresa_id = $1 AND Conductores.estado = $2 "+
			"ORDER BY Conductores.estado LIMIT 50",
		p.Render())
	assert.Equal(t, []any{int64(7), "activo"}, p.Params)
	assert.True(t, p.HasJoin("Vehiculos"))
	assert.False(t, p.HasJoin("Rutas"))
}

func TestPlan_RenderWithoutTable(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Plan{}.Render())
	assert.False(t, Plan{}.HasSQL())
}

func TestPlan_Score(t *testing.T) {
	t.Parallel()

	p := Plan{}
	p.Score()
	assert.InDelta(t, 1.0, p.Complexity, 1e-9)
	assert.Equal(t, 10, p.EstimatedRows)

	p = Plan{
		Joins:           []Join{{}, {}},
		WhereConditions: []string{"a", "b", "c"},
		GroupBy:         []string{"x"},
		OrderBy:         []string{"y", "z"},
	}
	p.Score()
	assert.InDelta(t, 1+1.0+0.6+0.3+0.2, p.Complexity, 1e-9)
	assert.Equal(t, 50, p.EstimatedRows)

	p = Plan{Joins: make([]Join, 20), WhereConditions: make([]string, 100)}
	p.Score()
	assert.InDelta(t, MaxComplexity, p.Complexity, 1e-9)
	assert.Equal(t, MaxEstimate, p.EstimatedRows)
}

func TestPlan_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	p := Plan{FromTable: "Rutas", SelectFields: []string{"id"}}
	p.Where("Rutas.empresa_id = " + p.Bind(int64(1)))
	c := p.Clone()
	c.SelectFields[0] = "nombre"
	c.Where("x")
	c.Params[0] = int64(2)

	require.Len(t, p.WhereConditions, 1)
	assert.Equal(t, "id", p.SelectFields[0])
	assert.Equal(t, int64(1), p.Params[0])
}
