package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bybot/pagare-worker/internal/types"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }

var letter = Dim{Width: 612, Height: 792}

func byField(ps []Placement) map[string][]Placement {
	out := make(map[string][]Placement)
	for _, p := range ps {
		out[p.Field] = append(out[p.Field], p)
	}
	return out
}

func TestComputeFieldPositions(t *testing.T) {
	pos, err := ComputeFieldPositions([]Dim{letter})
	require.NoError(t, err)

	capital := pos[FieldCapital]
	assert.InDelta(t, 612*0.42, capital.X, 0.001)
	assert.InDelta(t, 792*0.18, capital.Y, 0.001)
	assert.Equal(t, 0, capital.Page)
	assert.Equal(t, 11.0, capital.FontSize)

	endoso := pos[FieldEndoso]
	assert.Equal(t, 0, endoso.Page, "single page documents get the endorsement on page 0")
	assert.InDelta(t, 792*0.85, endoso.Y, 0.001)
	assert.Equal(t, 10.0, endoso.FontSize)
	assert.Len(t, pos, 9)
}

func TestComputeFieldPositions_ScalesPerPage(t *testing.T) {
	pos, err := ComputeFieldPositions([]Dim{{Width: 1224, Height: 1584}, {Width: 595, Height: 842}})
	require.NoError(t, err)

	assert.InDelta(t, 1224*0.30, pos[FieldDeudorNombre].X, 0.001)
	assert.InDelta(t, 1584*0.32, pos[FieldDeudorNombre].Y, 0.001)

	endoso := pos[FieldEndoso]
	assert.Equal(t, 1, endoso.Page)
	assert.InDelta(t, 595*0.20, endoso.X, 0.001)
	assert.InDelta(t, 842*0.85, endoso.Y, 0.001)
}

func TestComputeFieldPositions_NoPages(t *testing.T) {
	_, err := ComputeFieldPositions(nil)
	assert.Error(t, err)
}

func fullDatos() types.Datos {
	return types.Datos{
		EstadoCuenta: types.EstadoCuenta{
			FechaCausacion:           ptrS("2024-03-15"),
			SaldoCapital:             ptrF(2000000),
			SaldoInteres:             ptrF(100000),
			SaldoMora:                ptrF(50000),
			TasaInteresEfectivaAnual: ptrF(24.5),
		},
		Deudor: &types.Persona{
			Nombres:              ptrS("Ana"),
			Apellidos:            ptrS("Gomez"),
			NumeroIdentificacion: ptrS("123"),
		},
		Codeudor: &types.Persona{
			Nombres:              ptrS("Luis"),
			Apellidos:            ptrS("Pérez"),
			NumeroIdentificacion: ptrS("456"),
		},
	}
}

func TestPlan_AllFields(t *testing.T) {
	ps, err := Plan([]Dim{letter, letter}, fullDatos(), DefaultEndorsement)
	require.NoError(t, err)

	fields := byField(ps)
	assert.Equal(t, "$2.000.000", fields[FieldCapital][0].Text)
	assert.Equal(t, "$150.000", fields[FieldInteresPlazo][0].Text, "interest plus past-due balance")
	assert.Equal(t, "24.50%", fields[FieldTasaInteres][0].Text)
	assert.Equal(t, "15/03/2024", fields[FieldFechaVencimiento][0].Text)
	assert.Equal(t, "Ana Gomez", fields[FieldDeudorNombre][0].Text)
	assert.Equal(t, "123", fields[FieldDeudorCedula][0].Text)
	assert.Equal(t, "Luis Pérez", fields[FieldCodeudorNombre][0].Text)
	assert.Equal(t, "456", fields[FieldCodeudorCedula][0].Text)

	endoso := fields[FieldEndoso]
	require.Len(t, endoso, 2)
	assert.Equal(t, "Endoso en procuración a favor de:", endoso[0].Text)
	assert.Equal(t, "Andrés Bello Arias T.P. 378.676", endoso[1].Text)
	assert.Equal(t, 1, endoso[0].Page)
	assert.InDelta(t, 12, endoso[1].Y-endoso[0].Y, 0.001)
}

func TestPlan_InterestPlusPastDue(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{
		SaldoCapital: ptrF(2000000),
		SaldoInteres: ptrF(100000),
		SaldoMora:    ptrF(50000),
	}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)

	interes := byField(ps)[FieldInteresPlazo]
	require.Len(t, interes, 1)
	assert.Equal(t, "$150.000", interes[0].Text)
}

func TestPlan_SkipsZeroAndMissing(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{
		SaldoCapital:             ptrF(0),
		SaldoInteres:             nil,
		SaldoMora:                ptrF(0),
		TasaInteresEfectivaAnual: nil,
	}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)
	assert.Empty(t, ps, "zero and null values are never written")
}

func TestPlan_SkipsValuesThatRoundToZero(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{
		SaldoCapital:             ptrF(0.4),
		SaldoInteres:             ptrF(0.2),
		SaldoMora:                ptrF(0.2),
		TasaInteresEfectivaAnual: ptrF(0.004),
	}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)
	assert.Empty(t, ps, "values printed as $0 or 0.00% are skipped")
}

func TestPlan_NegativeAmount(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{SaldoCapital: ptrF(-1500)}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "-$1.500", ps[0].Text)
}

func TestPlan_OneIsWritten(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{SaldoCapital: ptrF(1)}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "$1", ps[0].Text)
}

func TestPlan_CodeudorNeedsIdentification(t *testing.T) {
	datos := fullDatos()
	datos.Codeudor.NumeroIdentificacion = nil

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)

	fields := byField(ps)
	assert.Empty(t, fields[FieldCodeudorNombre])
	assert.Empty(t, fields[FieldCodeudorCedula])
	assert.NotEmpty(t, fields[FieldDeudorNombre])
}

func TestPlan_UnparseableDateKeptRaw(t *testing.T) {
	datos := types.Datos{EstadoCuenta: types.EstadoCuenta{FechaCausacion: ptrS("marzo 15")}}

	ps, err := Plan([]Dim{letter}, datos, nil)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "marzo 15", ps[0].Text)
}

func TestPlan_Deterministic(t *testing.T) {
	dims := []Dim{letter, letter}
	first, err := Plan(dims, fullDatos(), DefaultEndorsement)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := Plan(dims, fullDatos(), DefaultEndorsement)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	for i := 1; i < len(first); i++ {
		a, b := first[i-1], first[i]
		assert.True(t, a.Page < b.Page || (a.Page == b.Page && a.Y <= b.Y), "sorted by page then y")
	}
}
