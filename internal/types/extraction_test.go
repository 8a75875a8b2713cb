package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }

func TestMerge_EffectiveAnnualRate(t *testing.T) {
	tests := []struct {
		name      string
		statement *float64
		anexos    *float64
		expected  *float64
	}{
		{name: "statement wins", statement: ptrF(24.5), anexos: ptrF(30), expected: ptrF(24.5)},
		{name: "statement wins when annex missing", statement: ptrF(24.5), anexos: nil, expected: ptrF(24.5)},
		{name: "annex fallback", statement: nil, anexos: ptrF(30), expected: ptrF(30)},
		{name: "both missing", statement: nil, anexos: nil, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge(
				&EstadoCuenta{TasaInteresEfectivaAnual: tt.statement},
				&AnexosResult{TasaInteresEfectivaAnual: tt.anexos},
			)
			if tt.expected == nil {
				assert.Nil(t, merged.EstadoCuenta.TasaInteresEfectivaAnual)
				return
			}
			require.NotNil(t, merged.EstadoCuenta.TasaInteresEfectivaAnual)
			assert.Equal(t, *tt.expected, *merged.EstadoCuenta.TasaInteresEfectivaAnual)
		})
	}
}

func TestMerge_DoesNotMutateStatement(t *testing.T) {
	statement := &EstadoCuenta{SaldoCapital: ptrF(100)}
	merged := Merge(statement, &AnexosResult{TasaInteresEfectivaAnual: ptrF(12)})

	assert.Nil(t, statement.TasaInteresEfectivaAnual)
	assert.Equal(t, 12.0, *merged.EstadoCuenta.TasaInteresEfectivaAnual)
}

func TestMerge_PeopleComeFromAnnexes(t *testing.T) {
	deudor := &Persona{Nombres: ptrS("Ana")}
	merged := Merge(&EstadoCuenta{}, &AnexosResult{Deudor: deudor})

	assert.Same(t, deudor, merged.Deudor)
	assert.Nil(t, merged.Codeudor)
}

func TestDatos_JSONShape(t *testing.T) {
	d := Datos{
		EstadoCuenta: EstadoCuenta{SaldoCapital: ptrF(1000000)},
		Deudor:       &Persona{Nombres: ptrS("Ana")},
	}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Contains(t, raw, "estado_cuenta")
	assert.Contains(t, raw, "deudor")
	assert.Contains(t, raw, "codeudor")
	assert.Nil(t, raw["codeudor"])
	assert.Equal(t, 1000000.0, raw["estado_cuenta"].(map[string]any)["saldo_capital"])
}

func TestPersona_FullName(t *testing.T) {
	assert.Equal(t, "Ana Gomez", (&Persona{Nombres: ptrS("Ana"), Apellidos: ptrS("Gomez")}).FullName())
	assert.Equal(t, "Ana", (&Persona{Nombres: ptrS("Ana")}).FullName())
	assert.Equal(t, "", (*Persona)(nil).FullName())
}

func TestPersona_HasIdentification(t *testing.T) {
	assert.True(t, (&Persona{NumeroIdentificacion: ptrS("123")}).HasIdentification())
	assert.False(t, (&Persona{NumeroIdentificacion: ptrS("  ")}).HasIdentification())
	assert.False(t, (*Persona)(nil).HasIdentification())
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{Input: 10, Output: 5, Total: 15}
	b := TokenUsage{Input: 1, Output: 2, Total: 3, Model: "gemini-1.5-flash"}

	sum := a.Add(b)
	assert.Equal(t, TokenUsage{Input: 11, Output: 7, Total: 18, Model: "gemini-1.5-flash"}, sum)
}

func TestExtractionRecord_Preferred(t *testing.T) {
	raw := Datos{EstadoCuenta: EstadoCuenta{SaldoCapital: ptrF(1)}}
	validated := Datos{EstadoCuenta: EstadoCuenta{SaldoCapital: ptrF(2)}}

	rec := &ExtractionRecord{Originales: raw}
	assert.Equal(t, 1.0, *rec.Preferred().EstadoCuenta.SaldoCapital)

	rec.Validados = &validated
	assert.Equal(t, 2.0, *rec.Preferred().EstadoCuenta.SaldoCapital)
}

func TestState(t *testing.T) {
	s, err := ParseState("informacion_ia_validada")
	require.NoError(t, err)
	assert.Equal(t, StateValidated, s)

	_, err = ParseState("borrado")
	assert.Error(t, err)

	assert.True(t, StateFilled.IsTerminal())
	assert.True(t, StateAnalysisError.IsTerminal())
	assert.False(t, StateCreated.IsTerminal())
}
