package overlay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bybot/pagare-worker/internal/schemas"
)

func TestDefaultTemplate_IsValid(t *testing.T) {
	data, err := json.Marshal(DefaultTemplate())
	require.NoError(t, err)
	assert.NoError(t, schemas.Validate(schemas.Template, data))

	parsed, err := ParseTemplate(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate(), parsed)
}

func TestDefaultTemplate_MatchesBuiltInLayout(t *testing.T) {
	dims := []Dim{letter, letter}
	datos := fullDatos()

	builtIn, err := Plan(dims, datos, DefaultEndorsement)
	require.NoError(t, err)

	data, err := TemplateData(datos, DefaultEndorsement)
	require.NoError(t, err)
	fromTemplate, issues := DefaultTemplate().Plan(dims, data)
	assert.Empty(t, issues)

	require.Len(t, fromTemplate, len(builtIn))
	for i := range builtIn {
		assert.Equal(t, builtIn[i].Text, fromTemplate[i].Text)
		assert.Equal(t, builtIn[i].Page, fromTemplate[i].Page)
		assert.InDelta(t, builtIn[i].X, fromTemplate[i].X, 0.01)
		assert.InDelta(t, builtIn[i].Y, fromTemplate[i].Y, 0.01)
	}
}

func TestTemplateData(t *testing.T) {
	datos := fullDatos()
	datos.Codeudor.NumeroIdentificacion = nil

	data, err := TemplateData(datos, []string{"linea uno"})
	require.NoError(t, err)

	assert.Equal(t, 150000.0, Lookup(data, "estado_cuenta.interes_plazo"))
	assert.Equal(t, "Ana Gomez", Lookup(data, "deudor.nombre_completo"))
	assert.Nil(t, Lookup(data, "codeudor.nombre_completo"), "co-debtor without id is dropped")
	assert.Equal(t, "linea uno", Lookup(data, "endoso.linea_1"))
}

func TestTemplatePlan_DefaultsAndSkips(t *testing.T) {
	tmpl := &Template{Pages: map[string]TemplatePage{
		"0": {Campos: []TemplateField{
			{Nombre: "ciudad", Path: "deudor.ciudad", X: 100, Y: 120, Formato: FormatUppercase, Default: "BOGOTÁ"},
			{Nombre: "mora", Path: "estado_cuenta.saldo_mora", X: 100, Y: 140, Formato: FormatCurrency},
			{Nombre: "capital_letras", Path: "estado_cuenta.saldo_capital", X: 100, Y: 180, FontSize: 9, Formato: FormatCurrencyWords},
			{Nombre: "fecha", Path: "estado_cuenta.fecha_causacion", X: 350, Y: 120, Formato: FormatDate},
		}},
		"3": {Campos: []TemplateField{
			{Nombre: "fuera", Path: "deudor.nombres", X: 1, Y: 1},
		}},
	}}
	datos := fullDatos()
	datos.EstadoCuenta.SaldoMora = ptrF(0)

	data, err := TemplateData(datos, nil)
	require.NoError(t, err)
	ps, issues := tmpl.Plan([]Dim{letter}, data)
	assert.Empty(t, issues)

	fields := byField(ps)
	assert.Equal(t, "BOGOTÁ", fields["ciudad"][0].Text, "missing value falls back to default")
	assert.Empty(t, fields["mora"], "zero without default is skipped")
	assert.Equal(t, "DOS MILLONES DE PESOS M/CTE", fields["capital_letras"][0].Text)
	assert.Equal(t, 9.0, fields["capital_letras"][0].FontSize)
	assert.Equal(t, "15 de marzo de 2024", fields["fecha"][0].Text)
	assert.Equal(t, 10.0, fields["fecha"][0].FontSize)
	assert.Empty(t, fields["fuera"], "pages beyond the document are ignored")
}

func TestTemplatePlan_FormatIssue(t *testing.T) {
	tmpl := &Template{Pages: map[string]TemplatePage{
		"0": {Campos: []TemplateField{
			{Nombre: "capital", Path: "x", X: 1, Y: 1, Formato: FormatCurrency},
		}},
	}}

	ps, issues := tmpl.Plan([]Dim{letter}, map[string]any{"x": "no es número"})
	assert.Empty(t, ps)
	require.Len(t, issues, 1)
	assert.Equal(t, "capital", issues[0].Field)
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plantilla.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"nombre": "Pagaré Estándar",
		"pages": {"0": {"campos": [{"nombre": "capital", "path": "estado_cuenta.saldo_capital", "x": 480, "y": 150, "font_size": 11, "formato": "currency"}]}}
	}`), 0644))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "Pagaré Estándar", tmpl.Nombre)
	assert.Equal(t, FormatCurrency, tmpl.Pages["0"].Campos[0].Formato)

	bad := filepath.Join(dir, "mala.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"pages": {"0": {"campos": [{"nombre": "a"}]}}}`), 0644))
	_, err = LoadTemplate(bad)
	var ve *schemas.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = LoadTemplate(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}, "s": "x"}
	assert.Equal(t, 1.0, Lookup(data, "a.b.c"))
	assert.Nil(t, Lookup(data, "a.z.c"))
	assert.Nil(t, Lookup(data, "s.t"))
}
