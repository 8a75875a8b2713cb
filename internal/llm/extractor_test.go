package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt_ListsEveryField(t *testing.T) {
	for _, schema := range []ExtractionSchema{EstadoCuentaSchema(), AnexosSchema()} {
		t.Run(schema.Name, func(t *testing.T) {
			prompt := BuildExtractionPrompt(schema)

			assert.True(t, strings.HasPrefix(prompt, schema.Description))
			for _, f := range schema.Fields {
				assert.Contains(t, prompt, `"`+f.Name+`"`)
			}
			assert.Contains(t, prompt, "INSTRUCCIONES ESPECÍFICAS")
			assert.Contains(t, prompt, "TEA")
			assert.Contains(t, prompt, "Responde SOLO con el JSON")
		})
	}
}

func TestBuildExtractionPrompt_RequiredAndDefaultType(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionSchema{
		Description: "Extrae.",
		Fields: []SchemaField{
			{Name: "a", Required: true},
			{Name: "b", Type: "número"},
		},
	})

	assert.Contains(t, prompt, `"a": string o null (obligatorio),`)
	assert.Contains(t, prompt, `"b": número`+"\n")
	assert.NotContains(t, prompt, "INSTRUCCIONES ESPECÍFICAS")
}

func TestEstadoCuentaSchema_Fields(t *testing.T) {
	var names []string
	for _, f := range EstadoCuentaSchema().Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"fecha_causacion",
		"saldo_capital",
		"saldo_interes",
		"saldo_mora",
		"tasa_interes_efectiva_anual",
	}, names)
}

func TestSchemas_DoNotShareInstructions(t *testing.T) {
	a := EstadoCuentaSchema()
	b := AnexosSchema()
	a.Instructions[0] = "changed"
	assert.NotEqual(t, "changed", b.Instructions[0])
	assert.NotEqual(t, "changed", teaInstructions[0])
}

func TestBuildExtractionPrompt_Layout(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionSchema{
		Description:  "Extrae.",
		Fields:       []SchemaField{{Name: "a"}},
		Instructions: []string{"usa null"},
	})

	assert.True(t, strings.HasPrefix(prompt, "Extrae.\n\nResponde SOLO con un JSON válido con esta estructura exacta:\n{\n  \"a\": string o null\n}\n\nINSTRUCCIONES ESPECÍFICAS:\n- usa null\n\nIMPORTANTE:\n"), prompt)
	assert.NotContains(t, prompt, "{{.")
}
