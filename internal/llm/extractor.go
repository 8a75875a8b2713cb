package llm

import (
	"fmt"
	"strings"

	"github.com/bybot/pagare-worker/internal/prompts"
)

// ExtractionSchema defines what to extract from attached documents
type ExtractionSchema struct {
	Name         string        // Schema name, used in logs
	Description  string        // Task preamble
	Fields       []SchemaField // Expected output fields
	Instructions []string      // Field-specific guidance appended after the structure
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string
	Required    bool
}

var responseFrame = prompts.MustGet(prompts.Extraction, "response-frame")

// BuildExtractionPrompt constructs the prompt sent alongside the uploaded documents
func BuildExtractionPrompt(schema ExtractionSchema) string {
	var structure strings.Builder
	structure.WriteString("{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string o null"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (obligatorio)"
		}
		structure.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			structure.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			structure.WriteString(",")
		}
		structure.WriteString("\n")
	}
	structure.WriteString("}")

	var instructions strings.Builder
	if len(schema.Instructions) > 0 {
		instructions.WriteString("INSTRUCCIONES ESPECÍFICAS:\n")
		for _, line := range schema.Instructions {
			instructions.WriteString("- ")
			instructions.WriteString(line)
			instructions.WriteString("\n")
		}
		instructions.WriteString("\n")
	}

	return prompts.Format(responseFrame, map[string]string{
		"Description":  schema.Description,
		"Structure":    structure.String(),
		"Instructions": instructions.String(),
	})
}

// teaInstructions guide the search for the effective annual rate in any document
var teaInstructions = prompts.MustLines(prompts.Extraction, "tea-instructions")

// withTEA returns a fresh slice so schemas never share a backing array
func withTEA(lines []string) []string {
	out := make([]string, 0, len(lines)+len(teaInstructions))
	out = append(out, lines...)
	return append(out, teaInstructions...)
}

// EstadoCuentaSchema returns the extraction schema for the account statement
func EstadoCuentaSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "EstadoCuenta",
		Description: prompts.MustGet(prompts.Extraction, "estado-cuenta-description"),
		Fields: []SchemaField{
			{Name: "fecha_causacion", Type: `"YYYY-MM-DD" o null`, Description: "movimiento siguiente al último pago"},
			{Name: "saldo_capital", Type: "número decimal o null", Description: "saldo de capital pendiente"},
			{Name: "saldo_interes", Type: "número decimal o null", Description: "intereses causados pendientes"},
			{Name: "saldo_mora", Type: "número decimal o null", Description: "intereses de mora o recargos por mora"},
			{Name: "tasa_interes_efectiva_anual", Type: "número decimal (porcentaje) o null", Description: "TEA del crédito"},
		},
		Instructions: withTEA(prompts.MustLines(prompts.Extraction, "estado-cuenta-instructions")),
	}
}

const personaType = `{"tipo_identificacion": "CC, CE, NIT...", "numero_identificacion": string, "nombres": string, "apellidos": string, "fecha_expedicion_cedula": "YYYY-MM-DD", "fecha_nacimiento": "YYYY-MM-DD", "telefono": string, "direccion": string, "correo": string}`

// AnexosSchema returns the extraction schema for the annex documents, which
// identify the debtor and co-debtor
func AnexosSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Anexos",
		Description: prompts.MustGet(prompts.Extraction, "anexos-description"),
		Fields: []SchemaField{
			{Name: "deudor", Type: personaType, Description: "persona principal del crédito", Required: true},
			{Name: "codeudor", Type: personaType + " o null", Description: "persona que garantiza el crédito; puede no existir"},
			{Name: "tasa_interes_efectiva_anual", Type: "número decimal (porcentaje) o null", Description: "TEA si aparece en algún anexo"},
		},
		Instructions: withTEA(prompts.MustLines(prompts.Extraction, "anexos-instructions")),
	}
}
