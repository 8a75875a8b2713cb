package overlay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bybot/pagare-worker/internal/schemas"
	"github.com/bybot/pagare-worker/internal/types"
)

const defaultTemplateFontSize = 10

// TemplateField places the value found at a dotted path
type TemplateField struct {
	Nombre   string  `json:"nombre"`
	Path     string  `json:"path"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size,omitempty"`
	Formato  Format  `json:"formato,omitempty"`
	Default  string  `json:"default,omitempty"`
}

// TemplatePage lists the fields of one page
type TemplatePage struct {
	Campos []TemplateField `json:"campos"`
}

// Template is a declarative layout keyed by 0-based page number. Coordinates
// are absolute points from the top-left corner.
type Template struct {
	Nombre  string                  `json:"nombre,omitempty"`
	Version string                  `json:"version,omitempty"`
	Pages   map[string]TemplatePage `json:"pages"`
}

// FieldIssue reports a template field whose value could not be formatted
type FieldIssue struct {
	Field string
	Err   error
}

// ParseTemplate validates and decodes a template document
func ParseTemplate(data []byte) (*Template, error) {
	if err := schemas.Validate(schemas.Template, data); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return &t, nil
}

// LoadTemplate reads a template from a JSON file
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return ParseTemplate(data)
}

// DefaultTemplate expresses the built-in layout for a US Letter page
func DefaultTemplate() *Template {
	const w, h = 612.0, 792.0
	at := func(nombre, path string, f fraction, formato Format) TemplateField {
		return TemplateField{
			Nombre:   nombre,
			Path:     path,
			X:        math.Round(w*f.x*100) / 100,
			Y:        math.Round(h*f.y*100) / 100,
			FontSize: fieldFontSize,
			Formato:  formato,
		}
	}
	endoso := func(i int) TemplateField {
		return TemplateField{
			Nombre:   fmt.Sprintf("endoso_%d", i+1),
			Path:     fmt.Sprintf("endoso.linea_%d", i+1),
			X:        math.Round(w*endosoFraction.x*100) / 100,
			Y:        math.Round((h*endosoFraction.y+float64(i*endosoLineSpace))*100) / 100,
			FontSize: endosoFontSize,
			Formato:  FormatText,
		}
	}

	return &Template{
		Nombre:  "Pagaré CREARCOOP",
		Version: "1.0",
		Pages: map[string]TemplatePage{
			"0": {Campos: []TemplateField{
				at(FieldCapital, "estado_cuenta.saldo_capital", fieldFractions[FieldCapital], FormatCurrency),
				at(FieldInteresPlazo, "estado_cuenta.interes_plazo", fieldFractions[FieldInteresPlazo], FormatCurrency),
				at(FieldTasaInteres, "estado_cuenta.tasa_interes_efectiva_anual", fieldFractions[FieldTasaInteres], FormatPercent),
				at(FieldFechaVencimiento, "estado_cuenta.fecha_causacion", fieldFractions[FieldFechaVencimiento], FormatDateShort),
				at(FieldDeudorNombre, "deudor.nombre_completo", fieldFractions[FieldDeudorNombre], FormatText),
				at(FieldCodeudorNombre, "codeudor.nombre_completo", fieldFractions[FieldCodeudorNombre], FormatText),
				at(FieldDeudorCedula, "deudor.numero_identificacion", fieldFractions[FieldDeudorCedula], FormatText),
				at(FieldCodeudorCedula, "codeudor.numero_identificacion", fieldFractions[FieldCodeudorCedula], FormatText),
			}},
			"1": {Campos: []TemplateField{endoso(0), endoso(1)}},
		},
	}
}

// TemplateData flattens extracted data into the map template paths read from.
// It adds estado_cuenta.interes_plazo, {deudor,codeudor}.nombre_completo and
// endoso.linea_N, and drops a co-debtor without identification.
func TemplateData(datos types.Datos, endorsement []string) (map[string]any, error) {
	raw, err := json.Marshal(datos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode datos: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode datos: %w", err)
	}

	ec := datos.EstadoCuenta
	if ec.SaldoInteres != nil || ec.SaldoMora != nil {
		if m, ok := data["estado_cuenta"].(map[string]any); ok {
			m["interes_plazo"] = value(ec.SaldoInteres) + value(ec.SaldoMora)
		}
	}
	if m, ok := data["deudor"].(map[string]any); ok {
		m["nombre_completo"] = datos.Deudor.FullName()
	}
	if datos.Codeudor.HasIdentification() {
		if m, ok := data["codeudor"].(map[string]any); ok {
			m["nombre_completo"] = datos.Codeudor.FullName()
		}
	} else {
		data["codeudor"] = nil
	}

	lines := make(map[string]any, len(endorsement))
	for i, line := range endorsement {
		lines[fmt.Sprintf("linea_%d", i+1)] = line
	}
	data["endoso"] = lines
	return data, nil
}

// Plan computes placements for every field whose page exists in the document.
// Empty, zero or missing values fall back to the field default and are skipped
// when that is empty too.
func (t *Template) Plan(dims []Dim, data map[string]any) ([]Placement, []FieldIssue) {
	keys := make([]int, 0, len(t.Pages))
	for k := range t.Pages {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)

	var out []Placement
	var issues []FieldIssue
	for _, page := range keys {
		if page < 0 || page >= len(dims) {
			continue
		}
		for _, campo := range t.Pages[strconv.Itoa(page)].Campos {
			text := campo.Default
			if v := Lookup(data, campo.Path); !isEmpty(v) {
				formatted, err := FormatValue(campo.Formato, v)
				if err != nil {
					issues = append(issues, FieldIssue{Field: campo.Nombre, Err: err})
					continue
				}
				text = formatted
			}
			if text == "" {
				continue
			}
			size := campo.FontSize
			if size <= 0 {
				size = defaultTemplateFontSize
			}
			out = append(out, Placement{Field: campo.Nombre, Page: page, X: campo.X, Y: campo.Y, FontSize: size, Text: text})
		}
	}
	SortPlacements(out)
	return out, issues
}

// Lookup follows a dotted path through nested maps
func Lookup(data map[string]any, path string) any {
	var cur any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	default:
		return false
	}
}
