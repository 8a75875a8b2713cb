package types

import (
	"strings"
	"time"
)

// EstadoCuenta holds the figures read from the account statement.
// Every field is nullable: the oracle may not find it.
type EstadoCuenta struct {
	FechaCausacion           *string  `json:"fecha_causacion"`
	SaldoCapital             *float64 `json:"saldo_capital"`
	SaldoInteres             *float64 `json:"saldo_interes"`
	SaldoMora                *float64 `json:"saldo_mora"`
	TasaInteresEfectivaAnual *float64 `json:"tasa_interes_efectiva_anual"`
}

// Persona holds the identification and contact data of a debtor or co-debtor
type Persona struct {
	TipoIdentificacion    *string `json:"tipo_identificacion"`
	NumeroIdentificacion  *string `json:"numero_identificacion"`
	Nombres               *string `json:"nombres"`
	Apellidos             *string `json:"apellidos"`
	FechaExpedicionCedula *string `json:"fecha_expedicion_cedula"`
	FechaNacimiento       *string `json:"fecha_nacimiento"`
	Telefono              *string `json:"telefono"`
	Direccion             *string `json:"direccion"`
	Correo                *string `json:"correo"`
}

// FullName joins names and surnames, skipping whichever is missing
func (p *Persona) FullName() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if v := deref(p.Nombres); v != "" {
		parts = append(parts, v)
	}
	if v := deref(p.Apellidos); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

// HasIdentification reports whether an identification number is present
func (p *Persona) HasIdentification() bool {
	return p != nil && deref(p.NumeroIdentificacion) != ""
}

// AnexosResult is what the oracle returns for the annex documents
type AnexosResult struct {
	Deudor                   *Persona `json:"deudor"`
	Codeudor                 *Persona `json:"codeudor"`
	TasaInteresEfectivaAnual *float64 `json:"tasa_interes_efectiva_anual"`
}

// Datos is the merged extraction persisted as datos_originales and datos_validados
type Datos struct {
	EstadoCuenta EstadoCuenta `json:"estado_cuenta"`
	Deudor       *Persona     `json:"deudor"`
	Codeudor     *Persona     `json:"codeudor"`
}

// Merge combines statement and annex results. The statement's effective annual
// rate wins whenever it is present; the annex rate is only a fallback.
func Merge(statement *EstadoCuenta, anexos *AnexosResult) Datos {
	var d Datos
	if statement != nil {
		d.EstadoCuenta = *statement
	}
	if anexos != nil {
		d.Deudor = anexos.Deudor
		d.Codeudor = anexos.Codeudor
		if d.EstadoCuenta.TasaInteresEfectivaAnual == nil {
			d.EstadoCuenta.TasaInteresEfectivaAnual = anexos.TasaInteresEfectivaAnual
		}
	}
	return d
}

// TokenUsage is the oracle accounting stored as the metadata column
type TokenUsage struct {
	Input  int    `json:"tokens_entrada"`
	Output int    `json:"tokens_salida"`
	Total  int    `json:"tokens_total"`
	Model  string `json:"modelo,omitempty"`
}

// Add sums two usages, keeping the first non-empty model name
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	model := u.Model
	if model == "" {
		model = other.Model
	}
	return TokenUsage{
		Input:  u.Input + other.Input,
		Output: u.Output + other.Output,
		Total:  u.Total + other.Total,
		Model:  model,
	}
}

// ExtractionRecord is the latest analysis stored for a proceso
type ExtractionRecord struct {
	ProcesoID     int64      `json:"proceso_id"`
	Originales    Datos      `json:"datos_originales"`
	Validados     *Datos     `json:"datos_validados,omitempty"`
	Metadata      TokenUsage `json:"metadata"`
	FechaAnalisis time.Time  `json:"fecha_analisis"`
}

// Preferred returns the human-validated data when present, else the raw extraction
func (r *ExtractionRecord) Preferred() Datos {
	if r.Validados != nil {
		return *r.Validados
	}
	return r.Originales
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
