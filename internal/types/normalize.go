package types

import (
	"fmt"
	"strconv"
	"strings"
)

// DataError reports extracted data that cannot be interpreted, or a missing
// document the current phase requires
type DataError struct {
	Field   string
	Message string
	Cause   error
}

func (e *DataError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("data error: %s: %v", msg, e.Cause)
	}
	return "data error: " + msg
}

func (e *DataError) Unwrap() error {
	return e.Cause
}

// NormalizeStatement converts the oracle's statement object into an EstadoCuenta
func NormalizeStatement(raw map[string]any) (*EstadoCuenta, error) {
	if raw == nil {
		return nil, &DataError{Message: "statement response is empty"}
	}
	var ec EstadoCuenta
	var err error
	if ec.FechaCausacion, err = stringField(raw, "fecha_causacion"); err != nil {
		return nil, err
	}
	if ec.SaldoCapital, err = numberField(raw, "saldo_capital"); err != nil {
		return nil, err
	}
	if ec.SaldoInteres, err = numberField(raw, "saldo_interes"); err != nil {
		return nil, err
	}
	if ec.SaldoMora, err = numberField(raw, "saldo_mora"); err != nil {
		return nil, err
	}
	if ec.TasaInteresEfectivaAnual, err = numberField(raw, "tasa_interes_efectiva_anual"); err != nil {
		return nil, err
	}
	return &ec, nil
}

// NormalizeAnexos converts the oracle's annex object into an AnexosResult
func NormalizeAnexos(raw map[string]any) (*AnexosResult, error) {
	if raw == nil {
		return nil, &DataError{Message: "annex response is empty"}
	}
	var res AnexosResult
	var err error
	if res.Deudor, err = personaField(raw, "deudor"); err != nil {
		return nil, err
	}
	if res.Codeudor, err = personaField(raw, "codeudor"); err != nil {
		return nil, err
	}
	if res.TasaInteresEfectivaAnual, err = numberField(raw, "tasa_interes_efectiva_anual"); err != nil {
		return nil, err
	}
	return &res, nil
}

var personaKeys = []string{
	"tipo_identificacion",
	"numero_identificacion",
	"nombres",
	"apellidos",
	"fecha_expedicion_cedula",
	"fecha_nacimiento",
	"telefono",
	"direccion",
	"correo",
}

func personaField(raw map[string]any, key string) (*Persona, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}

	// Some responses wrap the person in a single-element list
	if list, isList := v.([]any); isList {
		switch len(list) {
		case 0:
			return nil, nil
		case 1:
			v = list[0]
		default:
			return nil, &DataError{Field: key, Message: fmt.Sprintf("expected one person, got %d", len(list))}
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DataError{Field: key, Message: fmt.Sprintf("expected object, got %T", v)}
	}

	values := make(map[string]*string, len(personaKeys))
	empty := true
	for _, k := range personaKeys {
		s, err := stringField(obj, k)
		if err != nil {
			return nil, &DataError{Field: key + "." + k, Message: "invalid value", Cause: err}
		}
		if s != nil {
			empty = false
		}
		values[k] = s
	}
	if empty {
		return nil, nil
	}

	return &Persona{
		TipoIdentificacion:    values["tipo_identificacion"],
		NumeroIdentificacion:  values["numero_identificacion"],
		Nombres:               values["nombres"],
		Apellidos:             values["apellidos"],
		FechaExpedicionCedula: values["fecha_expedicion_cedula"],
		FechaNacimiento:       values["fecha_nacimiento"],
		Telefono:              values["telefono"],
		Direccion:             values["direccion"],
		Correo:                values["correo"],
	}, nil
}

func stringField(raw map[string]any, key string) (*string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil, &DataError{Field: key, Message: fmt.Sprintf("expected string, got %T", v)}
	}
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	return &s, nil
}

func numberField(raw map[string]any, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case float64:
		return &t, nil
	case int:
		f := float64(t)
		return &f, nil
	case string:
		f, ok, err := ParseAmount(t)
		if err != nil {
			return nil, &DataError{Field: key, Message: "not a number", Cause: err}
		}
		if !ok {
			return nil, nil
		}
		return &f, nil
	default:
		return nil, &DataError{Field: key, Message: fmt.Sprintf("expected number, got %T", v)}
	}
}

// ParseAmount reads amounts written the way statements print them:
// "1.500.000", "$ 1,500,000.00", "24,5%", "24.5". The boolean is false for
// blank input.
func ParseAmount(s string) (float64, bool, error) {
	cleaned := strings.NewReplacer("$", "", "%", "", " ", "", "\u00a0", "", "COP", "", "cop", "").Replace(strings.TrimSpace(s))
	if cleaned == "" || strings.EqualFold(cleaned, "null") {
		return 0, false, nil
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")
	switch {
	case dots > 0 && commas > 0:
		// whichever separator comes last is the decimal one
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case commas > 1:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case commas == 1:
		if len(cleaned)-strings.Index(cleaned, ",")-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case dots > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case dots == 1:
		if len(cleaned)-strings.Index(cleaned, ".")-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return f, true, nil
}
