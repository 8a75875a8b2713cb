// Package overlay writes extracted values onto fixed positions of the
// promissory note PDF.
package overlay

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bybot/pagare-worker/internal/types"
)

// Field names of the built-in promissory note layout
const (
	FieldCapital          = "capital"
	FieldInteresPlazo     = "interes_plazo"
	FieldTasaInteres      = "tasa_interes"
	FieldFechaVencimiento = "fecha_vencimiento"
	FieldDeudorNombre     = "deudor_nombre"
	FieldCodeudorNombre   = "codeudor_nombre"
	FieldDeudorCedula     = "deudor_cedula"
	FieldCodeudorCedula   = "codeudor_cedula"
	FieldEndoso           = "endoso"
)

const (
	fieldFontSize   = 11
	endosoFontSize  = 10
	endosoLineSpace = 12
)

// DefaultEndorsement is the endorsement clause written on every filled note
var DefaultEndorsement = []string{
	"Endoso en procuración a favor de:",
	"Andrés Bello Arias T.P. 378.676",
}

// Dim is the size of a page in points
type Dim struct {
	Width  float64
	Height float64
}

// Position is an insertion point measured from the top-left corner of a page
type Position struct {
	X        float64
	Y        float64
	Page     int // 0-based
	FontSize float64
}

// fraction places a field relative to the page size
type fraction struct {
	x, y float64
}

var fieldFractions = map[string]fraction{
	FieldCapital:          {0.42, 0.18},
	FieldInteresPlazo:     {0.42, 0.21},
	FieldTasaInteres:      {0.42, 0.24},
	FieldFechaVencimiento: {0.42, 0.27},
	FieldDeudorNombre:     {0.30, 0.32},
	FieldCodeudorNombre:   {0.30, 0.36},
	FieldDeudorCedula:     {0.30, 0.40},
	FieldCodeudorCedula:   {0.30, 0.44},
}

var endosoFraction = fraction{0.20, 0.85}

// ComputeFieldPositions scales the layout to the document's pages. Fields go
// on the first page; the endorsement goes on the second page when there is one.
func ComputeFieldPositions(dims []Dim) (map[string]Position, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	first := dims[0]
	out := make(map[string]Position, len(fieldFractions)+1)
	for name, f := range fieldFractions {
		out[name] = Position{X: first.Width * f.x, Y: first.Height * f.y, Page: 0, FontSize: fieldFontSize}
	}

	endosoPage := 0
	if len(dims) > 1 {
		endosoPage = 1
	}
	d := dims[endosoPage]
	out[FieldEndoso] = Position{X: d.Width * endosoFraction.x, Y: d.Height * endosoFraction.y, Page: endosoPage, FontSize: endosoFontSize}
	return out, nil
}

// Placement is one string to write at a position
type Placement struct {
	Field    string
	Page     int // 0-based
	X        float64
	Y        float64 // from the top of the page
	FontSize float64
	Text     string
}

// Plan computes every placement for datos on a document with the given pages.
// It is a pure function of its inputs; the result is sorted by page, y, x and text.
func Plan(dims []Dim, datos types.Datos, endorsement []string) ([]Placement, error) {
	pos, err := ComputeFieldPositions(dims)
	if err != nil {
		return nil, err
	}

	var out []Placement
	put := func(field, text string) {
		if text == "" {
			return
		}
		p := pos[field]
		out = append(out, Placement{Field: field, Page: p.Page, X: p.X, Y: p.Y, FontSize: p.FontSize, Text: text})
	}

	ec := datos.EstadoCuenta
	if v := value(ec.SaldoCapital); math.Round(v) != 0 {
		put(FieldCapital, Currency(v))
	}
	if v := value(ec.SaldoInteres) + value(ec.SaldoMora); math.Round(v) != 0 {
		put(FieldInteresPlazo, Currency(v))
	}
	// rates print with two decimals
	if v := value(ec.TasaInteresEfectivaAnual); math.Round(v*100) != 0 {
		put(FieldTasaInteres, Percent(v))
	}
	if ec.FechaCausacion != nil {
		put(FieldFechaVencimiento, DateShort(*ec.FechaCausacion))
	}

	if datos.Deudor != nil {
		put(FieldDeudorNombre, datos.Deudor.FullName())
		put(FieldDeudorCedula, strValue(datos.Deudor.NumeroIdentificacion))
	}
	if datos.Codeudor.HasIdentification() {
		put(FieldCodeudorNombre, datos.Codeudor.FullName())
		put(FieldCodeudorCedula, strValue(datos.Codeudor.NumeroIdentificacion))
	}

	endoso := pos[FieldEndoso]
	for i, line := range endorsement {
		if line == "" {
			continue
		}
		out = append(out, Placement{
			Field:    FieldEndoso,
			Page:     endoso.Page,
			X:        endoso.X,
			Y:        endoso.Y + float64(i*endosoLineSpace),
			FontSize: endoso.FontSize,
			Text:     line,
		})
	}

	SortPlacements(out)
	return out, nil
}

// SortPlacements orders placements by page, y, x and text
func SortPlacements(ps []Placement) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Text < b.Text
	})
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
