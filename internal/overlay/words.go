package overlay

import "strings"

var (
	unitWords = [...]string{"", "UNO", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE"}
	teenWords = [...]string{"DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE", "DIECISÉIS", "DIECISIETE", "DIECIOCHO", "DIECINUEVE"}
	twentyish = [...]string{"VEINTE", "VEINTIUNO", "VEINTIDÓS", "VEINTITRÉS", "VEINTICUATRO", "VEINTICINCO", "VEINTISÉIS", "VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE"}
	tensWords = [...]string{"", "", "", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA"}
	hundreds  = [...]string{"", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS", "SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS"}
)

// NumberToWords spells n in Spanish, upper case
func NumberToWords(n int64) string {
	if n == 0 {
		return "CERO"
	}
	if n < 0 {
		return "MENOS " + NumberToWords(-n)
	}

	var parts []string
	millions, rest := n/1_000_000, n%1_000_000
	switch {
	case millions == 1:
		parts = append(parts, "UN MILLÓN")
	case millions > 1:
		parts = append(parts, apocope(belowMillion(millions))+" MILLONES")
	}
	if rest > 0 {
		parts = append(parts, belowMillion(rest))
	}
	return strings.Join(parts, " ")
}

// CurrencyWords spells an amount of pesos the way promissory notes print it:
// "UN MILLÓN QUINIENTOS MIL PESOS M/CTE". Cents are dropped.
func CurrencyWords(v float64) string {
	n := int64(v)
	switch {
	case n == 1:
		return "UN PESO M/CTE"
	case n >= 1_000_000 && n%1_000_000 == 0:
		return apocope(NumberToWords(n)) + " DE PESOS M/CTE"
	default:
		return apocope(NumberToWords(n)) + " PESOS M/CTE"
	}
}

func belowMillion(n int64) string {
	var parts []string
	thousands, rest := n/1000, n%1000
	switch {
	case thousands == 1:
		parts = append(parts, "MIL")
	case thousands > 1:
		parts = append(parts, apocope(belowThousand(thousands))+" MIL")
	}
	if rest > 0 {
		parts = append(parts, belowThousand(rest))
	}
	return strings.Join(parts, " ")
}

func belowThousand(n int64) string {
	if n == 100 {
		return "CIEN"
	}
	h, rest := n/100, n%100
	var parts []string
	if h > 0 {
		parts = append(parts, hundreds[h])
	}
	if rest > 0 {
		parts = append(parts, belowHundred(rest))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int64) string {
	switch {
	case n < 10:
		return unitWords[n]
	case n < 20:
		return teenWords[n-10]
	case n < 30:
		return twentyish[n-20]
	case n%10 == 0:
		return tensWords[n/10]
	default:
		return tensWords[n/10] + " Y " + unitWords[n%10]
	}
}

// apocope shortens a trailing UNO before a noun: VEINTIUNO MIL -> VEINTIÚN MIL
func apocope(s string) string {
	switch {
	case strings.HasSuffix(s, "VEINTIUNO"):
		return strings.TrimSuffix(s, "VEINTIUNO") + "VEINTIÚN"
	case s == "UNO" || strings.HasSuffix(s, " UNO"):
		return strings.TrimSuffix(s, "O")
	default:
		return s
	}
}
