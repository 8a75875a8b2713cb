package overlay

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bybot/pagare-worker/internal/types"
)

// Format is a value-formatting rule
type Format string

const (
	FormatText          Format = "text"
	FormatUppercase     Format = "uppercase"
	FormatCurrency      Format = "currency"
	FormatCurrencyWords Format = "currency_words"
	FormatPercent       Format = "percent"
	FormatDate          Format = "date"
	FormatDateShort     Format = "date_short"
	FormatNumber        Format = "number"
)

var printer = message.NewPrinter(language.Spanish)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02"}

// Currency renders an amount as pesos with thousands separators and no
// decimals. Negative amounts carry the sign before the peso sign: "-$1.500".
func Currency(v float64) string {
	if math.Round(v) < 0 {
		return "-$" + Number(-v)
	}
	return "$" + Number(v)
}

// Number renders an amount rounded to units with thousands separators
func Number(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// Percent renders a rate with two decimals and a trailing %
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// DateShort reformats a date as DD/MM/YYYY, returning the input when it
// cannot be parsed
func DateShort(s string) string {
	t, ok := parseDate(s)
	if !ok {
		return s
	}
	return t.Format("02/01/2006")
}

// DateLong reformats a date as "15 de marzo de 2024", returning the input
// when it cannot be parsed
func DateLong(s string) string {
	t, ok := parseDate(s)
	if !ok {
		return s
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatValue applies format to a value read from extracted data. Numeric
// formats accept numbers or amount strings; an unknown format is an error.
func FormatValue(format Format, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch format {
	case "", FormatText:
		return toString(v), nil
	case FormatUppercase:
		return strings.ToUpper(toString(v)), nil
	case FormatDate:
		return DateLong(toString(v)), nil
	case FormatDateShort:
		return DateShort(toString(v)), nil
	case FormatCurrency, FormatCurrencyWords, FormatPercent, FormatNumber:
		f, ok, err := toFloat(v)
		if err != nil || !ok {
			return "", err
		}
		switch format {
		case FormatCurrency:
			return Currency(f), nil
		case FormatCurrencyWords:
			return CurrencyWords(f), nil
		case FormatPercent:
			return Percent(f), nil
		default:
			return Number(f), nil
		}
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool, error) {
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case string:
		return types.ParseAmount(t)
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", v)
	}
}
