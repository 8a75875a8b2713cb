package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "$1"},
		{150000, "$150.000"},
		{1500000, "$1.500.000"},
		{2000000.49, "$2.000.000"},
		{99999.5, "$100.000"},
		{0.4, "$0"},
		{-1500, "-$1.500"},
		{-0.4, "$0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Currency(tt.in))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "24.50%", Percent(24.5))
	assert.Equal(t, "18.00%", Percent(18))
	assert.Equal(t, "26.83%", Percent(26.8349))
}

func TestFormatDates(t *testing.T) {
	tests := []struct {
		in        string
		wantShort string
		wantLong  string
	}{
		{"2024-03-15", "15/03/2024", "15 de marzo de 2024"},
		{"15/03/2024", "15/03/2024", "15 de marzo de 2024"},
		{"01-12-2025", "01/12/2025", "1 de diciembre de 2025"},
		{"2025/01/09", "09/01/2025", "9 de enero de 2025"},
		{"marzo 2024", "marzo 2024", "marzo 2024"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.wantShort, DateShort(tt.in))
			assert.Equal(t, tt.wantLong, DateLong(tt.in))
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		value  any
		want   string
	}{
		{"text string", FormatText, " Ana ", "Ana"},
		{"text number", FormatText, 52123456.0, "52123456"},
		{"default is text", "", "x", "x"},
		{"uppercase", FormatUppercase, "Ana Gómez", "ANA GÓMEZ"},
		{"currency", FormatCurrency, 150000.0, "$150.000"},
		{"currency from string", FormatCurrency, "1.500.000", "$1.500.000"},
		{"currency words", FormatCurrencyWords, 1500000.0, "UN MILLÓN QUINIENTOS MIL PESOS M/CTE"},
		{"percent", FormatPercent, 24.5, "24.50%"},
		{"date", FormatDate, "2024-03-15", "15 de marzo de 2024"},
		{"date short", FormatDateShort, "2024-03-15", "15/03/2024"},
		{"number", FormatNumber, 1500000.0, "1.500.000"},
		{"nil", FormatCurrency, nil, ""},
		{"blank amount", FormatCurrency, "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatValue(tt.format, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue_Errors(t *testing.T) {
	_, err := FormatValue("roman", "x")
	assert.Error(t, err)

	_, err = FormatValue(FormatCurrency, "mucho dinero")
	assert.Error(t, err)

	_, err = FormatValue(FormatNumber, true)
	assert.Error(t, err)
}
