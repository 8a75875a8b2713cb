package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ExtractionPrompts(t *testing.T) {
	ClearCache()

	for _, key := range []string{"response-frame", "estado-cuenta-description", "anexos-description"} {
		prompt, err := Get(Extraction, key)
		require.NoError(t, err, key)
		assert.NotEmpty(t, prompt)
	}
}

func TestGet_Errors(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")

	_, err = Get(Extraction, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestMustLines(t *testing.T) {
	lines := MustLines(Extraction, "tea-instructions")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "TEA: "), line)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{
			name:     "fills placeholders",
			template: "Analiza {{.Documento}} del proceso {{.Codigo}}",
			data:     map[string]string{"Documento": "el estado de cuenta", "Codigo": "PRC-7"},
			want:     "Analiza el estado de cuenta del proceso PRC-7",
		},
		{
			name:     "unknown placeholder stays",
			template: "Hola {{.Nombre}}",
			data:     map[string]string{},
			want:     "Hola {{.Nombre}}",
		},
		{
			name:     "values are not expanded again",
			template: "{{.A}}",
			data:     map[string]string{"A": "{{.B}}", "B": "x"},
			want:     "{{.B}}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(Extraction)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"anexos-description",
		"anexos-instructions",
		"estado-cuenta-description",
		"estado-cuenta-instructions",
		"response-frame",
		"tea-instructions",
	}, keys)
}

func TestCaching(t *testing.T) {
	ClearCache()

	first, err := Get(Extraction, "response-frame")
	require.NoError(t, err)
	second, err := Get(Extraction, "response-frame")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
