package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock_MarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"tea\": 24.5}\n```",
			expected: `{"tea": 24.5}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"tea\": 24.5}\n```",
			expected: `{"tea": 24.5}`,
		},
		{
			name:     "code block with language",
			input:    "```JSON\n{\"tea\": 24.5}\n```",
			expected: `{"tea": 24.5}`,
		},
		{
			name:     "inline code block",
			input:    "```{\"tea\": 24.5}```",
			expected: `{"tea": 24.5}`,
		},
		{
			name:     "plain JSON",
			input:    `{"tea": 24.5}`,
			expected: `{"tea": 24.5}`,
		},
		{
			name:     "plain array",
			input:    `  [{"nombres": "Ana"}]  `,
			expected: `[{"nombres": "Ana"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestCleanJSONBlock_PreambleText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "preamble before JSON object",
			input:    "Aquí está el JSON solicitado:\n{\"capital\": 1500000}",
			expected: `{"capital": 1500000}`,
		},
		{
			name:     "preamble and trailing note",
			input:    "Resultado:\n{\"deudor\": {\"nombres\": \"Ana\"}}\nEspero que sea útil.",
			expected: `{"deudor": {"nombres": "Ana"}}`,
		},
		{
			name:     "no JSON at all",
			input:    "No pude leer el documento",
			expected: "No pude leer el documento",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestMIMETypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMETypeFor("/tmp/bybot_1_pagare_ab12cd34_pagare.pdf"))
	assert.Equal(t, "application/pdf", MIMETypeFor("/tmp/sin_extension"))
	assert.Equal(t, "image/jpeg", MIMETypeFor("cedula.JPG"))
	assert.Equal(t, "image/png", MIMETypeFor("cedula.png"))
}
