package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultConfig(), "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewClient(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestBuildResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("```json\n{\"saldo_capital\": "),
				genai.Text("1500000}\n```"),
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     1200,
			CandidatesTokenCount: 80,
			TotalTokenCount:      1280,
		},
	}

	out, err := buildResponse(resp, "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Equal(t, `{"saldo_capital": 1500000}`, out.Text)
	assert.Equal(t, "gemini-1.5-flash", out.Model)
	assert.Equal(t, Usage{Prompt: 1200, Candidates: 80, Total: 1280}, out.Usage)
}

func TestBuildResponse_NoUsage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{}`)}},
		}},
	}

	out, err := buildResponse(resp, "m")
	require.NoError(t, err)
	assert.Equal(t, Usage{}, out.Usage)
}

func TestExtractTextFromResponse_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"no content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		{"no text parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.FileData{URI: "files/x"}}},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractTextFromResponse(tt.resp)
			assert.Error(t, err)
		})
	}
}
