package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Usage reports the tokens consumed by one generation
type Usage struct {
	Prompt     int
	Candidates int
	Total      int
}

// Response is the text returned by a generation together with its usage
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateJSONFromFiles uploads the files and generates JSON content about them
	GenerateJSONFromFiles(ctx context.Context, prompt string, files []string, tier ModelTier) (*Response, error)
	// GetModel returns the provider model name for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// ErrNoAPIKey is returned when the client is created without credentials
var ErrNoAPIKey = errors.New("API key is required")

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return NewGeminiClient(ctx, config, apiKey)
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config

	// how long to wait for uploaded files to become ACTIVE
	fileReadyTimeout time.Duration
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:           client,
		config:           config,
		fileReadyTimeout: 2 * time.Minute,
	}, nil
}

func (c *GeminiClient) model(tier ModelTier) (*genai.GenerativeModel, string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, "", fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	if c.config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.config.MaxOutputTokens)
	}
	model.ResponseMIMEType = "application/json"
	return model, modelName, nil
}

// GenerateJSONFromFiles uploads every file, asks the model about all of them
// in a single request and deletes the uploads afterwards
func (c *GeminiClient) GenerateJSONFromFiles(ctx context.Context, prompt string, files []string, tier ModelTier) (*Response, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to analyze")
	}
	model, name, err := c.model(tier)
	if err != nil {
		return nil, err
	}

	var uploaded []*genai.File
	defer func() {
		// Uploads expire on their own; deletion failures are not fatal
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		for _, f := range uploaded {
			_ = c.client.DeleteFile(cleanupCtx, f.Name)
		}
	}()

	parts := make([]genai.Part, 0, len(files)+1)
	for _, path := range files {
		f, err := c.upload(ctx, path)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, f)
		parts = append(parts, genai.FileData{MIMEType: f.MIMEType, URI: f.URI})
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return buildResponse(resp, name)
}

func (c *GeminiClient) upload(ctx context.Context, path string) (*genai.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	f, err := c.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    MIMETypeFor(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	return c.waitActive(ctx, f)
}

// waitActive polls an uploaded file until the service finishes processing it
func (c *GeminiClient) waitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	deadline := time.Now().Add(c.fileReadyTimeout)
	for f.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s still processing after %s", f.DisplayName, c.fileReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		next, err := c.client.GetFile(ctx, f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get file state: %w", err)
		}
		f = next
	}
	if f.State == genai.FileStateFailed {
		return nil, fmt.Errorf("file %s failed processing", f.DisplayName)
	}
	return f, nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func buildResponse(resp *genai.GenerateContentResponse, model string) (*Response, error) {
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	out := &Response{Text: CleanJSONBlock(text), Model: model}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Candidates: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish reason %v)", candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
