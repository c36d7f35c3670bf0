package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ContentGenerator is the slice of the genai client the scanner needs.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GenAIConfig selects the backend for the unified Google Gen AI SDK.
type GenAIConfig struct {
	APIKey   string
	Model    string
	Vertex   bool
	Project  string
	Location string
}

// GenAI implements the Scanner interface using google.golang.org/genai,
// against either the Gemini API or Vertex AI.
type GenAI struct {
	generator ContentGenerator
	model     string
	timeout   time.Duration
	now       func() time.Time
}

// NewGenAI creates a scanner backed by the unified Gen AI SDK.
func NewGenAI(ctx context.Context, cfg GenAIConfig) (*GenAI, error) {
	clientCfg := &genai.ClientConfig{}
	if cfg.Vertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("vertex backend requires project and location")
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini api key is required")
		}
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return NewGenAIWithGenerator(client.Models, cfg.Model), nil
}

// NewGenAIWithGenerator creates a GenAI scanner over any ContentGenerator.
func NewGenAIWithGenerator(generator ContentGenerator, model string) *GenAI {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GenAI{
		generator: generator,
		model:     model,
		timeout:   30 * time.Second,
		now:       time.Now,
	}
}

// ScanReceipt analyzes a receipt and extracts purchase data
func (g *GenAI) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image data is required")
	}

	data, mimeType, err := prepareImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.generator.GenerateContent(ctx, g.model, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
				{Text: buildPrompt(DefaultCategories)},
			},
		},
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out", ErrAIService)
		}
		return nil, fmt.Errorf("%w: generating content: %w", ErrAIService, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no response from model", ErrAIService)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response from model", ErrAIService)
	}

	receipt, err := parseReceiptJSON(text.String(), g.now())
	if err != nil {
		return nil, fmt.Errorf("%w: parsing receipt data: %w", ErrAIService, err)
	}
	return receipt, nil
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (g *GenAI) Close() error {
	return nil
}
