package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using the Google AI Go SDK
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	now    func() time.Time
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client: client,
		model:  model,
		now:    time.Now,
	}, nil
}

// ScanReceipt analyzes a receipt and extracts purchase data
func (g *Gemini) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	data, mimeType, err := prepareImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData wants the format suffix ("png"), not the MIME type.
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData(strings.TrimPrefix(mimeType, "image/"), data),
		genai.Text(buildPrompt(DefaultCategories)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generating content: %w", ErrAIService, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no response from gemini", ErrAIService)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	receipt, err := parseReceiptJSON(text.String(), g.now())
	if err != nil {
		return nil, fmt.Errorf("%w: parsing receipt data: %w", ErrAIService, err)
	}
	return receipt, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
