package scanning

import (
	"context"
	"errors"

	"github.com/zombor/kakeibo/internal/money"
)

// ErrAIService marks every failure that originates from the vision model:
// transport errors, empty replies and replies that are not parseable JSON.
var ErrAIService = errors.New("AI service error")

// DefaultCategories is the category list offered to the model and the UI.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Daily",
	"Medical",
	"Utilities",
	"Entertainment",
	"Clothing",
	"Education",
	"Other",
}

// ItemData is one purchased line on a receipt.
type ItemData struct {
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Category string       `json:"category"`
}

// ReceiptData contains extracted information from a receipt
type ReceiptData struct {
	Date        string       `json:"date"` // YYYY-MM-DD
	Merchant    string       `json:"merchant"`
	TotalAmount money.Amount `json:"totalAmount"`
	Category    string       `json:"category"`
	Items       []ItemData   `json:"items"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts purchase data
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}
