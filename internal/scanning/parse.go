package scanning

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts tried, in order, when the model ignores the requested date format.
var dateLayouts = []string{
	dateLayout,
	"2006/01/02",
	"2006.01.02",
	"2006/1/2",
	"2006年1月2日",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// stripFences removes markdown code fences wrapped around a reply.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseReceiptJSON extracts the single JSON object from a model reply and
// normalizes it. today is used when the receipt date is missing or unreadable.
func parseReceiptJSON(text string, today time.Time) (*ReceiptData, error) {
	text = stripFences(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var data ReceiptData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date, today)

	data.Merchant = strings.TrimSpace(data.Merchant)
	if data.Merchant == "" {
		data.Merchant = "Unknown Merchant"
	}

	data.Category = normalizeCategory(data.Category)

	if data.Items == nil {
		data.Items = []ItemData{}
	}
	for i := range data.Items {
		data.Items[i].Name = strings.TrimSpace(data.Items[i].Name)
		data.Items[i].Category = normalizeCategory(data.Items[i].Category)
	}

	return &data, nil
}

func normalizeDate(raw string, today time.Time) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format(dateLayout)
		}
	}
	return today.Format(dateLayout)
}

// normalizeCategory maps the model's category onto DefaultCategories when it
// only differs by case, and falls back to "Other" when it is missing.
func normalizeCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Other"
	}
	idx := slices.IndexFunc(DefaultCategories, func(c string) bool {
		return strings.EqualFold(c, raw)
	})
	if idx >= 0 {
		return DefaultCategories[idx]
	}
	return raw
}
