package scanning

import (
	"fmt"
	"strings"
)

// buildPrompt returns the instruction sent alongside every receipt image.
func buildPrompt(categories []string) string {
	return fmt.Sprintf(`Analyze this receipt image and extract the purchase in JSON format.

Fields:
- date: the date of purchase in YYYY-MM-DD format
- merchant: the name of the store
- totalAmount: the total amount paid, as a number
- category: the best fitting category for the whole receipt, one of: %s
- items: an array of purchased items, each with:
  - name: item name
  - price: item price, as a number
  - category: item category, from the same list

Rules:
- Read every line of the receipt; totals are usually labelled TOTAL, 合計 or Amount Due.
- If a field cannot be found use an empty string, 0 for numbers, or an empty array for items.
- Output ONLY valid JSON, with no text before or after it.

Example:
{"date": "2024-05-03", "merchant": "Lawson", "totalAmount": 648, "category": "Food", "items": [{"name": "Onigiri", "price": 180, "category": "Food"}]}`,
		strings.Join(categories, ", "))
}
