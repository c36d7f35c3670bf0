// Package expense holds the expense ledger: records, the review/edit working
// set of drafts, persistence and the HTTP API over them.
package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	// ErrNotFound is returned for missing records and drafts, and for ones
	// owned by someone else.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a draft operation is not allowed in the
	// draft's current state.
	ErrInvalidState = errors.New("invalid draft state")

	// ErrConfirmationRequired is returned by deletes that were not confirmed.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrValidation is returned for records or input that cannot be saved.
	ErrValidation = errors.New("validation failed")
)

// Item is one purchased line of a receipt.
type Item struct {
	Name     string  `json:"name" firestore:"name"`
	Price    float64 `json:"price" firestore:"price"`
	Category string  `json:"category" firestore:"category"`
}

// Record is a persisted (or about to be persisted) expense.
type Record struct {
	ID          string    `json:"id,omitempty" firestore:"-"`
	Date        string    `json:"date" firestore:"date"` // YYYY-MM-DD
	Merchant    string    `json:"merchant" firestore:"merchant"`
	TotalAmount float64   `json:"totalAmount" firestore:"totalAmount"`
	Category    string    `json:"category" firestore:"category"`
	Items       []Item    `json:"items" firestore:"items"`
	UID         string    `json:"uid,omitempty" firestore:"uid"`
	CreatedAt   time.Time `json:"createdAt,omitzero" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero" firestore:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = make([]Item, len(r.Items))
	copy(c.Items, r.Items)
	return &c
}

// Validate checks the fields a record needs before it can be stored.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Date) == "" {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := time.Parse(dateLayout, r.Date); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, r.Date)
	}
	return nil
}

// normalize trims free-text fields and replaces a nil item list.
func (r *Record) normalize() {
	r.Date = strings.TrimSpace(r.Date)
	r.Merchant = strings.TrimSpace(r.Merchant)
	r.Category = strings.TrimSpace(r.Category)
	if r.Items == nil {
		r.Items = []Item{}
	}
	for i := range r.Items {
		r.Items[i].Name = strings.TrimSpace(r.Items[i].Name)
		r.Items[i].Category = strings.TrimSpace(r.Items[i].Category)
	}
}
