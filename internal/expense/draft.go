package expense

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zombor/kakeibo/internal/money"
)

// DraftState is where a draft sits in the review flow.
type DraftState string

const (
	// StateSummary is the read-only view of what the model extracted.
	StateSummary DraftState = "summary"
	// StateEditing is the mutable form.
	StateEditing DraftState = "editing"
)

// DraftSource records how a draft entered the working set.
type DraftSource string

const (
	SourceScan   DraftSource = "scan"
	SourceManual DraftSource = "manual"
	SourceStored DraftSource = "stored"
)

// Draft is an in-memory record under review. Original is the snapshot that
// Cancel reverts to; manual drafts have none.
type Draft struct {
	ID          string      `json:"id"`
	Owner       string      `json:"owner"`
	State       DraftState  `json:"state"`
	Source      DraftSource `json:"source"`
	Record      *Record     `json:"record"`
	Original    *Record     `json:"original,omitempty"`
	Filename    string      `json:"filename,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	HasImage    bool        `json:"hasImage"`
	CreatedAt   time.Time   `json:"createdAt"`

	imagePath string
}

func (d *Draft) clone() *Draft {
	c := *d
	c.Record = d.Record.Clone()
	c.Original = d.Original.Clone()
	return &c
}

func (d *Draft) requireEditing() error {
	if d.State != StateEditing {
		return fmt.Errorf("%w: draft %s is %s, not %s", ErrInvalidState, d.ID, d.State, StateEditing)
	}
	return nil
}

// ItemInput is an item as submitted by the edit form. Prices may arrive as
// strings and are coerced to numbers.
type ItemInput struct {
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Category string       `json:"category"`
}

func (in ItemInput) item() Item {
	return Item{
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price.Float64(),
		Category: strings.TrimSpace(in.Category),
	}
}

// ItemPatch changes some fields of one item. Nil fields are left alone.
type ItemPatch struct {
	Name     *string       `json:"name"`
	Price    *money.Amount `json:"price"`
	Category *string       `json:"category"`
}

// DraftPatch changes some fields of a draft record. Nil fields are left
// alone; a non-nil Items replaces the whole list.
type DraftPatch struct {
	Date        *string       `json:"date"`
	Merchant    *string       `json:"merchant"`
	TotalAmount *money.Amount `json:"totalAmount"`
	Category    *string       `json:"category"`
	Items       []ItemInput   `json:"items"`
}

// BeginEdit moves a scanned draft from the summary to the edit form.
func (d *Draft) BeginEdit() error {
	if d.State != StateSummary {
		return fmt.Errorf("%w: draft %s is already %s", ErrInvalidState, d.ID, d.State)
	}
	d.State = StateEditing
	return nil
}

// Apply merges a patch into the draft record.
func (d *Draft) Apply(p DraftPatch) error {
	if err := d.requireEditing(); err != nil {
		return err
	}
	r := d.Record
	if p.Date != nil {
		r.Date = strings.TrimSpace(*p.Date)
	}
	if p.Merchant != nil {
		r.Merchant = strings.TrimSpace(*p.Merchant)
	}
	if p.TotalAmount != nil {
		r.TotalAmount = p.TotalAmount.Float64()
	}
	if p.Category != nil {
		r.Category = strings.TrimSpace(*p.Category)
	}
	if p.Items != nil {
		items := make([]Item, len(p.Items))
		for i, in := range p.Items {
			items[i] = in.item()
		}
		r.Items = items
	}
	return nil
}

func (d *Draft) itemIndex(index int) error {
	if index < 0 || index >= len(d.Record.Items) {
		return fmt.Errorf("%w: item %d of draft %s", ErrNotFound, index, d.ID)
	}
	return nil
}

// UpdateItem changes the addressed item only.
func (d *Draft) UpdateItem(index int, p ItemPatch) error {
	if err := d.requireEditing(); err != nil {
		return err
	}
	if err := d.itemIndex(index); err != nil {
		return err
	}
	item := &d.Record.Items[index]
	if p.Name != nil {
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		item.Price = p.Price.Float64()
	}
	if p.Category != nil {
		item.Category = strings.TrimSpace(*p.Category)
	}
	return nil
}

// AddItem appends an item.
func (d *Draft) AddItem(in ItemInput) error {
	if err := d.requireEditing(); err != nil {
		return err
	}
	d.Record.Items = append(d.Record.Items, in.item())
	return nil
}

// RemoveItem deletes the addressed item, keeping the order of the rest.
func (d *Draft) RemoveItem(index int) error {
	if err := d.requireEditing(); err != nil {
		return err
	}
	if err := d.itemIndex(index); err != nil {
		return err
	}
	d.Record.Items = slices.Delete(d.Record.Items, index, index+1)
	return nil
}

// Cancel leaves the edit form. It reports whether the draft should leave the
// working set: manual drafts are discarded, drafts of stored records are
// reverted and closed, scanned drafts are reverted back to the summary.
func (d *Draft) Cancel() (discard bool, err error) {
	if err := d.requireEditing(); err != nil {
		return false, err
	}
	if d.Original == nil {
		return true, nil
	}
	d.Record = d.Original.Clone()
	if d.Source == SourceStored {
		return true, nil
	}
	d.State = StateSummary
	return false, nil
}

// Drafts is the per-owner working set of drafts.
type Drafts struct {
	mu     sync.Mutex
	drafts map[string]*Draft
}

// NewDrafts creates an empty working set.
func NewDrafts() *Drafts {
	return &Drafts{drafts: make(map[string]*Draft)}
}

func (ds *Drafts) lookup(owner, id string) (*Draft, error) {
	d, ok := ds.drafts[id]
	if !ok || d.Owner != owner {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// Put adds a draft.
func (ds *Drafts) Put(d *Draft) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.drafts[d.ID] = d.clone()
}

// Get returns a copy of the owner's draft.
func (ds *Drafts) Get(owner, id string) (*Draft, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, err := ds.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	return d.clone(), nil
}

// List returns copies of the owner's drafts, oldest first.
func (ds *Drafts) List(owner string) []*Draft {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	out := make([]*Draft, 0)
	for _, d := range ds.drafts {
		if d.Owner == owner {
			out = append(out, d.clone())
		}
	}
	slices.SortFunc(out, func(a, b *Draft) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Modify runs fn on the stored draft. Changes are kept only when fn succeeds.
func (ds *Drafts) Modify(owner, id string, fn func(*Draft) error) (*Draft, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, err := ds.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	working := d.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	ds.drafts[id] = working
	return working.clone(), nil
}

// Remove takes the owner's draft out of the working set.
func (ds *Drafts) Remove(owner, id string) (*Draft, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, err := ds.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	delete(ds.drafts, id)
	return d, nil
}
