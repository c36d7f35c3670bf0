package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/kakeibo/internal/dashboard"
	"github.com/zombor/kakeibo/internal/logger"
	"github.com/zombor/kakeibo/internal/metrics"
	"github.com/zombor/kakeibo/internal/scanning"
)

// IDGenerator generates unique IDs for drafts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ProgressFunc is called after each image of a batch has been analyzed.
type ProgressFunc func(done, total int)

// BatchResult is the outcome of analyzing a batch of receipt images.
type BatchResult struct {
	Drafts []*Draft `json:"drafts"`
	Errors []string `json:"errors"`
	Total  int      `json:"total"`
}

// Service ties the scanner, the draft working set and the store together
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	drafts      *Drafts
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with a UUID generator and the system clock
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		drafts:      NewDrafts(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// AnalyzeBatch scans the uploads one after another. Every image that scans
// becomes a draft in the summary state; every failure becomes one message and
// the rest of the batch carries on.
func (s *Service) AnalyzeBatch(ctx context.Context, owner string, uploads []Upload, progress ProgressFunc) *BatchResult {
	result := &BatchResult{
		Drafts: make([]*Draft, 0, len(uploads)),
		Errors: make([]string, 0),
		Total:  len(uploads),
	}

	for i, upload := range uploads {
		draft, err := s.analyze(ctx, owner, upload)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", upload.displayName(), describeScanError(err)))
		} else {
			result.Drafts = append(result.Drafts, draft)
		}

		if progress != nil {
			progress(i+1, len(uploads))
		}
	}

	logger.Log.Info().
		Int("total", result.Total).
		Int("drafts", len(result.Drafts)).
		Int("failed", len(result.Errors)).
		Msg("Analyzed receipt batch")
	return result
}

func describeScanError(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, scanning.ErrAIService):
		return "could not analyze the receipt (AI service error)"
	default:
		return "could not analyze the receipt: " + err.Error()
	}
}

func (s *Service) analyze(ctx context.Context, owner string, upload Upload) (*Draft, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()

	imagePath, err := s.storage.Save(id+"_"+sanitizeFilename(upload.Filename), upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	data, err := s.scanner.ScanReceipt(ctx, upload.Data, upload.ContentType)
	if err != nil {
		s.removeImage(imagePath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	record := recordFromScan(data)
	draft := &Draft{
		ID:          id,
		Owner:       owner,
		State:       StateSummary,
		Source:      SourceScan,
		Record:      record,
		Original:    record.Clone(),
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		HasImage:    true,
		CreatedAt:   s.timeSource.Now(),
		imagePath:   imagePath,
	}
	s.drafts.Put(draft)
	return draft.clone(), nil
}

func recordFromScan(data *scanning.ReceiptData) *Record {
	record := &Record{
		Date:        data.Date,
		Merchant:    data.Merchant,
		TotalAmount: data.TotalAmount.Float64(),
		Category:    data.Category,
		Items:       make([]Item, 0, len(data.Items)),
	}
	for _, it := range data.Items {
		record.Items = append(record.Items, Item{
			Name:     it.Name,
			Price:    it.Price.Float64(),
			Category: it.Category,
		})
	}
	return record
}

func (s *Service) removeImage(path string) {
	if path == "" {
		return
	}
	if err := s.storage.Delete(path); err != nil {
		logger.Log.Warn().Err(err).Str("path", path).Msg("Failed to delete draft image")
	}
}

// NewManualDraft opens the edit form on a blank record, or on seed if given.
// Manual drafts have no snapshot, so cancelling discards them.
func (s *Service) NewManualDraft(owner string, seed *Record) *Draft {
	record := seed.Clone()
	if record == nil {
		record = &Record{}
	}
	record.ID = ""
	record.UID = ""
	record.CreatedAt = time.Time{}
	record.UpdatedAt = time.Time{}
	record.normalize()
	if record.Date == "" {
		record.Date = s.timeSource.Now().Format(dateLayout)
	}

	draft := &Draft{
		ID:        s.idGenerator.Generate(),
		Owner:     owner,
		State:     StateEditing,
		Source:    SourceManual,
		Record:    record,
		CreatedAt: s.timeSource.Now(),
	}
	s.drafts.Put(draft)
	return draft.clone()
}

// EditStored opens the edit form on a persisted record.
func (s *Service) EditStored(ctx context.Context, owner, id string) (*Draft, error) {
	record, err := s.GetRecord(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		ID:        s.idGenerator.Generate(),
		Owner:     owner,
		State:     StateEditing,
		Source:    SourceStored,
		Record:    record,
		Original:  record.Clone(),
		CreatedAt: s.timeSource.Now(),
	}
	s.drafts.Put(draft)
	return draft.clone(), nil
}

// GetDraft returns one of the owner's drafts
func (s *Service) GetDraft(owner, id string) (*Draft, error) {
	return s.drafts.Get(owner, id)
}

// ListDrafts returns the owner's working set
func (s *Service) ListDrafts(owner string) []*Draft {
	return s.drafts.List(owner)
}

// DraftImage returns the uploaded image of a scanned draft
func (s *Service) DraftImage(owner, id string) ([]byte, string, error) {
	d, err := s.drafts.Get(owner, id)
	if err != nil {
		return nil, "", err
	}
	if d.imagePath == "" {
		return nil, "", fmt.Errorf("image of draft %s: %w", id, ErrNotFound)
	}
	data, err := s.storage.Get(d.imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting draft image: %w", err)
	}
	return data, d.ContentType, nil
}

// BeginEdit moves a scanned draft into the edit form
func (s *Service) BeginEdit(owner, id string) (*Draft, error) {
	return s.drafts.Modify(owner, id, (*Draft).BeginEdit)
}

// UpdateDraft merges form changes into a draft
func (s *Service) UpdateDraft(owner, id string, patch DraftPatch) (*Draft, error) {
	return s.drafts.Modify(owner, id, func(d *Draft) error {
		return d.Apply(patch)
	})
}

// AddItem appends an item to a draft
func (s *Service) AddItem(owner, id string, in ItemInput) (*Draft, error) {
	return s.drafts.Modify(owner, id, func(d *Draft) error {
		return d.AddItem(in)
	})
}

// UpdateItem changes one item of a draft
func (s *Service) UpdateItem(owner, id string, index int, patch ItemPatch) (*Draft, error) {
	return s.drafts.Modify(owner, id, func(d *Draft) error {
		return d.UpdateItem(index, patch)
	})
}

// RemoveItem deletes one item of a draft
func (s *Service) RemoveItem(owner, id string, index int) (*Draft, error) {
	return s.drafts.Modify(owner, id, func(d *Draft) error {
		return d.RemoveItem(index)
	})
}

// CancelDraft leaves the edit form. The returned draft is nil when the draft
// left the working set.
func (s *Service) CancelDraft(owner, id string) (*Draft, error) {
	var discard bool
	d, err := s.drafts.Modify(owner, id, func(d *Draft) error {
		var err error
		discard, err = d.Cancel()
		return err
	})
	if err != nil {
		return nil, err
	}
	if discard {
		return nil, s.DiscardDraft(owner, id)
	}
	return d, nil
}

// DiscardDraft drops a draft and its image
func (s *Service) DiscardDraft(owner, id string) error {
	d, err := s.drafts.Remove(owner, id)
	if err != nil {
		return err
	}
	s.removeImage(d.imagePath)
	return nil
}

// SaveDraft persists a draft: new records are created, drafts of stored
// records update them. The draft is taken out of the working set while it is
// saved so a concurrent save finds nothing; on failure it is put back as it
// was.
func (s *Service) SaveDraft(ctx context.Context, owner, id string) (*Record, error) {
	d, err := s.drafts.Remove(owner, id)
	if err != nil {
		return nil, err
	}

	record := d.Record.Clone()
	if record.ID == "" {
		err = s.createRecord(ctx, owner, record)
	} else {
		err = s.updateRecord(ctx, owner, record)
	}
	if err != nil {
		s.drafts.Put(d)
		return nil, err
	}

	s.removeImage(d.imagePath)
	return record, nil
}

func (s *Service) createRecord(ctx context.Context, owner string, record *Record) error {
	record.normalize()
	if err := record.Validate(); err != nil {
		return err
	}
	now := s.timeSource.Now()
	record.UID = owner
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := s.db.Create(ctx, record)
	metrics.ObserveStore("create", err)
	if err != nil {
		return fmt.Errorf("saving expense: %w", err)
	}
	return nil
}

func (s *Service) updateRecord(ctx context.Context, owner string, record *Record) error {
	record.normalize()
	if err := record.Validate(); err != nil {
		return err
	}
	existing, err := s.GetRecord(ctx, owner, record.ID)
	if err != nil {
		return err
	}
	record.UID = existing.UID
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.timeSource.Now()

	err = s.db.Update(ctx, record)
	metrics.ObserveStore("update", err)
	if err != nil {
		return fmt.Errorf("updating expense: %w", err)
	}
	return nil
}

// GetRecord retrieves one of the owner's records
func (s *Service) GetRecord(ctx context.Context, owner, id string) (*Record, error) {
	record, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	if record.UID != owner {
		return nil, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return record, nil
}

// ListRange returns the owner's records dated within [from, to], newest first
func (s *Service) ListRange(ctx context.Context, owner, from, to string) ([]*Record, error) {
	records, err := s.db.ListRange(ctx, owner, from, to)
	metrics.ObserveStore("list", err)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return records, nil
}

// DeleteRecord removes one of the owner's records. The caller must have
// confirmed the deletion.
func (s *Service) DeleteRecord(ctx context.Context, owner, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if _, err := s.GetRecord(ctx, owner, id); err != nil {
		return err
	}
	err := s.db.Delete(ctx, id)
	metrics.ObserveStore("delete", err)
	if err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	return nil
}

// DeleteRange removes every record of the owner dated within [from, to]. The
// caller must have confirmed the deletion.
func (s *Service) DeleteRange(ctx context.Context, owner, from, to string, confirmed bool) (int, error) {
	if !confirmed {
		return 0, ErrConfirmationRequired
	}
	n, err := s.db.DeleteRange(ctx, owner, from, to)
	metrics.ObserveStore("delete_range", err)
	if err != nil {
		return n, fmt.Errorf("deleting expenses: %w", err)
	}
	logger.Log.Info().Str("from", from).Str("to", to).Int("deleted", n).Msg("Bulk deleted expenses")
	return n, nil
}

// Now is the service clock, used to resolve the current dashboard period.
func (s *Service) Now() time.Time {
	return s.timeSource.Now()
}

// Overview is the dashboard of one range together with the records in it.
type Overview struct {
	Summary dashboard.Summary `json:"summary"`
	Prev    string            `json:"prev"`
	Next    string            `json:"next"`
	Recent  []*Record         `json:"recent"`
}

const recentLimit = 10

// Dashboard queries the owner's records in r and aggregates them.
func (s *Service) Dashboard(ctx context.Context, owner string, r dashboard.Range) (*Overview, error) {
	from, to := r.Bounds()
	records, err := s.ListRange(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}

	entries := make([]dashboard.Entry, len(records))
	for i, rec := range records {
		entries[i] = dashboard.Entry{Date: rec.Date, Category: rec.Category, Amount: rec.TotalAmount}
	}

	recent := records
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	return &Overview{
		Summary: dashboard.Summarize(r, entries),
		Prev:    r.Shift(-1).Period(),
		Next:    r.Shift(1).Period(),
		Recent:  recent,
	}, nil
}
