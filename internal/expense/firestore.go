package expense

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the Firestore collection holding expense documents.
const DefaultCollection = "expenses"

// FirestoreDB implements the DB interface on a Cloud Firestore collection.
// Ownership rules are expected to be enforced by Firestore security rules as
// well; the service checks them again before every write.
type FirestoreDB struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreDB connects to Firestore. When FIRESTORE_EMULATOR_HOST is set
// the client talks to the emulator instead.
func NewFirestoreDB(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*FirestoreDB, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreDB{client: client, collection: collection}, nil
}

func (f *FirestoreDB) docs() *firestore.CollectionRef {
	return f.client.Collection(f.collection)
}

func notFound(id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return err
}

// Create adds a document; Firestore assigns the ID
func (f *FirestoreDB) Create(ctx context.Context, record *Record) (string, error) {
	ref, _, err := f.docs().Add(ctx, record)
	if err != nil {
		return "", fmt.Errorf("adding expense: %w", err)
	}
	record.ID = ref.ID
	return ref.ID, nil
}

// Update merges the editable fields into an existing document. It fails with
// ErrNotFound instead of creating the document.
func (f *FirestoreDB) Update(ctx context.Context, record *Record) error {
	_, err := f.docs().Doc(record.ID).Update(ctx, []firestore.Update{
		{Path: "date", Value: record.Date},
		{Path: "merchant", Value: record.Merchant},
		{Path: "totalAmount", Value: record.TotalAmount},
		{Path: "category", Value: record.Category},
		{Path: "items", Value: record.Items},
		{Path: "updatedAt", Value: record.UpdatedAt},
	})
	if err != nil {
		return notFound(record.ID, err)
	}
	return nil
}

// Get retrieves a document by ID
func (f *FirestoreDB) Get(ctx context.Context, id string) (*Record, error) {
	snap, err := f.docs().Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(id, err)
	}
	var record Record
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decoding expense %s: %w", id, err)
	}
	record.ID = snap.Ref.ID
	return &record, nil
}

// Delete removes a document, failing with ErrNotFound if it does not exist
func (f *FirestoreDB) Delete(ctx context.Context, id string) error {
	if _, err := f.docs().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return notFound(id, err)
	}
	return nil
}

func (f *FirestoreDB) rangeQuery(uid, from, to string) firestore.Query {
	q := f.docs().Where("uid", "==", uid)
	if from != "" {
		q = q.Where("date", ">=", from)
	}
	if to != "" {
		q = q.Where("date", "<=", to)
	}
	return q.OrderBy("date", firestore.Desc)
}

// ListRange runs the owner's date range query, newest first
func (f *FirestoreDB) ListRange(ctx context.Context, uid, from, to string) ([]*Record, error) {
	iter := f.rangeQuery(uid, from, to).Documents(ctx)
	defer iter.Stop()

	records := make([]*Record, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying expenses: %w", err)
		}
		var record Record
		if err := snap.DataTo(&record); err != nil {
			return nil, fmt.Errorf("decoding expense %s: %w", snap.Ref.ID, err)
		}
		record.ID = snap.Ref.ID
		records = append(records, &record)
	}
	return records, nil
}

// DeleteRange deletes every document matching the range query through a
// BulkWriter
func (f *FirestoreDB) DeleteRange(ctx context.Context, uid, from, to string) (int, error) {
	refs, err := f.rangeQuery(uid, from, to).Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("querying expenses: %w", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, snap := range refs {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queueing delete of %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var deleted int
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if len(errs) > 0 {
		return deleted, fmt.Errorf("deleting expenses: %w", errors.Join(errs...))
	}
	return deleted, nil
}

// Close closes the Firestore client
func (f *FirestoreDB) Close() error {
	return f.client.Close()
}
