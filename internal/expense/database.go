package expense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	bucketName      = "expenses"
	dateIndexBucket = "expenses_by_date"
)

// DB defines the interface for the expense document store
type DB interface {
	// Create stores a new record and assigns its ID
	Create(ctx context.Context, record *Record) (string, error)

	// Update replaces the editable fields of an existing record. CreatedAt and
	// UID are left as stored.
	Update(ctx context.Context, record *Record) error

	// Get retrieves a record by ID
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) error

	// ListRange returns the owner's records dated within [from, to], newest
	// first. An empty bound is open.
	ListRange(ctx context.Context, uid, from, to string) ([]*Record, error)

	// DeleteRange removes the owner's records dated within [from, to] and
	// reports how many were removed.
	DeleteRange(ctx context.Context, uid, from, to string) (int, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db    *bbolt.DB
	newID func() string
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketName, dateIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db, newID: uuid.NewString}, nil
}

// indexKey orders records by owner, then date, then ID.
func indexKey(uid, date, id string) []byte {
	return []byte(uid + "\x00" + date + "\x00" + id)
}

// indexBounds returns the inclusive cursor range for an owner's date window.
func indexBounds(uid, from, to string) (lo, hi []byte) {
	prefix := uid + "\x00"
	lo = []byte(prefix + from)
	if to == "" {
		hi = []byte(prefix + "\xff")
	} else {
		hi = []byte(prefix + to + "\x00\xff")
	}
	return lo, hi
}

func getRecord(bucket *bbolt.Bucket, id string) (*Record, error) {
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling expense %s: %w", id, err)
	}
	return &record, nil
}

func putRecord(tx *bbolt.Tx, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling expense: %w", err)
	}
	if err := tx.Bucket([]byte(bucketName)).Put([]byte(record.ID), data); err != nil {
		return err
	}
	return tx.Bucket([]byte(dateIndexBucket)).Put(indexKey(record.UID, record.Date, record.ID), []byte(record.ID))
}

// Create saves a new record under a fresh ID
func (b *BoltDB) Create(ctx context.Context, record *Record) (string, error) {
	stored := record.Clone()
	stored.ID = b.newID()

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return putRecord(tx, stored)
	})
	if err != nil {
		return "", err
	}

	record.ID = stored.ID
	return stored.ID, nil
}

// Update merges the editable fields into the stored record
func (b *BoltDB) Update(ctx context.Context, record *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getRecord(tx.Bucket([]byte(bucketName)), record.ID)
		if err != nil {
			return err
		}

		merged := record.Clone()
		merged.UID = existing.UID
		merged.CreatedAt = existing.CreatedAt

		if err := tx.Bucket([]byte(dateIndexBucket)).Delete(indexKey(existing.UID, existing.Date, existing.ID)); err != nil {
			return err
		}
		return putRecord(tx, merged)
	})
}

// Get retrieves a record by ID
func (b *BoltDB) Get(ctx context.Context, id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		record, err = getRecord(tx.Bucket([]byte(bucketName)), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a record and its index entry
func (b *BoltDB) Delete(ctx context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		existing, err := getRecord(bucket, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(dateIndexBucket)).Delete(indexKey(existing.UID, existing.Date, id)); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
}

// rangeIDs walks the date index and returns matching IDs, oldest first.
func rangeIDs(tx *bbolt.Tx, uid, from, to string) [][]byte {
	lo, hi := indexBounds(uid, from, to)
	var ids [][]byte
	c := tx.Bucket([]byte(dateIndexBucket)).Cursor()
	for k, v := c.Seek(lo); k != nil && bytes.Compare(k, hi) <= 0; k, v = c.Next() {
		ids = append(ids, slices.Clone(v))
	}
	return ids
}

// ListRange returns the owner's records within the date window, newest first
func (b *BoltDB) ListRange(ctx context.Context, uid, from, to string) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, id := range rangeIDs(tx, uid, from, to) {
			record, err := getRecord(bucket, string(id))
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

// DeleteRange removes the owner's records within the date window in one
// transaction
func (b *BoltDB) DeleteRange(ctx context.Context, uid, from, to string) (int, error) {
	var deleted int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		index := tx.Bucket([]byte(dateIndexBucket))

		lo, hi := indexBounds(uid, from, to)
		var keys [][]byte
		c := index.Cursor()
		for k, _ := c.Seek(lo); k != nil && bytes.Compare(k, hi) <= 0; k, _ = c.Next() {
			keys = append(keys, slices.Clone(k))
		}

		for _, k := range keys {
			id := index.Get(k)
			if err := bucket.Delete(id); err != nil {
				return err
			}
			if err := index.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
