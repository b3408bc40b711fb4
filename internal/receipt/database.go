package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Store defines the interface for the purchase ledger. Rows are kept in
// monthly ledgers named by MonthKey.
type Store interface {
	// AddRows appends rows to a monthly ledger
	AddRows(month string, rows []Row) error

	// ListRows returns every row of a monthly ledger in insertion order
	ListRows(month string) ([]Row, error)

	// DeleteRegistration removes every row committed at registeredAt
	DeleteRegistration(month, registeredAt string) error

	// Close closes the store
	Close() error
}

// BoltStore implements Store using BoltDB, with one bucket per month
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates a BoltStore
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// AddRows appends rows to a monthly ledger
func (b *BoltStore) AddRows(month string, rows []Row) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(month))
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", month, err)
		}
		for _, row := range rows {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating row key: %w", err)
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshaling row: %w", err)
			}
			if err := bucket.Put([]byte(fmt.Sprintf("%020d", seq)), data); err != nil {
				return fmt.Errorf("saving row: %w", err)
			}
		}
		return nil
	})
}

// ListRows returns every row of a monthly ledger. A month with no ledger
// has no rows.
func (b *BoltStore) ListRows(month string) ([]Row, error) {
	rows := make([]Row, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(month))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshaling row: %w", err)
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteRegistration removes every row committed at registeredAt
func (b *BoltStore) DeleteRegistration(month, registeredAt string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(month))
		if bucket == nil {
			return fmt.Errorf("%w: ledger %s", ErrNotFound, month)
		}

		var doomed [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshaling row: %w", err)
			}
			if row.RegisteredAt == registeredAt {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(doomed) == 0 {
			return fmt.Errorf("%w: registration %s", ErrNotFound, registeredAt)
		}

		for _, k := range doomed {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("deleting row: %w", err)
			}
		}
		return nil
	})
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
