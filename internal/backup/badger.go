package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const recordKeyPrefix = "backup:"

// BadgerCatalog keeps records as JSON values in a BadgerDB keyspace.
type BadgerCatalog struct {
	db *badger.DB
}

var _ Catalog = (*BadgerCatalog)(nil)

// OpenBadger opens (creating if needed) a BadgerDB catalog in dir. An empty
// dir opens an in-memory store.
func OpenBadger(dir string) (*BadgerCatalog, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger catalog %s: %w", dir, err)
	}
	return NewBadgerCatalog(db), nil
}

// NewBadgerCatalog wraps an open BadgerDB.
func NewBadgerCatalog(db *badger.DB) *BadgerCatalog {
	return &BadgerCatalog{db: db}
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

// Create stores record. An existing id is rejected since records are
// never updated in place.
func (c *BadgerCatalog) Create(_ context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal backup record: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		key := recordKey(record.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("create backup record: id %s already exists", record.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create backup record: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("create backup record: %w", err)
		}
		return nil
	})
}

// GetAll returns every record, newest first.
func (c *BadgerCatalog) GetAll(_ context.Context) ([]Record, error) {
	records := make([]Record, 0)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list backup records: %w", err)
	}
	SortNewestFirst(records)
	return records, nil
}

// GetByID returns one record or ErrRecordNotFound.
func (c *BadgerCatalog) GetByID(_ context.Context, id string) (*Record, error) {
	var record Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get backup record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes one record or returns ErrRecordNotFound.
func (c *BadgerCatalog) Delete(_ context.Context, id string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		key := recordKey(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		} else if err != nil {
			return fmt.Errorf("delete backup record: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete backup record: %w", err)
		}
		return nil
	})
}

// Close closes the underlying BadgerDB.
func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}
