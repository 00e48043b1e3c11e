package storage

import (
	"bytes"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// Options configures a BadgerStorage.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests and the memory backend.
	InMemory bool

	// Logger receives badger's internal logs. Nil silences them.
	Logger *logrus.Entry
}

// BadgerStorage implements store.Storage using BadgerDB
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens an on-disk BadgerDB at path.
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	return Open(Options{Path: path})
}

// NewMemoryStorage opens an in-memory BadgerDB.
func NewMemoryStorage() (*BadgerStorage, error) {
	return Open(Options{InMemory: true})
}

// Open opens a BadgerDB with the given options.
func Open(o Options) (*BadgerStorage, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(o.Path)
	}
	if o.Logger != nil {
		opts.Logger = o.Logger
	} else {
		opts.Logger = nil
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeStoreOpenFailure, "failed to open badger db")
	}
	return &BadgerStorage{db: db}, nil
}

// Begin starts a new transaction
func (s *BadgerStorage) Begin(writable bool) (store.Transaction, error) {
	return &BadgerTransaction{
		txn:      s.db.NewTransaction(writable),
		writable: writable,
	}, nil
}

// Close closes the storage
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// Sync flushes writes to disk
func (s *BadgerStorage) Sync() error {
	return s.db.Sync()
}

// BadgerTransaction implements store.Transaction using BadgerDB
type BadgerTransaction struct {
	txn      *badger.Txn
	writable bool
}

// Get retrieves a copy of the value stored under key.
func (t *BadgerTransaction) Get(table store.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(store.PrefixKey(table, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *BadgerTransaction) Set(table store.Table, key, value []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Set(store.PrefixKey(table, key), value)
}

func (t *BadgerTransaction) Delete(table store.Table, key []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Delete(store.PrefixKey(table, key))
}

// Scan iterates over keys in table that start with prefix, stopping
// before end when end is set.
func (t *BadgerTransaction) Scan(table store.Table, prefix, end []byte) (store.Iterator, error) {
	scanPrefix := store.PrefixKey(table, prefix)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = scanPrefix
	// index entries carry no value
	opts.PrefetchValues = table == store.TableID2Str

	var endKey []byte
	if end != nil {
		endKey = store.PrefixKey(table, end)
	}

	return &BadgerIterator{
		it:     t.txn.NewIterator(opts),
		seek:   scanPrefix,
		endKey: endKey,
	}, nil
}

func (t *BadgerTransaction) Commit() error {
	return t.txn.Commit()
}

func (t *BadgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

// BadgerIterator implements store.Iterator using BadgerDB
type BadgerIterator struct {
	it       *badger.Iterator
	seek     []byte
	endKey   []byte
	started  bool
	hasValue bool
}

// Next advances to the next item
func (i *BadgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.seek)
		i.started = true
	} else {
		i.it.Next()
	}

	i.hasValue = i.it.Valid()
	if i.hasValue && i.endKey != nil && bytes.Compare(i.it.Item().Key(), i.endKey) >= 0 {
		i.hasValue = false
	}
	return i.hasValue
}

// Key returns a copy of the current key without the table prefix.
func (i *BadgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	key := i.it.Item().KeyCopy(nil)
	return key[1:]
}

// Value returns the current value
func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, store.ErrNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	i.it.Close()
	return nil
}
