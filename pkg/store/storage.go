package store

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrTransactionRO = errors.New("transaction is read-only")
)

// Storage is the interface for the underlying key-value store
type Storage interface {
	// Begin starts a new transaction
	Begin(writable bool) (Transaction, error)

	// Close closes the storage
	Close() error

	// Sync flushes writes to disk
	Sync() error
}

// Transaction represents a database transaction with snapshot isolation
type Transaction interface {
	Get(table Table, key []byte) ([]byte, error)
	Set(table Table, key, value []byte) error
	Delete(table Table, key []byte) error

	// Scan iterates over keys of table starting with prefix. A nil end
	// scans to the end of the prefix range; otherwise keys >= end stop
	// the scan.
	Scan(table Table, prefix, end []byte) (Iterator, error)

	Commit() error
	Rollback() error
}

// Iterator iterates over key-value pairs. Keys are returned without the
// table prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Close() error
}

// Table represents a logical table/column family in the storage
type Table byte

const (
	// Metadata table: hash -> string
	TableID2Str Table = iota

	// Default graph indexes (3 permutations)
	TableSPO
	TablePOS
	TableOSP

	// Quad indexes over every graph, default graph included (6 permutations)
	TableSPOG
	TablePOSG
	TableOSPG
	TableGSPO
	TableGPOS
	TableGOSP

	// Named graphs metadata
	TableGraphs

	// Total number of tables
	TableCount
)

var tableNames = [TableCount]string{
	"id2str", "spo", "pos", "osp",
	"spog", "posg", "ospg", "gspo", "gpos", "gosp",
	"graphs",
}

func (t Table) String() string {
	if t < TableCount {
		return tableNames[t]
	}
	return "unknown"
}

// Quad positions used by index layouts.
const (
	posSubject = iota
	posPredicate
	posObject
	posGraph
)

// indexLayouts maps each index table to the quad position stored at each
// key segment.
var indexLayouts = map[Table][]int{
	TableSPO:  {posSubject, posPredicate, posObject},
	TablePOS:  {posPredicate, posObject, posSubject},
	TableOSP:  {posObject, posSubject, posPredicate},
	TableSPOG: {posSubject, posPredicate, posObject, posGraph},
	TablePOSG: {posPredicate, posObject, posSubject, posGraph},
	TableOSPG: {posObject, posSubject, posPredicate, posGraph},
	TableGSPO: {posGraph, posSubject, posPredicate, posObject},
	TableGPOS: {posGraph, posPredicate, posObject, posSubject},
	TableGOSP: {posGraph, posObject, posSubject, posPredicate},
}

// TablePrefix returns a byte prefix for a table to namespace keys
func TablePrefix(table Table) []byte {
	return []byte{byte(table)}
}

// PrefixKey adds a table prefix to a key
func PrefixKey(table Table, key []byte) []byte {
	result := make([]byte, 1+len(key))
	result[0] = byte(table)
	copy(result[1:], key)
	return result
}
