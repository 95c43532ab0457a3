/*
store.go - Persistence interface for documents, records and rates

PURPOSE:
  Defines the interface between the engine's collaborators and the
  database. The engine itself only reads Snapshots; the API writes
  through Store.

APPEND-ONLY CONTRACT:
  - AppendDataset(): atomic write of new documents plus records
  - AppendRecords(): atomic multi-record write, entry fields never change
  - AppendExit():    adds one exit slot to an existing record
  - NO Update() or Delete() of a single record
  - Reset() is the bulk wipe, the only way anything is removed

ATOMIC BATCHES:
  AppendDataset() and AppendRecords() are all-or-nothing. An import of 200
  rows with one duplicate id writes nothing, not even the documents first
  seen in that import.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, also a RateStore
  - store/memory: in-memory for tests and demos

SEE ALSO:
  - types.go: RecordSource, RateProvider
*/
package pallet

import "context"

// Store persists documents and records.
type Store interface {
	RecordSource

	// SaveDocument stores a document; saving an existing id is a no-op.
	SaveDocument(ctx context.Context, doc Document) error
	ListDocuments(ctx context.Context) ([]Document, error)

	// AppendRecords stores a batch atomically. Returns ErrDuplicateRecord
	// if any id exists, ErrDocumentNotFound if a document is unknown.
	AppendRecords(ctx context.Context, records []EntryRecord) error

	// AppendDataset stores documents and records in one atomic write.
	// Documents whose id exists are skipped; records fail as in
	// AppendRecords, and then no document is stored either.
	AppendDataset(ctx context.Context, docs []Document, records []EntryRecord) error

	// AppendExit adds a slot to a record and returns the updated record.
	AppendExit(ctx context.Context, id RecordID, slot ExitSlot) (EntryRecord, error)

	// Reset removes every document and record.
	Reset(ctx context.Context) error
}

// RateStore is a RateProvider whose rates can be replaced.
type RateStore interface {
	RateProvider
	SaveRates(ctx context.Context, rates RateConfig) error
}
