/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements pallet.Store and pallet.RateStore using SQLite. The engine
  reads one consistent Snapshot per call; the snapshot is loaded inside a
  single read transaction so an import in flight is never half visible.

INTERFACES IMPLEMENTED:
  pallet.Store:        documents, records, exit slots
  pallet.RecordSource: Snapshot()
  pallet.RateStore:    current tariff, replaceable

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on entry_records
  - exit_events only ever receive INSERTs
  - DELETE only from Reset(), the bulk wipe

KEY TABLES:
  documents:      business documents (number NOT unique)
  entry_records:  one row per ledger line, entry fields immutable
  exit_events:    exit slots of a record, in slot order
  rate_settings:  single-row tariff

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/pallets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := pallet.NewService(store, store, engine)

SEE ALSO:
  - pallet/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_number
		ON documents(number);

	-- Ledger lines (entry fields never updated)
	CREATE TABLE IF NOT EXISTS entry_records (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		entry_date TEXT NOT NULL,
		units INTEGER NOT NULL CHECK (units >= 0),
		geometry TEXT NOT NULL,
		frozen INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entry_records_document
		ON entry_records(document_id);
	CREATE INDEX IF NOT EXISTS idx_entry_records_entry_date
		ON entry_records(entry_date);

	-- Exit slots (append-only)
	CREATE TABLE IF NOT EXISTS exit_events (
		record_id TEXT NOT NULL REFERENCES entry_records(id),
		position INTEGER NOT NULL,
		slot_key TEXT NOT NULL,
		filled INTEGER NOT NULL,
		exit_date TEXT NOT NULL DEFAULT '',
		units INTEGER NOT NULL DEFAULT 0 CHECK (units >= 0),
		elapsed_days INTEGER,
		created_at TEXT NOT NULL,
		PRIMARY KEY (record_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_exit_events_date
		ON exit_events(exit_date);

	-- Tariff (single row)
	CREATE TABLE IF NOT EXISTS rate_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		entry_rate TEXT NOT NULL,
		exit_rate TEXT NOT NULL,
		storage_rate_per_day TEXT NOT NULL,
		frozen_rate TEXT NOT NULL,
		frozen_storage_rate_per_day TEXT,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// SaveDocument stores a document. An existing id is left untouched.
func (s *Store) SaveDocument(ctx context.Context, doc pallet.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertDocument(ctx, s.db, doc)
}

func insertDocument(ctx context.Context, db execer, doc pallet.Document) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO documents (id, number, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		doc.ID, doc.Number, now())
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// ListDocuments returns documents in insertion order.
func (s *Store) ListDocuments(ctx context.Context) ([]pallet.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocuments(ctx, s.db)
}

func queryDocuments(ctx context.Context, q querier) ([]pallet.Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, number FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []pallet.Document
	for rows.Next() {
		var d pallet.Document
		if err := rows.Scan(&d.ID, &d.Number); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// =============================================================================
// RECORDS (pallet.Store interface)
// =============================================================================

// AppendRecords adds multiple records atomically.
func (s *Store) AppendRecords(ctx context.Context, records []pallet.EntryRecord) error {
	return s.AppendDataset(ctx, nil, records)
}

// AppendDataset adds documents and records in a single transaction.
func (s *Store) AppendDataset(ctx context.Context, docs []pallet.Document, records []pallet.EntryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, d := range docs {
		if err := insertDocument(ctx, sqlTx, d); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := insertRecord(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func insertRecord(ctx context.Context, db execer, r pallet.EntryRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO entry_records
		(id, document_id, entry_date, units, geometry, frozen, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DocumentID, r.EntryDate.String(), r.Units, string(r.Geometry), r.Frozen, r.Note, now(),
	)
	if err != nil {
		return translate(err, string(r.ID), string(r.DocumentID))
	}
	for i, slot := range r.Exits {
		if err := insertExit(ctx, db, r.ID, i, slot); err != nil {
			return err
		}
	}
	return nil
}

func insertExit(ctx context.Context, db execer, id pallet.RecordID, position int, slot pallet.ExitSlot) error {
	ev, filled := slot.Event()
	var elapsed sql.NullInt64
	if ev.ElapsedDays != nil {
		elapsed = sql.NullInt64{Int64: int64(*ev.ElapsedDays), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO exit_events
		(record_id, position, slot_key, filled, exit_date, units, elapsed_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, position, slot.Key, filled, ev.Date.String(), ev.Units, elapsed, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append exit: %w", err)
	}
	return nil
}

// AppendExit adds a slot after the record's last one.
func (s *Store) AppendExit(ctx context.Context, id pallet.RecordID, slot pallet.ExitSlot) (pallet.EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev, ok := slot.Event(); ok && ev.Units < 0 {
		return pallet.EntryRecord{}, fmt.Errorf("%w: exit %s has %d units", pallet.ErrNegativeUnits, slot.Key, ev.Units)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pallet.EntryRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	if err := sqlTx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_records WHERE id = ?`, id).Scan(&exists); err != nil {
		return pallet.EntryRecord{}, fmt.Errorf("failed to look up record: %w", err)
	}
	if exists == 0 {
		return pallet.EntryRecord{}, fmt.Errorf("%w: %s", pallet.ErrRecordNotFound, id)
	}

	var next int
	if err := sqlTx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM exit_events WHERE record_id = ?`, id,
	).Scan(&next); err != nil {
		return pallet.EntryRecord{}, fmt.Errorf("failed to read exit position: %w", err)
	}
	if err := insertExit(ctx, sqlTx, id, next, slot); err != nil {
		return pallet.EntryRecord{}, err
	}

	records, err := queryRecords(ctx, sqlTx, `WHERE r.id = ?`, id)
	if err != nil {
		return pallet.EntryRecord{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return pallet.EntryRecord{}, err
	}
	return records[0], nil
}

// Snapshot loads every document and record in one read transaction.
func (s *Store) Snapshot(ctx context.Context) (pallet.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pallet.Snapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	docs, err := queryDocuments(ctx, sqlTx)
	if err != nil {
		return pallet.Snapshot{}, err
	}
	records, err := queryRecords(ctx, sqlTx, "")
	if err != nil {
		return pallet.Snapshot{}, err
	}
	return pallet.Snapshot{Documents: docs, Records: records}, nil
}

// queryRecords loads records (optionally filtered) with their exit slots.
func queryRecords(ctx context.Context, q querier, where string, args ...any) ([]pallet.EntryRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.document_id, r.entry_date, r.units, r.geometry, r.frozen, r.note
		FROM entry_records r `+where+`
		ORDER BY r.rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	var records []pallet.EntryRecord
	index := make(map[pallet.RecordID]int)
	for rows.Next() {
		var (
			r         pallet.EntryRecord
			entryDate string
			geometry  string
		)
		if err := rows.Scan(&r.ID, &r.DocumentID, &entryDate, &r.Units, &geometry, &r.Frozen, &r.Note); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Geometry = pallet.Geometry(geometry)
		// Stored empty when the import could not resolve it.
		r.EntryDate, _ = generic.ParseTimePoint(entryDate)
		index[r.ID] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	exitRows, err := q.QueryContext(ctx, `
		SELECT e.record_id, e.slot_key, e.filled, e.exit_date, e.units, e.elapsed_days
		FROM exit_events e JOIN entry_records r ON r.id = e.record_id `+where+`
		ORDER BY e.record_id, e.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exits: %w", err)
	}
	defer exitRows.Close()

	for exitRows.Next() {
		var (
			id       pallet.RecordID
			key      string
			filled   bool
			exitDate string
			units    int
			elapsed  sql.NullInt64
		)
		if err := exitRows.Scan(&id, &key, &filled, &exitDate, &units, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan exit: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		slot := pallet.EmptySlot(key)
		if filled {
			ev := pallet.ExitEvent{Units: units}
			ev.Date, _ = generic.ParseTimePoint(exitDate)
			if elapsed.Valid {
				d := int(elapsed.Int64)
				ev.ElapsedDays = &d
			}
			slot = pallet.FilledSlot(key, ev)
		}
		records[i].Exits = append(records[i].Exits, slot)
	}
	return records, exitRows.Err()
}

// =============================================================================
// RATES (pallet.RateStore interface)
// =============================================================================

// Rates returns the stored tariff, or the defaults when none was saved.
func (s *Store) Rates(ctx context.Context) (pallet.RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r pallet.RateConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT entry_rate, exit_rate, storage_rate_per_day, frozen_rate, frozen_storage_rate_per_day
		FROM rate_settings WHERE id = 1`,
	).Scan(&r.EntryRate, &r.ExitRate, &r.StorageRatePerDay, &r.FrozenRate, &r.FrozenStorageRatePerDay)
	if errors.Is(err, sql.ErrNoRows) {
		return pallet.DefaultRates(), nil
	}
	if err != nil {
		return pallet.RateConfig{}, fmt.Errorf("failed to load rates: %w", err)
	}
	return r, nil
}

// SaveRates replaces the tariff.
func (s *Store) SaveRates(ctx context.Context, r pallet.RateConfig) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_settings
		(id, entry_rate, exit_rate, storage_rate_per_day, frozen_rate, frozen_storage_rate_per_day, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_rate = excluded.entry_rate,
			exit_rate = excluded.exit_rate,
			storage_rate_per_day = excluded.storage_rate_per_day,
			frozen_rate = excluded.frozen_rate,
			frozen_storage_rate_per_day = excluded.frozen_storage_rate_per_day,
			updated_at = excluded.updated_at`,
		r.EntryRate.String(), r.ExitRate.String(), r.StorageRatePerDay.String(), r.FrozenRate.String(),
		nullDecimal(r.FrozenStorageRatePerDay), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rates: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all documents and records (bulk reset). Rates are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"exit_events", "entry_records", "documents"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the number of documents and records stored.
func (s *Store) Counts(ctx context.Context) (documents, records int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM entry_records)`,
	).Scan(&documents, &records)
	return documents, records, err
}

// Helper functions

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

// translate maps constraint failures to domain errors.
func translate(err error, recordID, documentID string) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %s", pallet.ErrDuplicateRecord, recordID)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", pallet.ErrDocumentNotFound, documentID)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: record %s", pallet.ErrNegativeUnits, recordID)
		}
	}
	return fmt.Errorf("failed to append record: %w", err)
}

var (
	_ pallet.Store     = (*Store)(nil)
	_ pallet.RateStore = (*Store)(nil)
)
