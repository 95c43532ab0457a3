// Package memory provides an in-memory pallet.Store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	documents []pallet.Document
	docIndex  map[pallet.DocumentID]int
	records   []pallet.EntryRecord
	recIndex  map[pallet.RecordID]int
	rates     pallet.RateConfig
}

func NewMemory() *Memory {
	return &Memory{
		docIndex: make(map[pallet.DocumentID]int),
		recIndex: make(map[pallet.RecordID]int),
		rates:    pallet.DefaultRates(),
	}
}

// Snapshot returns deep copies, so callers never observe a later write.
func (m *Memory) Snapshot(_ context.Context) (pallet.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := pallet.Snapshot{
		Documents: append([]pallet.Document(nil), m.documents...),
		Records:   make([]pallet.EntryRecord, len(m.records)),
	}
	for i, r := range m.records {
		snap.Records[i] = r.Clone()
	}
	return snap, nil
}

func (m *Memory) SaveDocument(_ context.Context, doc pallet.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docIndex[doc.ID]; ok {
		return nil
	}
	m.docIndex[doc.ID] = len(m.documents)
	m.documents = append(m.documents, doc)
	return nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]pallet.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pallet.Document(nil), m.documents...), nil
}

// AppendRecords adds multiple records atomically.
func (m *Memory) AppendRecords(ctx context.Context, records []pallet.EntryRecord) error {
	return m.AppendDataset(ctx, nil, records)
}

// AppendDataset adds documents and records atomically.
func (m *Memory) AppendDataset(_ context.Context, docs []pallet.Document, records []pallet.EntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything first (atomic check)
	newDocs := make(map[pallet.DocumentID]bool, len(docs))
	for _, d := range docs {
		if _, ok := m.docIndex[d.ID]; !ok {
			newDocs[d.ID] = true
		}
	}
	seen := make(map[pallet.RecordID]bool, len(records))
	for _, r := range records {
		if _, ok := m.recIndex[r.ID]; ok || seen[r.ID] {
			return fmt.Errorf("%w: %s", pallet.ErrDuplicateRecord, r.ID)
		}
		if _, ok := m.docIndex[r.DocumentID]; !ok && !newDocs[r.DocumentID] {
			return fmt.Errorf("%w: %s", pallet.ErrDocumentNotFound, r.DocumentID)
		}
		seen[r.ID] = true
	}

	// Append all (atomic write)
	for _, d := range docs {
		if _, ok := m.docIndex[d.ID]; ok {
			continue
		}
		m.docIndex[d.ID] = len(m.documents)
		m.documents = append(m.documents, d)
	}
	for _, r := range records {
		m.recIndex[r.ID] = len(m.records)
		m.records = append(m.records, r.Clone())
	}
	return nil
}

func (m *Memory) AppendExit(_ context.Context, id pallet.RecordID, slot pallet.ExitSlot) (pallet.EntryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.recIndex[id]
	if !ok {
		return pallet.EntryRecord{}, fmt.Errorf("%w: %s", pallet.ErrRecordNotFound, id)
	}
	updated, err := m.records[i].WithExit(slot)
	if err != nil {
		return pallet.EntryRecord{}, err
	}
	m.records[i] = updated
	return updated.Clone(), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = nil
	m.records = nil
	m.docIndex = make(map[pallet.DocumentID]int)
	m.recIndex = make(map[pallet.RecordID]int)
	return nil
}

// =============================================================================
// RATES
// =============================================================================

func (m *Memory) Rates(_ context.Context) (pallet.RateConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rates, nil
}

func (m *Memory) SaveRates(_ context.Context, rates pallet.RateConfig) error {
	if err := rates.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = rates
	return nil
}

var (
	_ pallet.Store     = (*Memory)(nil)
	_ pallet.RateStore = (*Memory)(nil)
)
