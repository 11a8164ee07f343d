// Package audit records ledger movements for the audit trail.
package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one audit trail entry for a completed ledger movement.
type Record struct {
	ID                 string
	Reference          string
	Type               string
	Amount             decimal.Decimal
	Currency           string
	SenderAccountID    string
	RecipientAccountID string
	Description        string
	Metadata           map[string]interface{}
	CreatedAt          time.Time
}

// Service is the audit trail contract consumed by the worker.
type Service interface {
	RecordTransaction(ctx context.Context, record Record) (*Record, error)
}

// InMemoryService stores audit records in memory.
type InMemoryService struct {
	mu      sync.Mutex
	records map[string]*Record
	seq     int64
}

// NewInMemoryService creates an in-memory audit trail.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{records: make(map[string]*Record)}
}

// RecordTransaction persists an audit record and returns it with its ID.
func (s *InMemoryService) RecordTransaction(ctx context.Context, record Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	record.ID = fmt.Sprintf("txn-%d-%d", time.Now().UnixMilli(), s.seq)
	record.CreatedAt = time.Now()
	s.records[record.ID] = &record

	log.Printf("AUDIT_TRAIL: transaction %s created for transfer %s", record.ID, record.Reference)
	return &record, nil
}

// ByReference returns all records for a transfer reference. Test hook.
func (s *InMemoryService) ByReference(reference string) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Record
	for _, r := range s.records {
		if r.Reference == reference {
			out = append(out, r)
		}
	}
	return out
}
