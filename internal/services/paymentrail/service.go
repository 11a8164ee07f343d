// Package paymentrail provides the interbank payment rail collaborator.
// The in-memory implementation simulates a NIP-style instant payment switch.
package paymentrail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRailUnavailable is the generic rail-side processing failure.
var ErrRailUnavailable = errors.New("NIP_ERROR_96: System malfunction")

// Request describes a transfer handed to the rail.
type Request struct {
	SenderAccountNumber    string
	SenderBankCode         string
	RecipientAccountNumber string
	RecipientBankCode      string
	Amount                 decimal.Decimal
	Currency               string
	Reference              string
	Narration              string
}

// Result is the rail's response to a processed transfer.
type Result struct {
	Success           bool
	SessionID         string
	ExternalReference string
	ResponseCode      string
	ResponseMessage   string
	ProcessedAt       time.Time
}

// Service is the payment rail contract consumed by the worker.
type Service interface {
	ProcessTransfer(ctx context.Context, req Request) (*Result, error)
}

// InMemoryService simulates the rail. FailFunc, when set, lets tests inject
// deterministic failures per request.
type InMemoryService struct {
	mu       sync.Mutex
	sessions map[string]*Result

	FailFunc func(req Request) error
}

// NewInMemoryService creates a simulated payment rail.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{sessions: make(map[string]*Result)}
}

// ProcessTransfer simulates a rail call, recording a session per transfer.
func (s *InMemoryService) ProcessTransfer(ctx context.Context, req Request) (*Result, error) {
	if s.FailFunc != nil {
		if err := s.FailFunc(req); err != nil {
			return nil, err
		}
	}

	sessionID := strings.ToUpper(fmt.Sprintf("NIP%d%s", time.Now().UnixMilli(), uuid.NewString()[:6]))
	result := &Result{
		Success:           true,
		SessionID:         sessionID,
		ExternalReference: fmt.Sprintf("NIP-%s", uuid.NewString()),
		ResponseCode:      "00",
		ResponseMessage:   "Approved",
		ProcessedAt:       time.Now(),
	}

	s.mu.Lock()
	s.sessions[sessionID] = result
	s.mu.Unlock()

	log.Printf("NIP_TRANSACTION: %s - %s%s - %s", sessionID, req.Amount, req.Currency, req.Reference)
	return result, nil
}

// SessionStatus looks up a recorded rail session.
func (s *InMemoryService) SessionStatus(sessionID string) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	return r, ok
}
