package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"transferhub/internal/models"
	"transferhub/internal/repositories"
)

// fakeRepo is an in-memory TransferRepository for exercising the
// orchestrator and the state machine without a database.
type fakeRepo struct {
	mu        sync.Mutex
	transfers map[string]*models.Transfer
	bulks     map[string]*models.BulkTransfer
	recurring map[string]*models.RecurringTransfer

	createErr    error
	markDebitErr error
	failCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		transfers: make(map[string]*models.Transfer),
		bulks:     make(map[string]*models.BulkTransfer),
		recurring: make(map[string]*models.RecurringTransfer),
	}
}

func (f *fakeRepo) Transaction(ctx context.Context, fn func(r repositories.TransferRepository) error) error {
	return fn(f)
}

func (f *fakeRepo) CreateTransfer(ctx context.Context, t *models.Transfer) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	cp.CreatedAt = time.Now()
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeRepo) CreateBulkTransfer(ctx context.Context, b *models.BulkTransfer) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	cp.CreatedAt = time.Now()
	f.bulks[b.ID] = &cp
	for i := range b.Transfers {
		child := b.Transfers[i]
		child.CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		f.transfers[child.ID] = &child
	}
	return nil
}

func (f *fakeRepo) CreateRecurringTransfer(ctx context.Context, rt *models.RecurringTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rt
	f.recurring[rt.ID] = &cp
	return nil
}

func (f *fakeRepo) GetTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, repositories.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) GetBulkTransfer(ctx context.Context, id string) (*models.BulkTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bulks[id]
	if !ok {
		return nil, repositories.ErrBulkNotFound
	}
	cp := *b
	cp.Transfers = nil
	for _, t := range f.transfers {
		if t.BulkTransferID != nil && *t.BulkTransferID == id {
			cp.Transfers = append(cp.Transfers, *t)
		}
	}
	sort.Slice(cp.Transfers, func(i, j int) bool {
		if cp.Transfers[i].CreatedAt.Equal(cp.Transfers[j].CreatedAt) {
			return cp.Transfers[i].Reference < cp.Transfers[j].Reference
		}
		return cp.Transfers[i].CreatedAt.Before(cp.Transfers[j].CreatedAt)
	})
	return &cp, nil
}

func (f *fakeRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok || t.Status != models.TransferStatusPending {
		return false, nil
	}
	t.Status = models.TransferStatusProcessing
	t.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeRepo) CancelPending(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok || t.Status != models.TransferStatusPending {
		return false, nil
	}
	t.Status = models.TransferStatusCancelled
	return true, nil
}

func (f *fakeRepo) CompleteTransfer(ctx context.Context, id string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok && t.Status == models.TransferStatusProcessing {
		t.Status = models.TransferStatusCompleted
		t.ProcessedAt = &processedAt
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRepo) FailTransfer(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	if t, ok := f.transfers[id]; ok && t.Status == models.TransferStatusProcessing {
		t.Status = models.TransferStatusFailed
		t.FailureReason = reason
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRepo) SetExternalReference(ctx context.Context, id, externalRef string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok {
		t.ExternalReference = externalRef
		t.ProcessedAt = &processedAt
	}
	return nil
}

func (f *fakeRepo) MarkDebitOutstanding(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markDebitErr != nil {
		return f.markDebitErr
	}
	if t, ok := f.transfers[id]; ok && t.Status == models.TransferStatusProcessing {
		t.DebitOutstanding = true
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRepo) ClearDebitOutstanding(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok {
		t.DebitOutstanding = false
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRepo) MarkSettled(ctx context.Context, id string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok && t.Status == models.TransferStatusProcessing {
		t.DebitOutstanding = false
		t.ProcessedAt = &processedAt
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRepo) ProcessingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transfer
	for _, t := range f.transfers {
		if t.Status == models.TransferStatusProcessing && t.UpdatedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// age backdates a transfer's last write so sweeps treat it as stale.
func (f *fakeRepo) age(id string, by time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok {
		t.UpdatedAt = t.UpdatedAt.Add(-by)
	}
}

func (f *fakeRepo) MarkBulkProcessing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bulks[id]; ok {
		b.Status = models.BulkStatusProcessing
	}
	return nil
}

func (f *fakeRepo) FinalizeBulkTransfer(ctx context.Context, id, status string, successful, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bulks[id]; ok {
		b.Status = status
		b.SuccessfulCount = successful
		b.FailedCount = failed
	}
	return nil
}

func (f *fakeRepo) PendingSinglesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transfer
	for _, t := range f.transfers {
		if t.Status == models.TransferStatusPending && t.BulkTransferID == nil && t.CreatedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) DueRecurringTransfers(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RecurringTransfer
	for _, rt := range f.recurring {
		if rt.Status == models.RecurringStatusActive && !rt.NextExecution.After(now) {
			out = append(out, *rt)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) AdvanceRecurring(ctx context.Context, id string, nextExecution time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.recurring[id]; ok {
		rt.NextExecution = nextExecution
	}
	return nil
}

func (f *fakeRepo) CompleteRecurring(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.recurring[id]; ok && rt.Status == models.RecurringStatusActive {
		rt.Status = models.RecurringStatusCompleted
	}
	return nil
}

// fakeQueue records enqueued work instead of hitting redis.
type fakeQueue struct {
	mu         sync.Mutex
	enqueued   []string
	bulkQueued []string
	delays     map[string]time.Duration
	enqueueErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{delays: make(map[string]time.Duration)}
}

func (q *fakeQueue) EnqueueTransfer(ctx context.Context, transferID string, delay time.Duration) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, transferID)
	q.delays[transferID] = delay
	return nil
}

func (q *fakeQueue) EnqueueBulkTransfer(ctx context.Context, bulkTransferID string) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bulkQueued = append(q.bulkQueued, bulkTransferID)
	return nil
}
