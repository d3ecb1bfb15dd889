package documents

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/numbering"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockState struct {
	quotations map[uuid.UUID]Quotation
	proposals  map[uuid.UUID]Proposal
	invoices   map[uuid.UUID]Invoice
}

func (s mockState) copy() mockState {
	return mockState{
		quotations: maps.Clone(s.quotations),
		proposals:  maps.Clone(s.proposals),
		invoices:   maps.Clone(s.invoices),
	}
}

type mockStore struct {
	mu    sync.Mutex
	state mockState

	// Error injection
	txError           error
	setQuotationError error
	insertProposalErr error
}

func newMockStore() *mockStore {
	return &mockStore{state: mockState{
		quotations: make(map[uuid.UUID]Quotation),
		proposals:  make(map[uuid.UUID]Proposal),
		invoices:   make(map[uuid.UUID]Invoice),
	}}
}

// WithTx runs fn against a copy of the state and publishes it only on success.
func (m *mockStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &mockTx{mock: m, state: m.state.copy()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *mockStore) GetQuotation(_ context.Context, id uuid.UUID) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getQuotation(m.state, id)
}

func (m *mockStore) GetProposal(_ context.Context, id uuid.UUID) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getProposal(m.state, id)
}

func (m *mockStore) GetInvoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getInvoice(m.state, id)
}

func (m *mockStore) ListQuotations(_ context.Context, status *Status) ([]Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Quotation{}
	for _, q := range m.state.quotations {
		if status == nil || q.Status == *status {
			q.Header = q.Header.clone()
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockStore) ListProposals(_ context.Context, status *Status) ([]Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Proposal{}
	for _, p := range m.state.proposals {
		if status == nil || p.Status == *status {
			p.Header = p.Header.clone()
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) ListInvoices(_ context.Context, filter InvoiceFilter) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Invoice{}
	for _, inv := range m.state.invoices {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, inv.Status) {
			continue
		}
		if filter.IssuedFrom != nil && inv.IssueDate.Before(*filter.IssuedFrom) {
			continue
		}
		if filter.IssuedTo != nil && inv.IssueDate.After(*filter.IssuedTo) {
			continue
		}
		inv.Header = inv.Header.clone()
		out = append(out, inv)
	}
	return out, nil
}

func (m *mockStore) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.state.invoices {
		if inv.Status == StatusSent && inv.DueDate != nil && inv.DueDate.Before(now) {
			inv.Status = StatusOverdue
			m.state.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (m *mockStore) invoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.invoices)
}

func (m *mockStore) proposalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.proposals)
}

type mockTx struct {
	mock  *mockStore
	state mockState
}

func (t *mockTx) GetQuotation(_ context.Context, id uuid.UUID) (*Quotation, error) {
	return getQuotation(t.state, id)
}

func (t *mockTx) GetProposal(_ context.Context, id uuid.UUID) (*Proposal, error) {
	return getProposal(t.state, id)
}

func (t *mockTx) GetInvoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	return getInvoice(t.state, id)
}

func (t *mockTx) InsertQuotation(_ context.Context, q *Quotation) error {
	c := *q
	c.Header = q.Header.clone()
	t.state.quotations[q.ID] = c
	return nil
}

func (t *mockTx) InsertProposal(_ context.Context, p *Proposal) error {
	if t.mock.insertProposalErr != nil {
		return t.mock.insertProposalErr
	}
	c := *p
	c.Header = p.Header.clone()
	t.state.proposals[p.ID] = c
	return nil
}

func (t *mockTx) InsertInvoice(_ context.Context, inv *Invoice) error {
	c := *inv
	c.Header = inv.Header.clone()
	t.state.invoices[inv.ID] = c
	return nil
}

func (t *mockTx) UpdateQuotation(ctx context.Context, q *Quotation) error {
	if _, ok := t.state.quotations[q.ID]; !ok {
		return ErrNotFound
	}
	return t.InsertQuotation(ctx, q)
}

func (t *mockTx) UpdateProposal(ctx context.Context, p *Proposal) error {
	if _, ok := t.state.proposals[p.ID]; !ok {
		return ErrNotFound
	}
	return t.InsertProposal(ctx, p)
}

func (t *mockTx) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if _, ok := t.state.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	return t.InsertInvoice(ctx, inv)
}

func (t *mockTx) SetQuotationStatus(_ context.Context, id uuid.UUID, from []Status, to Status) error {
	if t.mock.setQuotationError != nil {
		return t.mock.setQuotationError
	}
	q, ok := t.state.quotations[id]
	if !ok {
		return ErrNotFound
	}
	if !containsStatus(from, q.Status) {
		return ErrStatusConflict
	}
	q.Status = to
	t.state.quotations[id] = q
	return nil
}

func (t *mockTx) SetProposalStatus(_ context.Context, id uuid.UUID, from []Status, to Status) error {
	p, ok := t.state.proposals[id]
	if !ok {
		return ErrNotFound
	}
	if !containsStatus(from, p.Status) {
		return ErrStatusConflict
	}
	p.Status = to
	t.state.proposals[id] = p
	return nil
}

func (t *mockTx) SetInvoiceStatus(_ context.Context, id uuid.UUID, from []Status, to Status, payment *Payment) error {
	inv, ok := t.state.invoices[id]
	if !ok {
		return ErrNotFound
	}
	if !containsStatus(from, inv.Status) {
		return ErrStatusConflict
	}
	inv.Status = to
	if payment != nil {
		inv.PaidAmount = payment.Amount
		paidAt := payment.PaidAt
		inv.PaidAt = &paidAt
	}
	t.state.invoices[id] = inv
	return nil
}

func getQuotation(s mockState, id uuid.UUID) (*Quotation, error) {
	q, ok := s.quotations[id]
	if !ok {
		return nil, ErrNotFound
	}
	q.Header = q.Header.clone()
	return &q, nil
}

func getProposal(s mockState, id uuid.UUID) (*Proposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Header = p.Header.clone()
	return &p, nil
}

func getInvoice(s mockState, id uuid.UUID) (*Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	inv.Header = inv.Header.clone()
	return &inv, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// FIXTURES
// ============================================================================

type memoryAllocator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (a *memoryAllocator) NextSequence(_ context.Context, name string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seqs == nil {
		a.seqs = make(map[string]int64)
	}
	a.seqs[name]++
	return a.seqs[name], nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestService(store *mockStore) (*Service, *testClock) {
	clock := &testClock{t: fixedNow}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := numbering.NewGenerator(&memoryAllocator{}, logger)
	return NewService(store, gen, logger, WithClock(clock.Now)), clock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
