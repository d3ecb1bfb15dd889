package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings. Empty fields match everything.
type InvoiceFilter struct {
	Statuses   []Status
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// Store exposes read access and transaction scoping for document records.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListQuotations(ctx context.Context, status *Status) ([]Quotation, error)
	ListProposals(ctx context.Context, status *Status) ([]Proposal, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	// MarkOverdue persists sent -> overdue for invoices whose due date is before now.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// TxStore exposes transactional operations. Reads lock the row for the
// remainder of the transaction.
type TxStore interface {
	GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	InsertQuotation(ctx context.Context, q *Quotation) error
	InsertProposal(ctx context.Context, p *Proposal) error
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// Update* replace content fields and the full item list.
	UpdateQuotation(ctx context.Context, q *Quotation) error
	UpdateProposal(ctx context.Context, p *Proposal) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	// Set*Status move a document to status only while its stored status is
	// one of from; otherwise ErrStatusConflict (or ErrNotFound).
	SetQuotationStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) error
	SetProposalStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) error
	SetInvoiceStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, payment *Payment) error
}
