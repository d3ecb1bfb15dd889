// Package documents implements the quotation, proposal and invoice lifecycle:
// totals, numbering, status transitions, conversion and versioning.
package documents

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/numbering"
)

// Kind identifies a document type.
type Kind string

const (
	KindQuotation Kind = "quotation"
	KindProposal  Kind = "proposal"
	KindInvoice   Kind = "invoice"
)

// Title is the human label used in rendered documents and messages.
func (k Kind) Title() string {
	switch k {
	case KindQuotation:
		return "Quotation"
	case KindProposal:
		return "Proposal"
	case KindInvoice:
		return "Invoice"
	}
	return string(k)
}

func (k Kind) numberingKind() numbering.Kind {
	return numbering.Kind(k)
}

// Status is a lifecycle state. The set of legal values depends on the Kind.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusConverted Status = "converted"

	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRevised  Status = "revised"

	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// LineItem is one billable row. Amount is persisted and authoritative for totals.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// LineAmount returns the stored amount.
func (l LineItem) LineAmount() decimal.Decimal { return l.Amount }

// Client is the party snapshot captured on the document.
type Client struct {
	ID      *uuid.UUID `json:"client_id,omitempty"`
	Name    string     `json:"client_name"`
	Email   string     `json:"email,omitempty"`
	Phone   string     `json:"phone,omitempty"`
	Address string     `json:"address,omitempty"`
	Company string     `json:"company,omitempty"`
}

// Header holds the fields shared by every document type.
type Header struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	Client         Client          `json:"client"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	IssueDate      time.Time       `json:"issue_date"`
	Notes          string          `json:"notes,omitempty"`
	Terms          string          `json:"terms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// clone copies the header with its own item slice.
func (h Header) clone() Header {
	out := h
	out.Items = slices.Clone(h.Items)
	if h.Client.ID != nil {
		id := *h.Client.ID
		out.Client.ID = &id
	}
	return out
}

// Quotation is a priced offer that may be converted into an invoice.
type Quotation struct {
	Header
	Status     Status     `json:"status"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Proposal is a narrative offer tracked as a linear chain of versions.
type Proposal struct {
	Header
	Status            Status     `json:"status"`
	Title             string     `json:"title"`
	ScopeOfWork       string     `json:"scope_of_work,omitempty"`
	Timeline          string     `json:"timeline,omitempty"`
	Deliverables      string     `json:"deliverables,omitempty"`
	PricingSummary    string     `json:"pricing_summary,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	Version           int        `json:"version"`
	PreviousVersionID *uuid.UUID `json:"previous_version_id,omitempty"`
}

// Invoice is a payable document, either entered directly or converted from a quotation.
type Invoice struct {
	Header
	Status      Status          `json:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	QuotationID *uuid.UUID      `json:"quotation_id,omitempty"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

// EffectiveInvoiceStatus resolves the time-based sent -> overdue transition.
// Every read path that displays or filters invoice status goes through it.
func EffectiveInvoiceStatus(status Status, dueDate *time.Time, now time.Time) Status {
	if status == StatusSent && dueDate != nil && now.After(*dueDate) {
		return StatusOverdue
	}
	return status
}

// Effective returns a copy of inv with its status resolved at now.
func (inv Invoice) Effective(now time.Time) Invoice {
	inv.Status = EffectiveInvoiceStatus(inv.Status, inv.DueDate, now)
	return inv
}

// Payment records settlement of an invoice.
type Payment struct {
	Amount decimal.Decimal
	PaidAt time.Time
}
