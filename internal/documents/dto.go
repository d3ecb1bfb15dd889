package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemInput is a line item as entered on a form.
type LineItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// ClientInput is the party snapshot entered on a form.
type ClientInput struct {
	ID      *uuid.UUID `json:"client_id,omitempty"`
	Name    string     `json:"client_name" validate:"required,max=200"`
	Email   string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string     `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address string     `json:"address,omitempty" validate:"omitempty,max=500"`
	Company string     `json:"company,omitempty" validate:"omitempty,max=200"`
}

// CommercialInput carries the fields every document type shares.
type CommercialInput struct {
	Client         ClientInput     `json:"client"`
	Items          []LineItemInput `json:"items" validate:"dive"`
	TaxRate        decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountAmount decimal.Decimal `json:"discount_amount" validate:"gte=0"`
	IssueDate      *time.Time      `json:"issue_date,omitempty"`
	Notes          string          `json:"notes,omitempty" validate:"max=5000"`
	Terms          string          `json:"terms,omitempty" validate:"max=5000"`
}

// QuotationDraft is the serialisable in-progress quotation form.
type QuotationDraft struct {
	CommercialInput
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// ProposalDraft is the serialisable in-progress proposal form.
type ProposalDraft struct {
	CommercialInput
	Title          string     `json:"title" validate:"required,max=300"`
	ScopeOfWork    string     `json:"scope_of_work,omitempty"`
	Timeline       string     `json:"timeline,omitempty"`
	Deliverables   string     `json:"deliverables,omitempty"`
	PricingSummary string     `json:"pricing_summary,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
}

// InvoiceDraft is the serialisable in-progress invoice form.
type InvoiceDraft struct {
	CommercialInput
	DueDate *time.Time `json:"due_date,omitempty"`
}

// PaymentInput settles an invoice.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt *time.Time      `json:"paid_at,omitempty"`
}

// TransitionInput requests a user status change.
type TransitionInput struct {
	Status string `json:"status" validate:"required"`
}
