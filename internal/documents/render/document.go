// Package render lays out quotations, proposals and invoices as paginated PDF files.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/documents"
)

// ErrRender is returned for payloads that cannot be laid out. No bytes are
// produced when it is returned.
var ErrRender = errors.New("render: invalid document")

// Party is the Bill To block. Empty fields are not printed.
type Party struct {
	Name    string
	Company string
	Email   string
	Phone   string
	Address string
}

// Item is one table row.
type Item struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Section is a titled narrative block printed after the totals.
type Section struct {
	Title string
	Body  string
}

// Document is the normalised payload the renderer lays out.
type Document struct {
	Type        documents.Kind
	Number      string
	Status      string
	IssueDate   time.Time
	DueLabel    string
	DueDate     *time.Time
	Subject     string
	Client      Party
	Items       []Item
	Subtotal    decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Sections    []Section
	Notes       string
	Terms       string
	GeneratedAt time.Time
}

// Filename returns "<type>-<number>.pdf" with the type lower-cased.
func (d Document) Filename() string {
	return strings.ToLower(string(d.Type)) + "-" + d.Number + ".pdf"
}

// Validate reports the first missing header field.
func (d Document) Validate() error {
	switch d.Type {
	case documents.KindQuotation, documents.KindProposal, documents.KindInvoice:
	default:
		return fmt.Errorf("%w: unknown document type %q", ErrRender, d.Type)
	}
	if strings.TrimSpace(d.Number) == "" {
		return fmt.Errorf("%w: missing document number", ErrRender)
	}
	if strings.TrimSpace(d.Status) == "" {
		return fmt.Errorf("%w: missing status", ErrRender)
	}
	if d.IssueDate.IsZero() {
		return fmt.Errorf("%w: missing issue date", ErrRender)
	}
	if strings.TrimSpace(d.Client.Name) == "" {
		return fmt.Errorf("%w: missing client name", ErrRender)
	}
	if d.GeneratedAt.IsZero() {
		return fmt.Errorf("%w: missing generation timestamp", ErrRender)
	}
	for i, it := range d.Items {
		if strings.TrimSpace(it.Description) == "" {
			return fmt.Errorf("%w: item %d has no description", ErrRender, i+1)
		}
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrRender, i+1)
		}
	}
	return nil
}

// FromQuotation normalises a quotation.
func FromQuotation(q documents.Quotation, now time.Time) Document {
	d := fromHeader(documents.KindQuotation, q.Header, string(q.Status), now)
	d.DueLabel = "Valid Until"
	d.DueDate = q.ValidUntil
	return d
}

// FromProposal normalises a proposal, including its narrative sections.
func FromProposal(p documents.Proposal, now time.Time) Document {
	d := fromHeader(documents.KindProposal, p.Header, string(p.Status), now)
	d.DueLabel = "Valid Until"
	d.DueDate = p.ValidUntil
	d.Subject = p.Title
	if p.Version > 1 {
		d.Subject = fmt.Sprintf("%s (v%d)", p.Title, p.Version)
	}
	for _, s := range []Section{
		{Title: "Scope of Work", Body: p.ScopeOfWork},
		{Title: "Timeline", Body: p.Timeline},
		{Title: "Deliverables", Body: p.Deliverables},
		{Title: "Pricing Summary", Body: p.PricingSummary},
	} {
		if strings.TrimSpace(s.Body) != "" {
			d.Sections = append(d.Sections, s)
		}
	}
	return d
}

// FromInvoice normalises an invoice with its status resolved at now.
func FromInvoice(inv documents.Invoice, now time.Time) Document {
	status := documents.EffectiveInvoiceStatus(inv.Status, inv.DueDate, now)
	d := fromHeader(documents.KindInvoice, inv.Header, string(status), now)
	d.DueLabel = "Due Date"
	d.DueDate = inv.DueDate
	return d
}

func fromHeader(kind documents.Kind, h documents.Header, status string, now time.Time) Document {
	items := make([]Item, 0, len(h.Items))
	for _, it := range h.Items {
		items = append(items, Item{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		})
	}
	return Document{
		Type:      kind,
		Number:    h.Number,
		Status:    status,
		IssueDate: h.IssueDate,
		Client: Party{
			Name:    h.Client.Name,
			Company: h.Client.Company,
			Email:   h.Client.Email,
			Phone:   h.Client.Phone,
			Address: h.Client.Address,
		},
		Items:       items,
		Subtotal:    h.Subtotal,
		TaxRate:     h.TaxRate,
		TaxAmount:   h.TaxAmount,
		Discount:    h.DiscountAmount,
		Total:       h.Total,
		Notes:       h.Notes,
		Terms:       h.Terms,
		GeneratedAt: now,
	}
}
