// Package revenue summarises invoiced and collected amounts and exports them as CSV.
package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/money"
)

// InvoiceLister lists invoices with their effective status.
type InvoiceLister interface {
	ListInvoices(ctx context.Context, q documents.InvoiceQuery) ([]documents.Invoice, error)
}

// Filter bounds a report by issue date and, optionally, effective status.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status *documents.Status
}

// Row is one invoice in the report.
type Row struct {
	InvoiceID  string           `json:"invoice_id"`
	Amount     decimal.Decimal  `json:"amount"`
	PaidAmount decimal.Decimal  `json:"paid_amount"`
	Status     documents.Status `json:"status"`
	IssueDate  time.Time        `json:"issue_date"`
	PaidDate   *time.Time       `json:"paid_date,omitempty"`
}

// Totals aggregates a report.
type Totals struct {
	Invoiced    decimal.Decimal `json:"invoiced"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
	Count       int             `json:"count"`
}

// Report is the revenue summary for a period.
type Report struct {
	Filter Filter `json:"-"`
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
}

// Service builds revenue reports.
type Service struct {
	invoices InvoiceLister
}

// NewService constructs a revenue Service.
func NewService(invoices InvoiceLister) *Service {
	return &Service{invoices: invoices}
}

// Qualifies reports whether an invoice with the given effective status counts
// as billed revenue. Drafts were never sent and cancelled invoices are void.
func Qualifies(status documents.Status) bool {
	switch status {
	case documents.StatusSent, documents.StatusOverdue, documents.StatusPaid:
		return true
	}
	return false
}

// Build lists qualifying invoices in the filter window, newest first.
func (s *Service) Build(ctx context.Context, f Filter) (*Report, error) {
	if f.Status != nil && !Qualifies(*f.Status) {
		return nil, &documents.ValidationError{Fields: map[string]string{
			"status": fmt.Sprintf("%s invoices are not revenue", *f.Status),
		}}
	}
	list, err := s.invoices.ListInvoices(ctx, documents.InvoiceQuery{
		Status:     f.Status,
		IssuedFrom: f.From,
		IssuedTo:   f.To,
	})
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}

	rep := &Report{
		Filter: f,
		Rows:   make([]Row, 0, len(list)),
		Totals: Totals{
			Invoiced:    decimal.Zero,
			Collected:   decimal.Zero,
			Outstanding: decimal.Zero,
			Overdue:     decimal.Zero,
		},
	}
	for _, inv := range list {
		if !Qualifies(inv.Status) {
			continue
		}
		row := Row{
			InvoiceID:  inv.Number,
			Amount:     money.Round(inv.Total),
			PaidAmount: money.Round(inv.PaidAmount),
			Status:     inv.Status,
			IssueDate:  inv.IssueDate,
			PaidDate:   inv.PaidAt,
		}
		rep.Rows = append(rep.Rows, row)

		rep.Totals.Count++
		rep.Totals.Invoiced = rep.Totals.Invoiced.Add(row.Amount)
		rep.Totals.Collected = rep.Totals.Collected.Add(row.PaidAmount)
		if row.Status != documents.StatusPaid {
			rep.Totals.Outstanding = rep.Totals.Outstanding.Add(row.Amount)
		}
		if row.Status == documents.StatusOverdue {
			rep.Totals.Overdue = rep.Totals.Overdue.Add(row.Amount)
		}
	}
	return rep, nil
}
