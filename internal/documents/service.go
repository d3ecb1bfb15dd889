package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/money"
	"github.com/hexaforge/agency-office/internal/numbering"
)

// DefaultPaymentTerms is applied to invoices created by conversion.
const DefaultPaymentTerms = 30 * 24 * time.Hour

// NumberIssuer allocates human-readable document numbers.
type NumberIssuer interface {
	Next(ctx context.Context, kind numbering.Kind) (numbering.Number, error)
}

// Service coordinates the document lifecycle.
type Service struct {
	store        Store
	numbers      NumberIssuer
	logger       *slog.Logger
	now          func() time.Time
	newID        func() uuid.UUID
	paymentTerms time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) { s.newID = fn }
}

// WithPaymentTerms sets the due-date offset for converted invoices.
func WithPaymentTerms(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.paymentTerms = d
		}
	}
}

// NewService constructs the document service.
func NewService(store Store, numbers NumberIssuer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:        store,
		numbers:      numbers,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.New,
		paymentTerms: DefaultPaymentTerms,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// QUOTATIONS
// ============================================================================

// CreateQuotation validates the draft, allocates a number and stores a pending quotation.
func (s *Service) CreateQuotation(ctx context.Context, draft QuotationDraft) (*Quotation, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}
	now := s.now()
	header.IssueDate = dateOr(draft.IssueDate, now)
	if err := validateDates("valid_until", header.IssueDate, draft.ValidUntil); err != nil {
		return nil, err
	}
	if err := s.assignIdentity(ctx, &header, KindQuotation, now); err != nil {
		return nil, err
	}

	q := &Quotation{Header: header, Status: InitialStatus(KindQuotation), ValidUntil: draft.ValidUntil}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.InsertQuotation(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	s.logger.Info("quotation created", slog.String("id", q.ID.String()), slog.String("number", q.Number))
	return q, nil
}

// UpdateQuotation replaces the content of an editable quotation.
func (s *Service) UpdateQuotation(ctx context.Context, id uuid.UUID, draft QuotationDraft) (*Quotation, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}

	var out *Quotation
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		if !IsEditable(KindQuotation, cur.Status) {
			return lockedError(KindQuotation, cur.Number, cur.Status)
		}
		if err := validateDates("valid_until", cur.IssueDate, draft.ValidUntil); err != nil {
			return err
		}
		cur.Header = keepIdentity(cur.Header, header, s.now())
		cur.ValidUntil = draft.ValidUntil
		if err := tx.UpdateQuotation(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quotation: %w", err)
	}
	return out, nil
}

// GetQuotation loads a quotation by id.
func (s *Service) GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	return s.store.GetQuotation(ctx, id)
}

// ListQuotations returns quotations, optionally restricted to one status.
func (s *Service) ListQuotations(ctx context.Context, status *Status) ([]Quotation, error) {
	return s.store.ListQuotations(ctx, status)
}

// TransitionQuotation applies a user status change.
func (s *Service) TransitionQuotation(ctx context.Context, id uuid.UUID, to Status) (*Quotation, error) {
	var out *Quotation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(KindQuotation, cur.Status, to, TriggerUser); err != nil {
			return err
		}
		if err := tx.SetQuotationStatus(ctx, id, []Status{cur.Status}, to); err != nil {
			return err
		}
		cur.Status = to
		cur.UpdatedAt = s.now()
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition quotation: %w", err)
	}
	s.logger.Info("quotation status changed", slog.String("id", id.String()), slog.String("status", string(to)))
	return out, nil
}

// ConvertToInvoice copies an approved quotation into a new draft invoice and
// marks the quotation converted. Both writes share one transaction; the
// invoice is written first. The invoice number is drawn before the
// transaction opens so the allocator never needs a second connection while
// this one is held; a conversion that loses a race leaves a gap.
func (s *Service) ConvertToInvoice(ctx context.Context, quotationID uuid.UUID) (*Invoice, error) {
	current, err := s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, fmt.Errorf("convert quotation: %w", preconditionOnMissing(err, KindQuotation, quotationID))
	}
	if err := checkConvertible(current); err != nil {
		return nil, fmt.Errorf("convert quotation: %w", err)
	}
	number, err := s.issue(ctx, KindInvoice)
	if err != nil {
		return nil, fmt.Errorf("convert quotation: %w", err)
	}

	var inv *Invoice
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		q, err := tx.GetQuotation(ctx, quotationID)
		if err != nil {
			return preconditionOnMissing(err, KindQuotation, quotationID)
		}
		if err := checkConvertible(q); err != nil {
			return err
		}

		now := s.now()
		header := q.Header.clone()
		header.IssueDate = now
		s.stamp(&header, number, now)
		due := now.Add(s.paymentTerms)
		source := q.ID
		inv = &Invoice{
			Header:      header,
			Status:      InitialStatus(KindInvoice),
			DueDate:     &due,
			QuotationID: &source,
			PaidAmount:  decimal.Zero,
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		return tx.SetQuotationStatus(ctx, q.ID, []Status{StatusApproved}, StatusConverted)
	})
	if err != nil {
		return nil, fmt.Errorf("convert quotation: %w", err)
	}
	s.logger.Info("quotation converted",
		slog.String("quotation_id", quotationID.String()),
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.Number),
	)
	return inv, nil
}

func checkConvertible(q *Quotation) error {
	if q.Status != StatusApproved {
		return fmt.Errorf("%w: quotation %s is %s, only approved quotations can be converted", ErrPreconditionFailed, q.Number, q.Status)
	}
	return CheckTransition(KindQuotation, q.Status, StatusConverted, TriggerConversion)
}

// ============================================================================
// PROPOSALS
// ============================================================================

// CreateProposal stores version 1 of a new proposal.
func (s *Service) CreateProposal(ctx context.Context, draft ProposalDraft) (*Proposal, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}
	now := s.now()
	header.IssueDate = dateOr(draft.IssueDate, now)
	if err := validateDates("valid_until", header.IssueDate, draft.ValidUntil); err != nil {
		return nil, err
	}
	if err := s.assignIdentity(ctx, &header, KindProposal, now); err != nil {
		return nil, err
	}

	p := &Proposal{Header: header, Status: InitialStatus(KindProposal), Version: 1}
	applyNarrative(p, draft)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.InsertProposal(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	s.logger.Info("proposal created", slog.String("id", p.ID.String()), slog.String("number", p.Number))
	return p, nil
}

// UpdateProposal replaces the content of a draft proposal.
func (s *Service) UpdateProposal(ctx context.Context, id uuid.UUID, draft ProposalDraft) (*Proposal, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}

	var out *Proposal
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if !IsEditable(KindProposal, cur.Status) {
			return lockedError(KindProposal, cur.Number, cur.Status)
		}
		if err := validateDates("valid_until", cur.IssueDate, draft.ValidUntil); err != nil {
			return err
		}
		cur.Header = keepIdentity(cur.Header, header, s.now())
		applyNarrative(cur, draft)
		if err := tx.UpdateProposal(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update proposal: %w", err)
	}
	return out, nil
}

// GetProposal loads a proposal by id.
func (s *Service) GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// ListProposals returns proposals, optionally restricted to one status.
func (s *Service) ListProposals(ctx context.Context, status *Status) ([]Proposal, error) {
	return s.store.ListProposals(ctx, status)
}

// TransitionProposal applies a user status change. Revising is reserved for CreateNewVersion.
func (s *Service) TransitionProposal(ctx context.Context, id uuid.UUID, to Status) (*Proposal, error) {
	var out *Proposal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(KindProposal, cur.Status, to, TriggerUser); err != nil {
			return err
		}
		if err := tx.SetProposalStatus(ctx, id, []Status{cur.Status}, to); err != nil {
			return err
		}
		cur.Status = to
		cur.UpdatedAt = s.now()
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition proposal: %w", err)
	}
	s.logger.Info("proposal status changed", slog.String("id", id.String()), slog.String("status", string(to)))
	return out, nil
}

// CreateNewVersion clones a proposal into its successor and retires the source.
// Drafts are edited in place, so only sent, accepted or rejected proposals
// can be versioned.
func (s *Service) CreateNewVersion(ctx context.Context, proposalID uuid.UUID) (*Proposal, error) {
	current, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("version proposal: %w", preconditionOnMissing(err, KindProposal, proposalID))
	}
	if err := checkVersionable(current); err != nil {
		return nil, fmt.Errorf("version proposal: %w", err)
	}
	number, err := s.issue(ctx, KindProposal)
	if err != nil {
		return nil, fmt.Errorf("version proposal: %w", err)
	}

	var next *Proposal
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		src, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return preconditionOnMissing(err, KindProposal, proposalID)
		}
		if err := checkVersionable(src); err != nil {
			return err
		}

		now := s.now()
		header := src.Header.clone()
		header.IssueDate = now
		s.stamp(&header, number, now)
		prev := src.ID
		next = &Proposal{
			Header:            header,
			Status:            InitialStatus(KindProposal),
			Title:             src.Title,
			ScopeOfWork:       src.ScopeOfWork,
			Timeline:          src.Timeline,
			Deliverables:      src.Deliverables,
			PricingSummary:    src.PricingSummary,
			ValidUntil:        cloneTime(src.ValidUntil),
			Version:           src.Version + 1,
			PreviousVersionID: &prev,
		}
		if err := tx.InsertProposal(ctx, next); err != nil {
			return fmt.Errorf("insert proposal version: %w", err)
		}
		return tx.SetProposalStatus(ctx, src.ID, []Status{src.Status}, StatusRevised)
	})
	if err != nil {
		return nil, fmt.Errorf("version proposal: %w", err)
	}
	s.logger.Info("proposal versioned",
		slog.String("source_id", proposalID.String()),
		slog.String("id", next.ID.String()),
		slog.Int("version", next.Version),
	)
	return next, nil
}

func checkVersionable(p *Proposal) error {
	switch p.Status {
	case StatusRevised:
		return fmt.Errorf("%w: proposal %s v%d is already superseded", ErrPreconditionFailed, p.Number, p.Version)
	case StatusDraft:
		return fmt.Errorf("%w: proposal %s v%d is still a draft, edit it instead", ErrPreconditionFailed, p.Number, p.Version)
	}
	return CheckTransition(KindProposal, p.Status, StatusRevised, TriggerVersioning)
}

// ============================================================================
// INVOICES
// ============================================================================

// InvoiceQuery filters invoice listings by effective status and issue date.
type InvoiceQuery struct {
	Status     *Status
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// CreateInvoice stores a directly entered draft invoice.
func (s *Service) CreateInvoice(ctx context.Context, draft InvoiceDraft) (*Invoice, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}
	now := s.now()
	header.IssueDate = dateOr(draft.IssueDate, now)
	if err := validateDates("due_date", header.IssueDate, draft.DueDate); err != nil {
		return nil, err
	}
	if err := s.assignIdentity(ctx, &header, KindInvoice, now); err != nil {
		return nil, err
	}

	inv := &Invoice{Header: header, Status: InitialStatus(KindInvoice), DueDate: draft.DueDate, PaidAmount: decimal.Zero}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.InsertInvoice(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.logger.Info("invoice created", slog.String("id", inv.ID.String()), slog.String("number", inv.Number))
	return inv, nil
}

// UpdateInvoice replaces the content of a draft invoice.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, draft InvoiceDraft) (*Invoice, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	header, err := buildCommercial(draft.CommercialInput)
	if err != nil {
		return nil, err
	}

	var out *Invoice
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !IsEditable(KindInvoice, cur.Status) {
			return lockedError(KindInvoice, cur.Number, cur.Status)
		}
		if err := validateDates("due_date", cur.IssueDate, draft.DueDate); err != nil {
			return err
		}
		cur.Header = keepIdentity(cur.Header, header, s.now())
		cur.DueDate = draft.DueDate
		if err := tx.UpdateInvoice(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return out, nil
}

// GetInvoice loads an invoice with its effective status.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	eff := inv.Effective(s.now())
	return &eff, nil
}

// ListInvoices returns invoices whose effective status and issue date match q.
func (s *Service) ListInvoices(ctx context.Context, q InvoiceQuery) ([]Invoice, error) {
	filter := InvoiceFilter{IssuedFrom: q.IssuedFrom, IssuedTo: q.IssuedTo}
	if q.Status != nil {
		filter.Statuses = storedStatusesFor(*q.Status)
	}
	stored, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	now := s.now()
	out := make([]Invoice, 0, len(stored))
	for _, inv := range stored {
		eff := inv.Effective(now)
		if q.Status != nil && eff.Status != *q.Status {
			continue
		}
		out = append(out, eff)
	}
	return out, nil
}

// TransitionInvoice applies a user status change. Marking an invoice paid
// through this path records the full total as paid now.
func (s *Service) TransitionInvoice(ctx context.Context, id uuid.UUID, to Status) (*Invoice, error) {
	return s.moveInvoice(ctx, id, to, nil)
}

// RecordPayment settles an invoice with the given amount.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Invoice, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return s.moveInvoice(ctx, id, StatusPaid, &in)
}

func (s *Service) moveInvoice(ctx context.Context, id uuid.UUID, to Status, in *PaymentInput) (*Invoice, error) {
	var out *Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		cur, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		from := EffectiveInvoiceStatus(cur.Status, cur.DueDate, now)
		if err := CheckTransition(KindInvoice, from, to, TriggerUser); err != nil {
			return err
		}

		var payment *Payment
		if to == StatusPaid {
			payment = &Payment{Amount: cur.Total, PaidAt: now}
			if in != nil {
				payment.Amount = money.Round(in.Amount)
				if in.PaidAt != nil {
					payment.PaidAt = *in.PaidAt
				}
				if payment.Amount.GreaterThan(cur.Total) {
					return newValidationError("amount", "must not exceed invoice total "+money.FormatBDT(cur.Total))
				}
			}
		}
		if err := tx.SetInvoiceStatus(ctx, id, []Status{cur.Status}, to, payment); err != nil {
			return err
		}
		cur.Status = to
		cur.UpdatedAt = now
		if payment != nil {
			cur.PaidAmount = payment.Amount
			paidAt := payment.PaidAt
			cur.PaidAt = &paidAt
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition invoice: %w", err)
	}
	s.logger.Info("invoice status changed", slog.String("id", id.String()), slog.String("status", string(to)))
	return out, nil
}

// SweepOverdue persists the time-based sent -> overdue transition.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.store.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep overdue invoices: %w", err)
	}
	if n > 0 {
		s.logger.Info("invoices marked overdue", slog.Int64("count", n))
	}
	return n, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Service) assignIdentity(ctx context.Context, h *Header, kind Kind, now time.Time) error {
	number, err := s.issue(ctx, kind)
	if err != nil {
		return err
	}
	s.stamp(h, number, now)
	return nil
}

// issue must not be called inside WithTx: the PostgreSQL allocator takes its
// own pool connection.
func (s *Service) issue(ctx context.Context, kind Kind) (string, error) {
	number, err := s.numbers.Next(ctx, kind.numberingKind())
	if err != nil {
		return "", fmt.Errorf("allocate %s number: %w", kind, err)
	}
	return number.Value, nil
}

func (s *Service) stamp(h *Header, number string, now time.Time) {
	h.ID = s.newID()
	h.Number = number
	h.CreatedAt = now
	h.UpdatedAt = now
}

// keepIdentity merges new content into cur, preserving id, number, issue date and creation time.
func keepIdentity(cur, content Header, now time.Time) Header {
	content.ID = cur.ID
	content.Number = cur.Number
	content.IssueDate = cur.IssueDate
	content.CreatedAt = cur.CreatedAt
	content.UpdatedAt = now
	return content
}

func applyNarrative(p *Proposal, draft ProposalDraft) {
	p.Title = draft.Title
	p.ScopeOfWork = draft.ScopeOfWork
	p.Timeline = draft.Timeline
	p.Deliverables = draft.Deliverables
	p.PricingSummary = draft.PricingSummary
	p.ValidUntil = draft.ValidUntil
}

func lockedError(kind Kind, number string, status Status) error {
	return fmt.Errorf("%w: %s %s is %s and can no longer be edited", ErrPreconditionFailed, kind, number, status)
}

func preconditionOnMissing(err error, kind Kind, id uuid.UUID) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s: %w", ErrPreconditionFailed, kind, id, ErrNotFound)
	}
	return err
}

// storedStatusesFor maps an effective status filter to the persisted statuses that can produce it.
func storedStatusesFor(status Status) []Status {
	if status == StatusOverdue {
		return []Status{StatusSent, StatusOverdue}
	}
	return []Status{status}
}

func dateOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return *t
	}
	return fallback
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
