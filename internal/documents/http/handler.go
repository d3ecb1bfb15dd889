package documentshttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/documents/render"
	"github.com/hexaforge/agency-office/internal/numbering"
	"github.com/hexaforge/agency-office/internal/platform/httpx"
)

// Service is the document lifecycle contract the handler drives.
type Service interface {
	CreateQuotation(ctx context.Context, draft documents.QuotationDraft) (*documents.Quotation, error)
	UpdateQuotation(ctx context.Context, id uuid.UUID, draft documents.QuotationDraft) (*documents.Quotation, error)
	GetQuotation(ctx context.Context, id uuid.UUID) (*documents.Quotation, error)
	ListQuotations(ctx context.Context, status *documents.Status) ([]documents.Quotation, error)
	TransitionQuotation(ctx context.Context, id uuid.UUID, to documents.Status) (*documents.Quotation, error)
	ConvertToInvoice(ctx context.Context, quotationID uuid.UUID) (*documents.Invoice, error)

	CreateProposal(ctx context.Context, draft documents.ProposalDraft) (*documents.Proposal, error)
	UpdateProposal(ctx context.Context, id uuid.UUID, draft documents.ProposalDraft) (*documents.Proposal, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*documents.Proposal, error)
	ListProposals(ctx context.Context, status *documents.Status) ([]documents.Proposal, error)
	TransitionProposal(ctx context.Context, id uuid.UUID, to documents.Status) (*documents.Proposal, error)
	CreateNewVersion(ctx context.Context, proposalID uuid.UUID) (*documents.Proposal, error)

	CreateInvoice(ctx context.Context, draft documents.InvoiceDraft) (*documents.Invoice, error)
	UpdateInvoice(ctx context.Context, id uuid.UUID, draft documents.InvoiceDraft) (*documents.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*documents.Invoice, error)
	ListInvoices(ctx context.Context, q documents.InvoiceQuery) ([]documents.Invoice, error)
	TransitionInvoice(ctx context.Context, id uuid.UUID, to documents.Status) (*documents.Invoice, error)
	RecordPayment(ctx context.Context, id uuid.UUID, in documents.PaymentInput) (*documents.Invoice, error)
}

// Renderer produces PDF files.
type Renderer interface {
	Render(doc render.Document) (render.File, error)
}

// Handler serves the quotation, proposal and invoice API.
type Handler struct {
	logger   *slog.Logger
	service  Service
	numbers  documents.NumberIssuer
	renderer Renderer
	observer RenderObserver
	now      func() time.Time
	renders  singleflight.Group
}

// NewHandler builds the document handler.
func NewHandler(logger *slog.Logger, service Service, numbers documents.NumberIssuer, renderer Renderer, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		numbers:  numbers,
		renderer: renderer,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RenderObserver receives the outcome of every PDF render actually performed.
type RenderObserver interface {
	ObserveRender(kind string, elapsed time.Duration, err error)
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithRenderObserver reports renders to o.
func WithRenderObserver(o RenderObserver) HandlerOption {
	return func(h *Handler) { h.observer = o }
}

// ============================================================================
// QUOTATIONS
// ============================================================================

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var draft documents.QuotationDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.service.CreateQuotation(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	q, err := h.service.GetQuotation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) updateQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var draft documents.QuotationDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.service.UpdateQuotation(r.Context(), id, draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r, documents.KindQuotation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.ListQuotations(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotations": list})
}

func (h *Handler) transitionQuotation(w http.ResponseWriter, r *http.Request) {
	id, to, ok := h.transitionInput(w, r, documents.KindQuotation)
	if !ok {
		return
	}
	q, err := h.service.TransitionQuotation(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.ConvertToInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) quotationPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, documents.KindQuotation, func(ctx context.Context, id uuid.UUID, now time.Time) (render.Document, error) {
		q, err := h.service.GetQuotation(ctx, id)
		if err != nil {
			return render.Document{}, err
		}
		return render.FromQuotation(*q, now), nil
	})
}

// ============================================================================
// PROPOSALS
// ============================================================================

func (h *Handler) createProposal(w http.ResponseWriter, r *http.Request) {
	var draft documents.ProposalDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.CreateProposal(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProposal(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var draft documents.ProposalDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.UpdateProposal(r.Context(), id, draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listProposals(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r, documents.KindProposal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.ListProposals(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposals": list})
}

func (h *Handler) transitionProposal(w http.ResponseWriter, r *http.Request) {
	id, to, ok := h.transitionInput(w, r, documents.KindProposal)
	if !ok {
		return
	}
	p, err := h.service.TransitionProposal(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) newProposalVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.CreateNewVersion(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) proposalPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, documents.KindProposal, func(ctx context.Context, id uuid.UUID, now time.Time) (render.Document, error) {
		p, err := h.service.GetProposal(ctx, id)
		if err != nil {
			return render.Document{}, err
		}
		return render.FromProposal(*p, now), nil
	})
}

// ============================================================================
// INVOICES
// ============================================================================

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var draft documents.InvoiceDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var draft documents.InvoiceDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.service.UpdateInvoice(r.Context(), id, draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r, documents.KindInvoice)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	from, to, err := httpx.DateRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.ListInvoices(r.Context(), documents.InvoiceQuery{Status: status, IssuedFrom: from, IssuedTo: to})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": list})
}

func (h *Handler) transitionInvoice(w http.ResponseWriter, r *http.Request) {
	id, to, ok := h.transitionInput(w, r, documents.KindInvoice)
	if !ok {
		return
	}
	inv, err := h.service.TransitionInvoice(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in documents.PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, documents.KindInvoice, func(ctx context.Context, id uuid.UUID, now time.Time) (render.Document, error) {
		inv, err := h.service.GetInvoice(ctx, id)
		if err != nil {
			return render.Document{}, err
		}
		return render.FromInvoice(*inv, now), nil
	})
}

// ============================================================================
// NUMBERS
// ============================================================================

// issueNumber hands out identifiers for records managed outside this service,
// such as employee ids. Document numbers are only issued with their document.
func (h *Handler) issueNumber(w http.ResponseWriter, r *http.Request) {
	kind, err := numbering.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch documents.Kind(kind) {
	case documents.KindQuotation, documents.KindProposal, documents.KindInvoice:
		httpx.ValidationProblem(w, fmt.Sprintf("%s numbers are issued when the document is created", kind),
			map[string]string{"kind": "not issuable"})
		return
	}
	n, err := h.numbers.Next(r.Context(), kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if n.Degraded {
		h.logger.Warn("degraded identifier issued over http", slog.String("kind", string(kind)), slog.String("number", n.Value))
	}
	httpx.JSON(w, http.StatusCreated, n)
}

// ============================================================================
// PDF
// ============================================================================

type loadFunc func(ctx context.Context, id uuid.UUID, now time.Time) (render.Document, error)

// servePDF renders a document. Concurrent requests for the same document share
// a single render.
func (h *Handler) servePDF(w http.ResponseWriter, r *http.Request, kind documents.Kind, load loadFunc) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key := string(kind) + ":" + id.String()
	ch := h.renders.DoChan(key, func() (any, error) {
		doc, err := load(context.WithoutCancel(ctx), id, h.now())
		if err != nil {
			return nil, err
		}
		start := time.Now()
		file, err := h.renderer.Render(doc)
		if h.observer != nil {
			h.observer.ObserveRender(string(kind), time.Since(start), err)
		}
		return file, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		h.fail(w, r, ctx.Err())
		return
	case res = <-ch:
	}
	if res.Err != nil {
		h.fail(w, r, res.Err)
		return
	}
	file := res.Val.(render.File)
	h.logger.Info("document rendered",
		slog.String("kind", string(kind)),
		slog.String("id", id.String()),
		slog.Int("pages", file.Pages),
		slog.Bool("shared", res.Shared),
	)
	httpx.Attachment(w, "application/pdf", file.Name, file.Data)
}
