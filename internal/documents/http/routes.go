package documentshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/hexaforge/agency-office/internal/platform/httpx"
)

const (
	pdfRateLimit  = 20
	pdfRateWindow = time.Minute
)

// MountRoutes registers the document endpoints on r.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	pdfLimiter := httprate.Limit(pdfRateLimit, pdfRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "pdf download limit reached")
		}),
	)

	r.Route("/quotations", func(r chi.Router) {
		r.Get("/", h.listQuotations)
		r.Post("/", h.createQuotation)
		r.Get("/{id}", h.getQuotation)
		r.Put("/{id}", h.updateQuotation)
		r.Post("/{id}/status", h.transitionQuotation)
		r.Post("/{id}/convert", h.convertQuotation)
		r.With(pdfLimiter).Get("/{id}/pdf", h.quotationPDF)
	})
	r.Route("/proposals", func(r chi.Router) {
		r.Get("/", h.listProposals)
		r.Post("/", h.createProposal)
		r.Get("/{id}", h.getProposal)
		r.Put("/{id}", h.updateProposal)
		r.Post("/{id}/status", h.transitionProposal)
		r.Post("/{id}/versions", h.newProposalVersion)
		r.With(pdfLimiter).Get("/{id}/pdf", h.proposalPDF)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Put("/{id}", h.updateInvoice)
		r.Post("/{id}/status", h.transitionInvoice)
		r.Post("/{id}/payments", h.recordPayment)
		r.With(pdfLimiter).Get("/{id}/pdf", h.invoicePDF)
	})
	r.Post("/numbers/{kind}", h.issueNumber)
}
