package revenue

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/platform/httpx"
)

// Reporter builds revenue reports.
type Reporter interface {
	Build(ctx context.Context, f Filter) (*Report, error)
}

// Handler serves the revenue report and its CSV export.
type Handler struct {
	logger   *slog.Logger
	reporter Reporter
}

// NewHandler builds the revenue handler.
func NewHandler(logger *slog.Logger, reporter Reporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reporter: reporter}
}

// MountRoutes registers the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/reports/revenue", h.handleReport)
	r.Get("/reports/revenue.csv", h.handleExport)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.build(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.build(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rep.Rows); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("revenue exported", slog.Int("rows", len(rep.Rows)))
	httpx.Attachment(w, "text/csv; charset=utf-8", exportName(rep.Filter), buf.Bytes())
}

func (h *Handler) build(r *http.Request) (*Report, error) {
	from, to, err := httpx.DateRange(r)
	if err != nil {
		return nil, err
	}
	f := Filter{From: from, To: to}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := documents.ParseStatus(documents.KindInvoice, raw)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	return h.reporter.Build(r.Context(), f)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	err = httpx.Translate(err, httpx.Mapping{Domain: documents.ErrValidation, HTTP: httpx.ErrValidation})
	if !httpx.IsClientError(err) {
		h.logger.Error("revenue report failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func exportName(f Filter) string {
	name := "revenue"
	if f.From != nil {
		name += "-" + f.From.Format(csvDate)
	}
	if f.To != nil {
		name += "-" + f.To.Format(csvDate)
	}
	return name + ".csv"
}
