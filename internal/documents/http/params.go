package documentshttp

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/documents/render"
	"github.com/hexaforge/agency-office/internal/numbering"
	"github.com/hexaforge/agency-office/internal/platform/httpx"
)

var errorMappings = []httpx.Mapping{
	{Domain: documents.ErrPreconditionFailed, HTTP: httpx.ErrConflict},
	{Domain: documents.ErrNotFound, HTTP: httpx.ErrNotFound},
	{Domain: documents.ErrValidation, HTTP: httpx.ErrValidation},
	{Domain: numbering.ErrUnknownKind, HTTP: httpx.ErrNotFound},
	{Domain: render.ErrRender, HTTP: httpx.ErrUnprocessable},
}

// RespondError writes err as a problem response, logging anything that is not
// the caller's fault.
func RespondError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	err = httpx.Translate(err, errorMappings...)
	if !httpx.IsClientError(err) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	RespondError(h.logger, w, r, err)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.ValidationProblem(w, "invalid document id", map[string]string{"id": "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) transitionInput(w http.ResponseWriter, r *http.Request, kind documents.Kind) (uuid.UUID, documents.Status, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return uuid.Nil, "", false
	}
	var in documents.TransitionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return uuid.Nil, "", false
	}
	to, err := documents.ParseStatus(kind, strings.TrimSpace(in.Status))
	if err != nil {
		h.fail(w, r, err)
		return uuid.Nil, "", false
	}
	return id, to, true
}

func statusParam(r *http.Request, kind documents.Kind) (*documents.Status, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	st, err := documents.ParseStatus(kind, raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
