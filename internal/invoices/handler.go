package invoices

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Headers of the idempotent create.
const (
	// IdempotencyKeyHeader carries the client key that makes a create replayable.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response that replays an earlier create.
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

const maxIdempotencyKeyLen = 255

// Handler exposes the invoice service over JSON HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer Renderer
}

// NewHandler constructs the handler. renderer may be nil, which disables PDF export.
func NewHandler(logger *slog.Logger, service *Service, renderer Renderer) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), ListRequest{
		Options: FilterOptions{
			ClientName: q.Get("clientName"),
			StartDate:  q.Get("startDate"),
			EndDate:    q.Get("endDate"),
			Status:     q.Get("status"),
		},
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.Search(r.Context(), searchOptions(r))
	if err != nil {
		h.fail(w, r, "search invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		httpx.RespondError(w, shared.NewValidationError(IdempotencyKeyHeader,
			fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen)))
		return
	}
	inv, replayed, err := h.service.CreateOnce(r.Context(), key, draft)
	if err != nil {
		h.fail(w, r, "create invoice", err)
		return
	}
	w.Header().Set("Location", "/invoices/"+inv.ID)
	if replayed {
		w.Header().Set(IdempotentReplayedHeader, "true")
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.NextNumber(r.Context())
	if err != nil {
		h.fail(w, r, "next invoice number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"nextNumber": number})
}

func (h *Handler) newDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.NewDraft(r.Context())
	if err != nil {
		h.fail(w, r, "new draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Preview(draft))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.Search(r.Context(), searchOptions(r))
	if err != nil {
		h.fail(w, r, "export invoices", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := WriteCSV(w, invoices); err != nil {
		h.logger.Error("write invoices csv", slog.Any("error", err))
	}
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.Problem(w, http.StatusNotImplemented, "internal_error", "PDF Export Disabled", "")
		return
	}
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	pdf, err := RenderPDF(r.Context(), h.renderer, *inv)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.String("id", inv.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "internal_error", "PDF Rendering Failed", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", inv.Details.InvoiceNumber))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (Draft, bool) {
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", decodeMessage(err)))
		return Draft{}, false
	}
	return draft, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op+" failed",
			slog.String("kind", shared.Kind(err)),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func searchOptions(r *http.Request) FilterOptions {
	q := r.URL.Query()
	return FilterOptions{
		ClientName: q.Get("client"),
		StartDate:  q.Get("from"),
		EndDate:    q.Get("to"),
		Status:     q.Get("status"),
	}
}

func intParam(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, shared.NewValidationError(field, "must be a positive integer")
	}
	return n, nil
}

func decodeMessage(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "json: ") {
		msg = strings.TrimPrefix(msg, "json: ")
	}
	return "malformed invoice: " + msg
}
