package invoices

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the invoice endpoints. createLimit, when non-nil,
// throttles saves.
func (h *Handler) MountRoutes(r chi.Router, createLimit func(http.Handler) http.Handler) {
	r.Get("/", h.list)
	r.Get("/search", h.search)
	r.Get("/next-number", h.nextNumber)
	r.Get("/export.csv", h.exportCSV)
	r.Post("/drafts", h.newDraft)
	r.Post("/preview", h.preview)
	r.Group(func(r chi.Router) {
		if createLimit != nil {
			r.Use(createLimit)
		}
		r.Post("/", h.create)
	})
	r.Get("/{id}", h.show)
	r.Get("/{id}/pdf", h.pdf)
}
