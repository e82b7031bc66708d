package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes registers timeline endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/operations", h.List)
	r.Post("/operations", h.Record)
	r.Patch("/operations/{id}", h.Update)
	r.Delete("/operations/{id}", h.Delete)
	r.Get("/balances", h.Balances)
	r.Post("/balances/drift-scan", h.DriftScan)
}
