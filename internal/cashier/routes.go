package cashier

import "github.com/go-chi/chi/v5"

// MountRoutes registers cashier report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Post("/lines", h.AddLine)
			r.Delete("/lines/{lineID}", h.RemoveLine)
			r.Post("/payments", h.AddPayment)
			r.Delete("/payments/{paymentID}", h.RemovePayment)
			r.Post("/submit", h.Submit)
			r.Post("/approve", h.Approve)
			r.Post("/revert", h.Revert)
			r.Get("/reconcile", h.Reconcile)
		})
	})
}
