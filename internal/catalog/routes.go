package catalog

import "github.com/go-chi/chi/v5"

// MountRoutes registers catalog endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.ListAccounts)
	r.Post("/accounts", h.CreateAccount)
	r.Patch("/accounts/{id}", h.UpdateAccount)
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Patch("/categories/{id}/parent", h.ReparentCategory)
	r.Get("/payment-methods", h.ListPaymentMethods)
	r.Post("/payment-methods", h.CreatePaymentMethod)
	r.Patch("/payment-methods/{id}", h.UpdatePaymentMethod)
	r.Get("/locations", h.ListLocations)
	r.Post("/locations", h.CreateLocation)
	r.Get("/analytic-blocks", h.ListBlocks)
	r.Post("/analytic-blocks", h.CreateBlock)
	r.Put("/analytic-blocks/{id}/categories", h.SetBlockCategories)
}
