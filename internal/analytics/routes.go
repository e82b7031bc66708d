package analytics

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers aggregation endpoints. Aggregations scan the full
// window, so the group carries its own rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Get("/analytics/dashboard", h.Dashboard)
		r.Get("/analytics/pivot", h.Pivot)
		r.Get("/analytics/by-category", h.ByCategory)
		r.Get("/analytics/trend", h.Trend)
		r.Get("/analytics/cell-details", h.CellDetails)
	})
}
