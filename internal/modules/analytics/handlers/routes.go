package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the analysis and portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/returns", h.HandleReturns)
		r.Post("/summary", h.HandleSummary)
		r.Post("/correlation", h.HandleCorrelation)
		r.Post("/consolidated-correlation", h.HandleConsolidatedCorrelation)
	})

	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/inputs", h.HandleInputs)
		r.Post("/optimize", h.HandleOptimize)
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/frontier/chart", h.HandleFrontierChart)
		r.Post("/special", h.HandleSpecial)
	})
}
