package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the price history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleListSymbols)
		r.Get("/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPrices(w, r, chi.URLParam(r, "symbol"))
		})
		r.Put("/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandlePutPrices(w, r, chi.URLParam(r, "symbol"))
		})
	})
}
