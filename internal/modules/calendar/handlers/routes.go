package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all calendar routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/markets", h.HandleGetMarkets)
		r.Get("/status", h.HandleGetStatus)
		r.Get("/status/{market}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetMarketStatus(w, r, chi.URLParam(r, "market"))
		})
		r.Get("/trade-day/{market}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetTradeDay(w, r, chi.URLParam(r, "market"))
		})
		r.Get("/records", h.HandleGetRecords)
		r.Get("/snapshot", h.HandleGetSnapshot)
		r.Post("/reload", h.HandleReload)
	})
}
