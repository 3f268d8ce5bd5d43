// Package handlers exposes the analytics operations over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/utils"
)

// maxBodyBytes bounds a request body
const maxBodyBytes = 1 << 20

// Handler handles analytics HTTP requests
type Handler struct {
	service  *analytics.Service
	renderer *charts.Renderer
	log      zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, renderer *charts.Renderer, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		renderer: renderer,
		log:      log.With().Str("handler", "analytics").Logger(),
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequest(w, "", "invalid request body: "+err.Error(), h.log)
		return false
	}
	return true
}

// serve decodes a request of type Req, runs op and writes its response.
func serve[Req any, Resp any](h *Handler, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !h.decode(w, r, &req) {
			return
		}
		resp, err := op(r.Context(), req)
		if err != nil {
			utils.WriteError(w, err, h.log)
			return
		}
		utils.WriteJSON(w, http.StatusOK, resp, h.log)
	}
}

// HandleReturns handles POST /api/analysis/returns
func (h *Handler) HandleReturns(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.ComputeReturns)(w, r)
}

// HandleSummary handles POST /api/analysis/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.ComputeStatistics)(w, r)
}

// HandleCorrelation handles POST /api/analysis/correlation
func (h *Handler) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.ComputeCorrelation)(w, r)
}

// HandleConsolidatedCorrelation handles POST /api/analysis/consolidated-correlation
func (h *Handler) HandleConsolidatedCorrelation(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.Consolidate)(w, r)
}

// HandleInputs handles POST /api/portfolio/inputs
func (h *Handler) HandleInputs(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.PortfolioInputs)(w, r)
}

// HandleOptimize handles POST /api/portfolio/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.Optimize)(w, r)
}

// HandleFrontier handles POST /api/portfolio/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.GenerateFrontier)(w, r)
}

// HandleSpecial handles POST /api/portfolio/special
func (h *Handler) HandleSpecial(w http.ResponseWriter, r *http.Request) {
	serve(h, h.service.SolveSpecialPortfolios)(w, r)
}

// HandleFrontierChart handles POST /api/portfolio/frontier/chart?width=&height=
func (h *Handler) HandleFrontierChart(w http.ResponseWriter, r *http.Request) {
	width, ok := h.dimension(w, r, "width")
	if !ok {
		return
	}
	height, ok := h.dimension(w, r, "height")
	if !ok {
		return
	}

	var req analytics.FrontierRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.GenerateFrontier(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	png, err := h.renderer.RenderFrontier(charts.FrontierChart{
		Frontier:        resp.Points,
		Cloud:           resp.FeasibleSet,
		Tangency:        &resp.Special.Tangency,
		MinimumVariance: &resp.Special.MinimumVariance,
		RiskFreeRate:    resp.RiskFreeRate,
		Width:           width,
		Height:          height,
	})
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Run-ID", resp.Metadata.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart")
	}
}

func (h *Handler) dimension(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 100 || v > 4000 {
		utils.BadRequest(w, name, name+" must be an integer between 100 and 4000", h.log)
		return 0, false
	}
	return v, true
}
