// Package handlers provides HTTP handlers for price history ingest and reads.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/utils"
)

// maxIngestBytes bounds a PUT body
const maxIngestBytes = 32 << 20

// Handler handles price history HTTP requests
type Handler struct {
	historyDB *history.HistoryDB
	log       zerolog.Logger
}

// NewHandler creates a new price history handler
func NewHandler(historyDB *history.HistoryDB, log zerolog.Logger) *Handler {
	return &Handler{
		historyDB: historyDB,
		log:       log.With().Str("handler", "history").Logger(),
	}
}

// PriceBar is one bar on the wire; date is YYYY-MM-DD
type PriceBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// IngestRequest is the PUT body
type IngestRequest struct {
	Prices []PriceBar `json:"prices"`
}

// HandleListSymbols handles GET /api/history
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.historyDB.ListSymbols(r.Context())
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	}, h.log)
}

// HandleGetPrices handles GET /api/history/{symbol}?start=&end=
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	start, err := utils.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		utils.BadRequest(w, "start", err.Error(), h.log)
		return
	}
	end, err := utils.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		utils.BadRequest(w, "end", err.Error(), h.log)
		return
	}

	symbol = history.NormalizeSymbol(symbol)
	prices, err := h.historyDB.GetDailyPrices(r.Context(), symbol, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get daily prices")
		utils.WriteError(w, err, h.log)
		return
	}
	if prices == nil {
		prices = []domain.DailyPrice{}
	}

	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"series": domain.AssetSeries{Symbol: symbol, Prices: prices},
		"count":  len(prices),
	}, h.log)
}

// HandlePutPrices handles PUT /api/history/{symbol}
func (h *Handler) HandlePutPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	var req IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.BadRequest(w, "", "invalid request body: "+err.Error(), h.log)
		return
	}
	if len(req.Prices) == 0 {
		utils.BadRequest(w, "prices", "at least one price is required", h.log)
		return
	}

	prices := make([]domain.DailyPrice, len(req.Prices))
	for i, b := range req.Prices {
		date, err := utils.ParseDate(b.Date)
		if err != nil || date.IsZero() {
			utils.BadRequest(w, "date", "price "+b.Date+" has an invalid date", h.log)
			return
		}
		prices[i] = domain.DailyPrice{
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	n, err := h.historyDB.UpsertPrices(r.Context(), symbol, prices)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.log.Info().Str("symbol", history.NormalizeSymbol(symbol)).Int("count", n).Msg("Ingested daily prices")
	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"symbol": history.NormalizeSymbol(symbol),
		"count":  n,
	}, h.log)
}
