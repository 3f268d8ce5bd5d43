package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
	testutil "github.com/aristath/frontier/internal/testing"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, _ := testutil.NewTestDB(t, "history")

	logger := zerolog.Nop()
	historyDB := history.NewHistoryDB(db.Conn(), logger)
	for _, sym := range []struct {
		symbol      string
		freq, drift float64
	}{
		{"AAA", 0.6, 0.0009},
		{"BBB", 1.7, 0.0003},
		{"CCC", 2.9, 0.0006},
	} {
		_, err := historyDB.UpsertPrices(context.Background(), sym.symbol, testutil.SyntheticPrices(sym.freq, sym.drift, 120, 1))
		require.NoError(t, err)
	}

	service := analytics.NewService(historyDB, analytics.Options{Defaults: config.DefaultAnalytics()}, logger)
	handler := NewHandler(service, charts.NewRenderer(logger), logger)

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHandleSummary(t *testing.T) {
	r := setupRouter(t)

	w := post(t, r, "/api/analysis/summary", `{"tickers":["aaa","bbb"],"r_f":0.01}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Summary []struct {
			Ticker       string  `json:"ticker"`
			SharpeAnnual float64 `json:"sharpe_annual"`
		} `json:"summary"`
		RiskFreeRate float64 `json:"r_f"`
		Metadata     struct {
			RunID string `json:"run_id"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Summary, 2)
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, []string{resp.Summary[0].Ticker, resp.Summary[1].Ticker})
	assert.Equal(t, 0.01, resp.RiskFreeRate)
	assert.NotEmpty(t, resp.Metadata.RunID)
}

func TestHandleCorrelation_EmptyBodyUsesStoredSymbols(t *testing.T) {
	r := setupRouter(t)

	w := post(t, r, "/api/analysis/correlation", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Matrix struct {
			Symbols []string    `json:"symbols"`
			Values  [][]float64 `json:"values"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, resp.Matrix.Symbols)
	assert.Len(t, resp.Matrix.Values, 3)
}

func TestHandleOptimize(t *testing.T) {
	r := setupRouter(t)

	w := post(t, r, "/api/portfolio/optimize", `{"tickers":["AAA","BBB","CCC"],"allow_short":false,"optimization_method":"min_variance"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Method  string `json:"optimization_method"`
		Weights []struct {
			Symbol string  `json:"symbol"`
			Weight float64 `json:"weight"`
		} `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "min_variance", resp.Method)
	require.Len(t, resp.Weights, 3)
	sum := 0.0
	for _, e := range resp.Weights {
		assert.GreaterOrEqual(t, e.Weight, -1e-9)
		sum += e.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestErrorMapping(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
		field  string
	}{
		{"malformed json", "/api/analysis/returns", `{"tickers":`, http.StatusBadRequest, "validation", ""},
		{"unknown field", "/api/analysis/returns", `{"symbols":["AAA"]}`, http.StatusBadRequest, "validation", ""},
		{"bad method", "/api/analysis/returns", `{"tickers":["AAA"],"method":"cubic"}`, http.StatusBadRequest, "validation", "method"},
		{"bad date", "/api/analysis/returns", `{"tickers":["AAA"],"start_date":"01/02/2024"}`, http.StatusBadRequest, "validation", "start_date"},
		{"missing ticker", "/api/analysis/returns", `{"tickers":["AAA","NOPE"]}`, http.StatusUnprocessableEntity, "data", ""},
		{"missing target", "/api/portfolio/optimize", `{"tickers":["AAA","BBB"],"optimization_method":"target_return"}`, http.StatusBadRequest, "validation", "target_return"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, r, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decodeError(t, w)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.NotEmpty(t, body.Error.Message)
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Error.Field)
			}
		})
	}
}

func TestHandleFrontierChart(t *testing.T) {
	r := setupRouter(t)
	body := `{"tickers":["AAA","BBB","CCC"],"num_frontier_points":8,"num_samples":100}`

	w := post(t, r, "/api/portfolio/frontier/chart?width=640&height=400", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = post(t, r, "/api/portfolio/frontier/chart?width=20", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "width", decodeError(t, w).Error.Field)
}

func TestHandleFrontier(t *testing.T) {
	r := setupRouter(t)

	w := post(t, r, "/api/portfolio/frontier", `{"tickers":["AAA","BBB","CCC"],"num_frontier_points":5,"num_samples":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Frontier []struct {
			Risk float64 `json:"risk"`
		} `json:"frontier"`
		FeasibleSet []json.RawMessage `json:"feasible_set"`
		Special     struct {
			Tangency struct {
				Kind string `json:"kind"`
			} `json:"tangency"`
		} `json:"special_portfolios"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Frontier, 5)
	assert.Len(t, resp.FeasibleSet, 50)
	assert.Equal(t, "tangency", resp.Special.Tangency.Kind)
}
