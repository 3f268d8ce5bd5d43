package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/history"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Name: "history",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	handler := NewHandler(history.NewHistoryDB(db.Conn(), logger), logger)

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPutThenGetPrices(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPut, "/api/history/spy", `{"prices":[
		{"date":"2024-01-03","open":1,"high":1,"low":1,"close":101},
		{"date":"2024-01-02","open":1,"high":1,"low":1,"close":100,"volume":500}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var put struct {
		Data struct {
			Symbol string `json:"symbol"`
			Count  int    `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &put))
	assert.Equal(t, "SPY", put.Data.Symbol)
	assert.Equal(t, 2, put.Data.Count)

	w = do(t, r, http.MethodGet, "/api/history/SPY?start=2024-01-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data struct {
			Series struct {
				Symbol string `json:"symbol"`
				Prices []struct {
					Close  float64 `json:"close"`
					Volume *int64  `json:"volume"`
				} `json:"prices"`
			} `json:"series"`
			Count int `json:"count"`
		} `json:"data"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Data.Count)
	require.Len(t, got.Data.Series.Prices, 2)
	assert.Equal(t, 100.0, got.Data.Series.Prices[0].Close)
	require.NotNil(t, got.Data.Series.Prices[0].Volume)
	assert.NotEmpty(t, got.Metadata["timestamp"])

	w = do(t, r, http.MethodGet, "/api/history/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"SPY"`)
}

func TestPutPrices_BadRequests(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "malformed json", body: `{"prices":`, field: ""},
		{name: "empty prices", body: `{"prices":[]}`, field: "prices"},
		{name: "bad date", body: `{"prices":[{"date":"03/01/2024","close":1}]}`, field: "date"},
		{name: "negative close", body: `{"prices":[{"date":"2024-01-03","close":-1}]}`, field: "prices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPut, "/api/history/SPY", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp struct {
				Error struct {
					Kind  string `json:"kind"`
					Field string `json:"field"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "validation", resp.Error.Kind)
			assert.Equal(t, tt.field, resp.Error.Field)
		})
	}
}

func TestGetPrices_InvalidRange(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/api/history/SPY?end=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"end"`)
}
