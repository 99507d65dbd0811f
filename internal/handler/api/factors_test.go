package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FeedRelay/internal/domain/models"
	"FeedRelay/internal/usecase"
	"FeedRelay/pkg/http/middleware"
	xlogger "FeedRelay/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(limiter *middleware.Limiter, connected bool) (*echo.Echo, *models.FactorSnapshot) {
	store := usecase.NewMemoryFactorStore()
	ts := models.TS(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f := &models.FactorSnapshot{
		Exchange:   "binance",
		Symbol:     "BTC-USDT",
		MidPrice:   decimal.RequireFromString("100.25"),
		Spread:     decimal.RequireFromString("0.5"),
		Imbalance5: decimal.RequireFromString("0.2"),
		EventTs:    ts,
	}
	store.Put(f)

	e := echo.New()
	NewFactorsHandler(xlogger.Nop(), store, limiter).RegisterRoutes(e)
	NewHealthHandler(func() bool { return connected }).RegisterRoutes(e)
	return e, f
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetFactor(t *testing.T) {
	e, _ := newTestEcho(nil, true)

	rec := get(e, "/v1/factors/BINANCE/btc-usdt")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Contains(t, string(body.Data), `"mid_price":100.25`)
	assert.Contains(t, string(body.Data), `"symbol":"BTC-USDT"`)
}

func TestGetFactorNotFound(t *testing.T) {
	e, _ := newTestEcho(nil, true)

	rec := get(e, "/v1/factors/okx/BTC-USDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFactorRejectsBadExchange(t *testing.T) {
	e, _ := newTestEcho(nil, true)

	rec := get(e, "/v1/factors/bin4nce/BTC-USDT")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_ALPHA")
}

func TestListFactors(t *testing.T) {
	e, _ := newTestEcho(nil, true)

	rec := get(e, "/v1/factors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"exchange":"binance"`)
}

func TestFactorsRateLimited(t *testing.T) {
	e, _ := newTestEcho(middleware.NewLimiter(1, 0), true)

	assert.Equal(t, http.StatusOK, get(e, "/v1/factors").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/v1/factors").Code)
}

func TestHealth(t *testing.T) {
	up, _ := newTestEcho(nil, true)
	assert.Equal(t, http.StatusOK, get(up, "/healthz").Code)

	down, _ := newTestEcho(nil, false)
	rec := get(down, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"feed_connected":false`)
}
