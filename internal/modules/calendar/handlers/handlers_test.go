package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/tradecal/internal/modules/calendar"
)

const sampleCSV = `market,timezone,date,status
HK,Asia/Hong_Kong,2024-01-02,Close
SG,Asia/Singapore,2024-01-03,Half(17:00:01)
`

type stubSource struct {
	data string
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) (*calendar.Registry, error) {
	if s.err != nil {
		return nil, s.err
	}
	reg, err := calendar.Load(strings.NewReader(s.data))
	if err != nil {
		return nil, err
	}
	return reg.WithSource(s.Name()), nil
}

func setupRouter(t *testing.T, source calendar.Source) (*chi.Mux, *calendar.Store) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	reg, err := calendar.Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	store := calendar.NewStore(reg.WithSource("test"), source, logger)

	handler := NewHandler(store, logger).WithClock(func() time.Time {
		return time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC)
	})

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, store
}

func doRequest(router http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Contains(t, response, "metadata")
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data should be an object")
	return data
}

func TestHandleGetMarkets(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/calendar/markets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	data := decodeData(t, w)
	assert.Equal(t, float64(4), data["count"])
	markets := data["markets"].([]interface{})
	first := markets[0].(map[string]interface{})
	assert.Equal(t, "US", first["code"])
	assert.Equal(t, "America/New_York", first["timezone"])
}

func TestHandleGetStatus(t *testing.T) {
	router, _ := setupRouter(t, nil)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "defaults to now",
			target:         "/calendar/status",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := decodeData(t, w)
				assert.Equal(t, "2024-01-02T04:00:00Z", data["at"])

				kinds := map[string]string{}
				for _, raw := range data["markets"].([]interface{}) {
					m := raw.(map[string]interface{})
					kinds[m["market"].(string)] = m["kind"].(string)
				}
				assert.Equal(t, map[string]string{"US": "full", "HK": "closed", "CN": "full", "SG": "full"}, kinds)
			},
		},
		{
			name:           "explicit instant",
			target:         "/calendar/status?at=2024-01-03T06:00:00Z",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := decodeData(t, w)
				for _, raw := range data["markets"].([]interface{}) {
					m := raw.(map[string]interface{})
					if m["market"] == "SG" {
						assert.Equal(t, "half", m["kind"])
						assert.Equal(t, "17:00:01", m["close_time"])
						assert.Equal(t, true, m["is_trade_day"])
					}
				}
			},
		},
		{
			name:           "bad instant",
			target:         "/calendar/status?at=yesterday",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}
}

func TestHandleGetMarketStatus(t *testing.T) {
	router, _ := setupRouter(t, nil)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "HK closed with next trading day",
			target:         "/calendar/status/hk",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "HK", data["market"])
				assert.Equal(t, "2024-01-02", data["date"])
				assert.Equal(t, "closed", data["kind"])
				assert.Equal(t, false, data["weekend"])
				assert.Equal(t, false, data["is_trade_day"])
				assert.Equal(t, "2024-01-03", data["next_trading_day"])
			},
		},
		{
			name:           "weekend",
			target:         "/calendar/status/SG?at=2024-01-06T06:00:00Z",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "closed", data["kind"])
				assert.Equal(t, true, data["weekend"])
				assert.Equal(t, "2024-01-08", data["next_trading_day"])
			},
		},
		{
			name:           "unknown market",
			target:         "/calendar/status/XX",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				tt.validate(t, decodeData(t, w))
			}
		})
	}
}

func TestHandleGetTradeDay(t *testing.T) {
	router, _ := setupRouter(t, nil)

	tests := []struct {
		target   string
		date     string
		expected bool
	}{
		{"/calendar/trade-day/HK?at=2024-01-02T04:00:00Z", "2024-01-02", false},
		{"/calendar/trade-day/SG?at=2024-01-03T06:00:00Z", "2024-01-03", true},
		{"/calendar/trade-day/US?at=2024-01-01T23:30:00Z", "2024-01-01", true},
		{"/calendar/trade-day/HK?at=2024-01-01T23:30:00Z", "2024-01-02", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			data := decodeData(t, w)
			assert.Equal(t, tt.date, data["date"])
			assert.Equal(t, tt.expected, data["is_trade_day"])
		})
	}

	w := doRequest(router, http.MethodGet, "/calendar/trade-day/JP", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetRecords(t *testing.T) {
	router, store := setupRouter(t, nil)

	t.Run("json", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/calendar/records", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, float64(2), data["count"])
		assert.Equal(t, store.Current().ID().String(), data["snapshot"])

		records := data["records"].([]interface{})
		first := records[0].(map[string]interface{})
		assert.Equal(t, "HK", first["market"])
		assert.Equal(t, "Close", first["status"])
	})

	t.Run("filtered", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/calendar/records?market=sg", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, float64(1), data["count"])
	})

	t.Run("unknown market", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/calendar/records?market=xx", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("msgpack", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/calendar/records?market=SG",
			http.Header{"Accept": []string{"application/msgpack"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/msgpack", w.Header().Get("Content-Type"))

		var payload struct {
			Snapshot string      `msgpack:"snapshot"`
			Records  []recordDTO `msgpack:"records"`
		}
		require.NoError(t, msgpack.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&payload))
		assert.Equal(t, store.Current().ID().String(), payload.Snapshot)
		require.Len(t, payload.Records, 1)
		assert.Equal(t, recordDTO{
			Market:   "SG",
			TimeZone: "Asia/Singapore",
			Date:     "2024-01-03",
			Status:   "Half(17:00:01)",
		}, payload.Records[0])
	})
}

func TestHandleGetSnapshot(t *testing.T) {
	router, store := setupRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/calendar/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, store.Current().ID().String(), data["id"])
	assert.Equal(t, "test", data["source"])
	assert.Equal(t, float64(2), data["records"])
	assert.NotEmpty(t, data["loaded_at"])
}

func TestHandleReload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, store := setupRouter(t, &stubSource{data: "market,timezone,date,status\nCN,Asia/Shanghai,2024-02-12,Close\n"})
		before := store.Current().ID()

		w := doRequest(router, http.MethodPost, "/calendar/reload", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "stub", data["source"])
		assert.Equal(t, float64(1), data["records"])
		assert.NotEqual(t, before, store.Current().ID())

		w = doRequest(router, http.MethodGet, "/calendar/trade-day/HK?at=2024-01-02T04:00:00Z", nil)
		assert.Equal(t, true, decodeData(t, w)["is_trade_day"])
	})

	t.Run("failure keeps snapshot", func(t *testing.T) {
		router, store := setupRouter(t, &stubSource{err: errors.New("bucket unavailable")})
		before := store.Current()

		w := doRequest(router, http.MethodPost, "/calendar/reload", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "bucket unavailable")
		assert.Same(t, before, store.Current())
	})

	t.Run("no source", func(t *testing.T) {
		router, _ := setupRouter(t, nil)
		w := doRequest(router, http.MethodPost, "/calendar/reload", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("method", func(t *testing.T) {
		router, _ := setupRouter(t, nil)
		w := doRequest(router, http.MethodGet, "/calendar/reload", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
