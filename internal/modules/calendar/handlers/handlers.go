// Package handlers provides HTTP handlers for trading calendar queries.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/tradecal/internal/modules/calendar"
	"github.com/aristath/tradecal/internal/modules/market"
)

const (
	contentTypeMsgpack  = "application/msgpack"
	contentTypeXMsgpack = "application/x-msgpack"
)

// Handler handles trading calendar HTTP requests
type Handler struct {
	evaluator *calendar.Evaluator
	store     *calendar.Store
	now       func() time.Time
	log       zerolog.Logger
}

// NewHandler creates a new calendar handler over store
func NewHandler(store *calendar.Store, log zerolog.Logger) *Handler {
	return &Handler{
		evaluator: calendar.NewEvaluator(store),
		store:     store,
		now:       time.Now,
		log:       log.With().Str("handler", "calendar").Logger(),
	}
}

// WithClock replaces the handler clock; used when "at" is omitted
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

type marketDTO struct {
	Code     string `json:"code"`
	Country  string `json:"country"`
	TimeZone string `json:"timezone"`
	Name     string `json:"name"`
}

type verdictDTO struct {
	Market         string `json:"market"`
	TimeZone       string `json:"timezone"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
	CloseTime      string `json:"close_time,omitempty"`
	Weekend        bool   `json:"weekend"`
	IsTradeDay     bool   `json:"is_trade_day"`
	NextTradingDay string `json:"next_trading_day,omitempty"`
}

type recordDTO struct {
	Market   string `json:"market" msgpack:"market"`
	TimeZone string `json:"timezone" msgpack:"timezone"`
	Date     string `json:"date" msgpack:"date"`
	Status   string `json:"status" msgpack:"status"`
}

func toVerdictDTO(v calendar.Verdict) verdictDTO {
	dto := verdictDTO{
		Market:     v.Market.Code(),
		TimeZone:   v.Market.TimeZone(),
		Date:       v.Date.String(),
		Kind:       v.Kind.String(),
		Weekend:    v.Weekend,
		IsTradeDay: v.IsTradeDay(),
	}
	if v.Kind == calendar.HalfTradingDay {
		dto.CloseTime = v.CloseTime.String()
	}
	return dto
}

// HandleGetMarkets handles GET /api/calendar/markets
func (h *Handler) HandleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := make([]marketDTO, 0, len(market.All()))
	for _, m := range market.All() {
		markets = append(markets, marketDTO{
			Code:     m.Code(),
			Country:  string(m.Country()),
			TimeZone: m.TimeZone(),
			Name:     m.Name(),
		})
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"markets": markets,
		"count":   len(markets),
	}))
}

// HandleGetStatus handles GET /api/calendar/status
// Returns the verdict for every market at the requested instant
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	at, err := h.parseAt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	verdicts := make([]verdictDTO, 0, len(market.All()))
	for _, m := range market.All() {
		verdicts = append(verdicts, toVerdictDTO(h.evaluator.Classify(m, at)))
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"at":      at.UTC().Format(time.RFC3339),
		"markets": verdicts,
	}))
}

// HandleGetMarketStatus handles GET /api/calendar/status/{market}
func (h *Handler) HandleGetMarketStatus(w http.ResponseWriter, r *http.Request, code string) {
	m, at, ok := h.marketAndInstant(w, r, code)
	if !ok {
		return
	}

	dto := toVerdictDTO(h.evaluator.Classify(m, at))
	if next, found := h.evaluator.NextTradingDay(m, at); found {
		dto.NextTradingDay = next.String()
	}

	h.writeJSON(w, http.StatusOK, envelope(dto))
}

// HandleGetTradeDay handles GET /api/calendar/trade-day/{market}
func (h *Handler) HandleGetTradeDay(w http.ResponseWriter, r *http.Request, code string) {
	m, at, ok := h.marketAndInstant(w, r, code)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"market":       m.Code(),
		"date":         calendar.LocalDate(m, at).String(),
		"is_trade_day": h.evaluator.IsTradeDay(m, at),
	}))
}

// HandleGetRecords handles GET /api/calendar/records
// Encodes as msgpack when the client asks for it
func (h *Handler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	reg := h.store.Current()

	var records []calendar.Record
	if code := r.URL.Query().Get("market"); code != "" {
		m, err := market.Parse(code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records = reg.RecordsFor(m)
	} else {
		records = reg.Records()
	}

	out := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, recordDTO{
			Market:   rec.Market.Code(),
			TimeZone: rec.TimeZone,
			Date:     rec.Date.String(),
			Status:   rec.Status.String(),
		})
	}

	if wantsMsgpack(r) {
		h.writeMsgpack(w, http.StatusOK, map[string]interface{}{
			"snapshot": reg.ID().String(),
			"records":  out,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"snapshot": reg.ID().String(),
		"records":  out,
		"count":    len(out),
	}))
}

// HandleGetSnapshot handles GET /api/calendar/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, envelope(snapshotData(h.store.Current())))
}

// HandleReload handles POST /api/calendar/reload
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	reg, err := h.store.Reload(r.Context())
	if err != nil {
		if errors.Is(err, calendar.ErrNoSource) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Msg("Failed to reload calendar")
		http.Error(w, fmt.Sprintf("Failed to reload calendar: %v", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(snapshotData(reg)))
}

func snapshotData(reg *calendar.Registry) map[string]interface{} {
	return map[string]interface{}{
		"id":        reg.ID().String(),
		"loaded_at": reg.LoadedAt().Format(time.RFC3339),
		"source":    reg.Source(),
		"records":   reg.Len(),
	}
}

func (h *Handler) marketAndInstant(w http.ResponseWriter, r *http.Request, code string) (market.Market, time.Time, bool) {
	m, err := market.Parse(code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, time.Time{}, false
	}
	at, err := h.parseAt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, time.Time{}, false
	}
	return m, at, true
}

// parseAt reads the optional RFC 3339 "at" query parameter
func (h *Handler) parseAt(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return h.now(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid at %q: want RFC 3339", raw)
	}
	return at, nil
}

func wantsMsgpack(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, contentTypeMsgpack) || strings.Contains(accept, contentTypeXMsgpack)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeMsgpack writes a msgpack response
func (h *Handler) writeMsgpack(w http.ResponseWriter, status int, data interface{}) {
	body, err := msgpack.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to write msgpack response")
	}
}
