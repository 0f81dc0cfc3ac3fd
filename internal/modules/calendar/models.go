// Package calendar holds the non-trading-day registry and the trading-day evaluator.
//
// Every date in this package is a civil.Date in the market's own local calendar.
// Absolute instants only appear at the evaluator boundary, where they are localised
// into the market's time zone before any date logic runs.
package calendar

import (
	"cloud.google.com/go/civil"

	"github.com/aristath/tradecal/internal/modules/market"
)

// StatusKind distinguishes the two kinds of exception record
type StatusKind int

const (
	// StatusClosed means no trading session at all
	StatusClosed StatusKind = iota + 1
	// StatusHalfDay means an abbreviated session ending at CloseTime
	StatusHalfDay
)

// TradeDayStatus is the status carried by a non-trading-day record.
type TradeDayStatus struct {
	Kind      StatusKind
	CloseTime civil.Time // Local time-of-day, only meaningful for StatusHalfDay
}

// Closed returns the full-closure status.
func Closed() TradeDayStatus {
	return TradeDayStatus{Kind: StatusClosed}
}

// HalfDay returns a half-day status closing at the given local time.
func HalfDay(closeTime civil.Time) TradeDayStatus {
	return TradeDayStatus{Kind: StatusHalfDay, CloseTime: closeTime}
}

// IsClosed reports whether the status is a full closure.
func (s TradeDayStatus) IsClosed() bool { return s.Kind == StatusClosed }

// IsHalfDay reports whether the status is a half day.
func (s TradeDayStatus) IsHalfDay() bool { return s.Kind == StatusHalfDay }

// Key identifies at most one record in a registry.
type Key struct {
	Market market.Market
	Date   civil.Date
}

// Record is one exception entry of the dataset.
type Record struct {
	Market   market.Market
	TimeZone string // Provenance label from the dataset; never used to reinterpret Date
	Date     civil.Date
	Status   TradeDayStatus
}

// Key returns the record's registry key.
func (r Record) Key() Key {
	return Key{Market: r.Market, Date: r.Date}
}

// DayKind is the evaluator's classification of a local date.
type DayKind int

const (
	FullTradingDay DayKind = iota
	ClosedDay
	HalfTradingDay
)

func (k DayKind) String() string {
	switch k {
	case FullTradingDay:
		return "full"
	case ClosedDay:
		return "closed"
	case HalfTradingDay:
		return "half"
	default:
		return "unknown"
	}
}

// Verdict is the result of classifying an instant for a market.
type Verdict struct {
	Market    market.Market
	Date      civil.Date // Local calendar date the instant falls on
	Kind      DayKind
	CloseTime civil.Time // Set for HalfTradingDay
	Weekend   bool       // Closed by the weekend rule rather than by a record
}

// Status returns the exception status behind the verdict. The second result is false
// for a full trading day.
func (v Verdict) Status() (TradeDayStatus, bool) {
	switch v.Kind {
	case ClosedDay:
		return Closed(), true
	case HalfTradingDay:
		return HalfDay(v.CloseTime), true
	default:
		return TradeDayStatus{}, false
	}
}

// IsTradeDay reports whether any session happens on the verdict's date.
func (v Verdict) IsTradeDay() bool {
	return v.Kind != ClosedDay
}
