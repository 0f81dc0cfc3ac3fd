package calendar

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/aristath/tradecal/internal/modules/market"
)

// maxSearchDays bounds the next-trading-day search
const maxSearchDays = 366

// Evaluator classifies instants against a market's local calendar.
type Evaluator struct {
	provider Provider
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces the wall clock used by the *Now methods.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator creates an evaluator reading its registry from p on every query.
func NewEvaluator(p Provider, opts ...Option) *Evaluator {
	e := &Evaluator{
		provider: p,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify returns the verdict for the market's local date containing at.
func (e *Evaluator) Classify(m market.Market, at time.Time) Verdict {
	return e.classifyDate(e.registry(), m, LocalDate(m, at))
}

// ClassifyNow classifies the current instant.
func (e *Evaluator) ClassifyNow(m market.Market) Verdict {
	return e.Classify(m, e.now())
}

// IsTradeDay reports whether the market holds any session on the local date containing
// at. Half days count as trading days.
func (e *Evaluator) IsTradeDay(m market.Market, at time.Time) bool {
	return e.Classify(m, at).IsTradeDay()
}

// IsTradeDayNow reports whether today is a trading day in the market's time zone.
func (e *Evaluator) IsTradeDayNow(m market.Market) bool {
	return e.IsTradeDay(m, e.now())
}

// NextTradingDay returns the first trading day strictly after the local date of at.
// The second result is false if none is found within a year.
func (e *Evaluator) NextTradingDay(m market.Market, at time.Time) (civil.Date, bool) {
	reg := e.registry()
	date := LocalDate(m, at)
	for i := 0; i < maxSearchDays; i++ {
		date = date.AddDays(1)
		if e.classifyDate(reg, m, date).IsTradeDay() {
			return date, true
		}
	}
	return civil.Date{}, false
}

// LocalDate returns the calendar date of at in the market's time zone.
func LocalDate(m market.Market, at time.Time) civil.Date {
	return civil.DateOf(at.In(m.Location()))
}

func (e *Evaluator) registry() *Registry {
	if e.provider == nil {
		return nil
	}
	return e.provider.Current()
}

func (e *Evaluator) classifyDate(reg *Registry, m market.Market, date civil.Date) Verdict {
	v := Verdict{Market: m, Date: date, Kind: FullTradingDay}

	if IsWeekend(date) {
		v.Kind = ClosedDay
		v.Weekend = true
		return v
	}

	status, ok := reg.Lookup(m, date)
	if !ok {
		return v
	}
	switch status.Kind {
	case StatusClosed:
		v.Kind = ClosedDay
	case StatusHalfDay:
		v.Kind = HalfTradingDay
		v.CloseTime = status.CloseTime
	}
	return v
}

// IsWeekend reports whether a local calendar date is a Saturday or Sunday.
func IsWeekend(date civil.Date) bool {
	switch date.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
