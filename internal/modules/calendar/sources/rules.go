package sources

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	cal "github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/aristath/tradecal/internal/modules/calendar"
	"github.com/aristath/tradecal/internal/modules/market"
)

const (
	// NYSE closed on Juneteenth from 2022 onwards
	juneteenthFirstYear = 2022
	maxRuleYears        = 200
)

// earlyClose is the NYSE half-day close, local time
var earlyClose = civil.Time{Hour: 13}

// RulesSource generates US exchange closures and half days from holiday rules
// instead of reading a dataset.
type RulesSource struct {
	fromYear int
	toYear   int
	holidays *cal.BusinessCalendar
}

// NewRulesSource creates a generator for the inclusive year range
func NewRulesSource(fromYear, toYear int) *RulesSource {
	holidays := cal.NewBusinessCalendar()
	holidays.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)

	return &RulesSource{
		fromYear: fromYear,
		toYear:   toYear,
		holidays: holidays,
	}
}

// Name implements calendar.Source
func (s *RulesSource) Name() string { return "rules" }

// Load implements calendar.Source
func (s *RulesSource) Load(ctx context.Context) (*calendar.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.Records()
	if err != nil {
		return nil, err
	}

	reg, err := calendar.NewRegistry(records)
	if err != nil {
		return nil, fmt.Errorf("rules source: %w", err)
	}
	return reg.WithSource(s.Name()), nil
}

// Records returns the generated US records ordered by date
func (s *RulesSource) Records() ([]calendar.Record, error) {
	if s.toYear < s.fromYear {
		return nil, fmt.Errorf("rules source: year range %d..%d is empty", s.fromYear, s.toYear)
	}
	if s.toYear-s.fromYear >= maxRuleYears {
		return nil, fmt.Errorf("rules source: year range %d..%d exceeds %d years", s.fromYear, s.toYear, maxRuleYears)
	}

	records := make([]calendar.Record, 0, (s.toYear-s.fromYear+1)*13)
	for year := s.fromYear; year <= s.toYear; year++ {
		records = append(records, s.yearRecords(year)...)
	}
	return records, nil
}

func (s *RulesSource) yearRecords(year int) []calendar.Record {
	closed := make(map[civil.Date]bool)
	goodFriday := civil.DateOf(goodFriday(year))

	var records []calendar.Record
	add := func(d civil.Date, status calendar.TradeDayStatus) {
		records = append(records, calendar.Record{
			Market:   market.US,
			TimeZone: market.US.TimeZone(),
			Date:     d,
			Status:   status,
		})
	}

	day := civil.Date{Year: year, Month: time.January, Day: 1}
	for ; day.Year == year; day = day.AddDays(1) {
		if calendar.IsWeekend(day) {
			continue
		}
		if day == goodFriday || s.observedClosure(day) {
			closed[day] = true
			add(day, calendar.Closed())
			continue
		}
		if s.isEarlyClose(day, closed) {
			add(day, calendar.HalfDay(earlyClose))
		}
	}

	return records
}

// observedClosure reports whether the exchange is closed for an observed holiday on d
func (s *RulesSource) observedClosure(d civil.Date) bool {
	_, observed, h := s.holidays.IsHoliday(d.In(time.UTC))
	if !observed || h == nil {
		return false
	}
	// A Saturday New Year is not moved back into December
	if h == us.NewYear && d.Month == time.December {
		return false
	}
	if h == us.Juneteenth && d.Year < juneteenthFirstYear {
		return false
	}
	return true
}

// isEarlyClose covers July 3, the day after Thanksgiving and Christmas Eve.
// Days before d in the same year are already in closed.
func (s *RulesSource) isEarlyClose(d civil.Date, closed map[civil.Date]bool) bool {
	switch {
	case d.Month == time.July && d.Day == 3:
		return true
	case d.Month == time.December && d.Day == 24:
		return true
	case d.Month == time.November:
		prev := d.AddDays(-1)
		_, observed, h := s.holidays.IsHoliday(prev.In(time.UTC))
		return observed && h == us.ThanksgivingDay && closed[prev]
	}
	return false
}

// goodFriday returns the Friday before Gregorian Easter
func goodFriday(year int) time.Time {
	return gregorianEaster(year).AddDate(0, 0, -2)
}

// gregorianEaster computes Western Easter with the anonymous Gregorian computus
func gregorianEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
