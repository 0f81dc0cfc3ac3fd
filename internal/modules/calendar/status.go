package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	closeToken  = "Close"
	halfPrefix  = "Half("
	halfSuffix  = ")"
	clockLayout = "15:04:05"
	clockLength = len("00:00:00")
	dateLength  = len("0000-00-00")
)

// ParseStatus decodes the dataset status grammar: "Close" or "Half(HH:MM:SS)".
func ParseStatus(s string) (TradeDayStatus, error) {
	if s == closeToken {
		return Closed(), nil
	}
	if strings.HasPrefix(s, halfPrefix) && strings.HasSuffix(s, halfSuffix) {
		clock := s[len(halfPrefix) : len(s)-len(halfSuffix)]
		t, err := parseClock(clock)
		if err != nil {
			return TradeDayStatus{}, fmt.Errorf("%w %q: %v", ErrMalformedStatus, s, err)
		}
		return HalfDay(t), nil
	}
	return TradeDayStatus{}, fmt.Errorf("%w %q: want %q or %q", ErrMalformedStatus, s, closeToken, "Half(HH:MM:SS)")
}

// String encodes the status in the dataset grammar.
func (s TradeDayStatus) String() string {
	switch s.Kind {
	case StatusClosed:
		return closeToken
	case StatusHalfDay:
		return halfPrefix + formatClock(s.CloseTime) + halfSuffix
	default:
		return fmt.Sprintf("StatusKind(%d)", int(s.Kind))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TradeDayStatus) MarshalText() ([]byte, error) {
	if s.Kind != StatusClosed && s.Kind != StatusHalfDay {
		return nil, fmt.Errorf("marshal status: invalid kind %d", int(s.Kind))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TradeDayStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// parseClock accepts exactly HH:MM:SS with two-digit fields.
func parseClock(s string) (civil.Time, error) {
	if len(s) != clockLength {
		return civil.Time{}, fmt.Errorf("time %q is not HH:MM:SS", s)
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return civil.Time{}, err
	}
	return civil.TimeOf(t), nil
}

func formatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// parseDate accepts exactly YYYY-MM-DD.
func parseDate(s string) (civil.Date, error) {
	if len(s) != dateLength {
		return civil.Date{}, fmt.Errorf("%w %q: want YYYY-MM-DD", ErrMalformedDate, s)
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w %q: %v", ErrMalformedDate, s, err)
	}
	return d, nil
}
