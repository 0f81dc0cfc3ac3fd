// Package market defines the closed set of markets the trading calendar knows about.
//
// A Market is a small tag; everything else about it (short code, country, time zone)
// comes from a static table. Adding a market means adding a constant and a table row.
package market

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "time/tzdata" // Time zones must resolve on hosts without a zoneinfo database
)

// Market identifies a supported exchange jurisdiction. The zero value is not a market.
type Market uint8

const (
	US Market = iota + 1
	HK
	CN
	SG
)

// CountryCode is an ISO 3166-1 alpha-2 country code.
type CountryCode string

type info struct {
	code     string
	country  CountryCode
	timezone string
	name     string
}

// table is indexed by Market; index 0 is the invalid zero value
var table = [...]info{
	{},
	US: {code: "US", country: "US", timezone: "America/New_York", name: "United States"},
	HK: {code: "HK", country: "HK", timezone: "Asia/Hong_Kong", name: "Hong Kong"},
	CN: {code: "CN", country: "CN", timezone: "Asia/Shanghai", name: "China"},
	SG: {code: "SG", country: "SG", timezone: "Asia/Singapore", name: "Singapore"},
}

// ErrUnknownMarket is matched by every UnknownMarketError.
var ErrUnknownMarket = errors.New("unknown market")

// UnknownMarketError is returned when a code does not name a supported market.
type UnknownMarketError struct {
	Code string
}

func (e *UnknownMarketError) Error() string {
	return fmt.Sprintf("unknown market %q", e.Code)
}

// Is reports whether target is ErrUnknownMarket.
func (e *UnknownMarketError) Is(target error) bool {
	return target == ErrUnknownMarket
}

// Parse resolves a short code in any letter case. Anything else, including
// surrounding whitespace, is an unknown market.
func Parse(code string) (Market, error) {
	normalized := strings.ToUpper(code)
	for m := US; int(m) < len(table); m++ {
		if table[m].code == normalized {
			return m, nil
		}
	}
	return 0, &UnknownMarketError{Code: code}
}

// All returns every supported market in table order.
func All() []Market {
	markets := make([]Market, 0, len(table)-1)
	for m := US; int(m) < len(table); m++ {
		markets = append(markets, m)
	}
	return markets
}

// Valid reports whether m is one of the supported markets.
func (m Market) Valid() bool {
	return m > 0 && int(m) < len(table)
}

func (m Market) info() info {
	if !m.Valid() {
		return info{}
	}
	return table[m]
}

// Code returns the stable short code, e.g. "HK".
func (m Market) Code() string { return m.info().code }

// Country returns the market's ISO country code.
func (m Market) Country() CountryCode { return m.info().country }

// TimeZone returns the IANA time zone name.
func (m Market) TimeZone() string { return m.info().timezone }

// Name returns a human readable name.
func (m Market) Name() string { return m.info().name }

func (m Market) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Market(%d)", uint8(m))
	}
	return m.Code()
}

var (
	locationsOnce sync.Once
	locations     []*time.Location
)

// Location returns the market's time zone. Invalid markets get UTC.
func (m Market) Location() *time.Location {
	locationsOnce.Do(func() {
		locations = make([]*time.Location, len(table))
		for i := 1; i < len(table); i++ {
			loc, err := time.LoadLocation(table[i].timezone)
			if err != nil {
				// tzdata is embedded, so a failure here is a typo in the table
				panic(fmt.Sprintf("market %s: load time zone %q: %v", table[i].code, table[i].timezone, err))
			}
			locations[i] = loc
		}
	})
	if !m.Valid() {
		return time.UTC
	}
	return locations[m]
}

// MarshalText encodes the market as its short code.
func (m Market) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("marshal market: invalid value %d", uint8(m))
	}
	return []byte(m.Code()), nil
}

// UnmarshalText decodes a short code in any letter case.
func (m *Market) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
