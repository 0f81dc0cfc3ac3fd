package calendar

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/aristath/tradecal/internal/modules/market"
)

var (
	// ErrMalformedStatus wraps every status grammar failure
	ErrMalformedStatus = errors.New("malformed status")
	// ErrMalformedDate wraps every date parse failure
	ErrMalformedDate = errors.New("malformed date")
	// ErrFieldCount is returned for rows that do not match the header width
	ErrFieldCount = errors.New("wrong number of fields")
	// ErrMissingColumn is returned when the header lacks a required column
	ErrMissingColumn = errors.New("missing required column")
	// ErrDuplicateKey is matched by every DuplicateKeyError
	ErrDuplicateKey = errors.New("duplicate market/date record")
	// ErrInvalidRecord is returned by NewRegistry for records with an invalid market or status
	ErrInvalidRecord = errors.New("invalid record")
)

// MalformedRecordError reports the first row of a dataset that could not be parsed.
type MalformedRecordError struct {
	Row int      // 1-based data row index, header excluded
	Raw []string // Raw fields as read
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("row %d [%s]: %v", e.Row, strings.Join(e.Raw, ","), e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// DuplicateKeyError reports a second record for a market/date pair already seen.
type DuplicateKeyError struct {
	Market   market.Market
	Date     civil.Date
	FirstRow int
	Row      int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("row %d: duplicate record for %s %s (first seen at row %d)",
		e.Row, e.Market, e.Date, e.FirstRow)
}

// Is reports whether target is ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
