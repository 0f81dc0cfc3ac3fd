package calendar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/aristath/tradecal/internal/modules/market"
)

// Dataset column names, matched case-insensitively
const (
	ColumnMarket   = "market"
	ColumnTimeZone = "timezone"
	ColumnDate     = "date"
	ColumnStatus   = "status"
)

var requiredColumns = []string{ColumnMarket, ColumnTimeZone, ColumnDate, ColumnStatus}

// RowReader yields dataset rows; the first row is the header. It returns io.EOF after
// the last row. *csv.Reader satisfies it.
type RowReader interface {
	Read() ([]string, error)
}

// Provider hands out the registry an evaluator should consult.
type Provider interface {
	Current() *Registry
}

// Registry is an immutable index of non-trading-day records keyed by market and
// local date. It is safe for concurrent use.
type Registry struct {
	id       uuid.UUID
	loadedAt time.Time
	source   string
	records  map[Key]Record
}

// Load parses a CSV dataset with a header row into a registry. The whole load fails on
// the first bad row; an empty stream yields an empty registry.
func Load(r io.Reader) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return LoadRows(reader)
}

// LoadRows builds a registry from any header-first row source.
func LoadRows(rows RowReader) (*Registry, error) {
	header, err := rows.Read()
	if errors.Is(err, io.EOF) {
		return newRegistry(map[Key]Record{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	for row := 1; ; row++ {
		fields, err := rows.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedRecordError{Row: row, Err: err}
		}

		rec, err := parseRow(fields, len(header), columns)
		if err != nil {
			return nil, &MalformedRecordError{Row: row, Raw: fields, Err: err}
		}
		if err := b.add(row, rec); err != nil {
			return nil, err
		}
	}

	return newRegistry(b.records), nil
}

// NewRegistry builds a registry from typed records, applying the same validity and
// duplicate rules as Load. Row numbers in errors are 1-based slice positions.
func NewRegistry(records []Record) (*Registry, error) {
	b := newBuilder()
	for i, rec := range records {
		row := i + 1
		if !rec.Market.Valid() {
			return nil, fmt.Errorf("record %d: %w: market %v", row, ErrInvalidRecord, rec.Market)
		}
		if rec.Status.Kind != StatusClosed && rec.Status.Kind != StatusHalfDay {
			return nil, fmt.Errorf("record %d: %w: status kind %d", row, ErrInvalidRecord, int(rec.Status.Kind))
		}
		if !rec.Date.IsValid() {
			return nil, fmt.Errorf("record %d: %w: date %v", row, ErrInvalidRecord, rec.Date)
		}
		if err := b.add(row, rec); err != nil {
			return nil, err
		}
	}
	return newRegistry(b.records), nil
}

func newRegistry(records map[Key]Record) *Registry {
	return &Registry{
		id:       uuid.New(),
		loadedAt: time.Now(),
		records:  records,
	}
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w %q in header [%s]", ErrMissingColumn, name, strings.Join(header, ","))
		}
	}
	return columns, nil
}

func parseRow(fields []string, width int, columns map[string]int) (Record, error) {
	if len(fields) != width {
		return Record{}, fmt.Errorf("%w: got %d, header has %d", ErrFieldCount, len(fields), width)
	}
	field := func(name string) string {
		return strings.TrimSpace(fields[columns[name]])
	}

	m, err := market.Parse(field(ColumnMarket))
	if err != nil {
		return Record{}, err
	}
	date, err := parseDate(field(ColumnDate))
	if err != nil {
		return Record{}, err
	}
	status, err := ParseStatus(field(ColumnStatus))
	if err != nil {
		return Record{}, err
	}

	return Record{
		Market:   m,
		TimeZone: field(ColumnTimeZone),
		Date:     date,
		Status:   status,
	}, nil
}

type builder struct {
	records map[Key]Record
	rows    map[Key]int
}

func newBuilder() *builder {
	return &builder{
		records: make(map[Key]Record),
		rows:    make(map[Key]int),
	}
}

func (b *builder) add(row int, rec Record) error {
	key := rec.Key()
	if first, ok := b.rows[key]; ok {
		return &DuplicateKeyError{Market: rec.Market, Date: rec.Date, FirstRow: first, Row: row}
	}
	b.records[key] = rec
	b.rows[key] = row
	return nil
}

// Lookup returns the exception status for an exact market and local date. The second
// result is false when the date has no record.
func (r *Registry) Lookup(m market.Market, date civil.Date) (TradeDayStatus, bool) {
	if r == nil {
		return TradeDayStatus{}, false
	}
	rec, ok := r.records[Key{Market: m, Date: date}]
	if !ok {
		return TradeDayStatus{}, false
	}
	return rec.Status, true
}

// Current lets a fixed registry act as its own Provider.
func (r *Registry) Current() *Registry { return r }

// Len returns the number of records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// ID identifies this snapshot; every load produces a new one. A nil registry has
// uuid.Nil.
func (r *Registry) ID() uuid.UUID {
	if r == nil {
		return uuid.Nil
	}
	return r.id
}

// LoadedAt returns when the snapshot was built.
func (r *Registry) LoadedAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.loadedAt
}

// Source names where the snapshot came from; empty if never set.
func (r *Registry) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// WithSource returns a copy of the registry labelled with a source name. The records
// are shared since neither copy can modify them. A nil registry yields a new empty one.
func (r *Registry) WithSource(name string) *Registry {
	if r == nil {
		r = newRegistry(map[Key]Record{})
	}
	cp := *r
	cp.source = name
	return &cp
}

// Records returns every record ordered by market, then date.
func (r *Registry) Records() []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}

// RecordsFor returns the records of one market ordered by date.
func (r *Registry) RecordsFor(m market.Market) []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0)
	for _, rec := range r.records {
		if rec.Market == m {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Market != records[j].Market {
			return records[i].Market < records[j].Market
		}
		return records[i].Date.Before(records[j].Date)
	})
}
