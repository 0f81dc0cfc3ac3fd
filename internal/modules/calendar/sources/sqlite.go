package sources

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/database"
	"github.com/aristath/tradecal/internal/modules/calendar"
)

// SQLiteSource reads the dataset from the non_trading_days table
type SQLiteSource struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteSource creates a source over a migrated calendar database
func NewSQLiteSource(db *database.DB, log zerolog.Logger) *SQLiteSource {
	return &SQLiteSource{
		db:  db,
		log: log.With().Str("source", "sqlite").Logger(),
	}
}

// Name implements calendar.Source
func (s *SQLiteSource) Name() string { return "sqlite" }

// DB returns the underlying database
func (s *SQLiteSource) DB() *database.DB { return s.db }

// Load implements calendar.Source. Rows go through the same parser as a CSV file,
// in insertion order, so a bad row is reported by its position in the table.
func (s *SQLiteSource) Load(ctx context.Context) (*calendar.Registry, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT market, timezone, date, status FROM non_trading_days ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("sqlite source: query: %w", err)
	}
	defer rows.Close()

	reg, err := calendar.LoadRows(&sqlRowReader{rows: rows})
	if err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}

	s.log.Debug().Int("records", reg.Len()).Msg("Loaded calendar table")
	return reg.WithSource(s.Name()), nil
}

// Import replaces the table content with records in one transaction and returns
// the number of rows written. Records are checked with the registry rules first, so
// the table never holds a dataset Load would reject.
func (s *SQLiteSource) Import(ctx context.Context, origin string, records []calendar.Record) (int, error) {
	reg, err := calendar.NewRegistry(records)
	if err != nil {
		return 0, fmt.Errorf("sqlite source: import %s: %w", origin, err)
	}
	records = reg.Records()

	err = database.WithTransactionContext(ctx, s.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM non_trading_days"); err != nil {
			return fmt.Errorf("clear table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO non_trading_days (market, timezone, date, status) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			timezone := rec.TimeZone
			if timezone == "" {
				timezone = rec.Market.TimeZone()
			}
			if _, err := stmt.ExecContext(ctx,
				rec.Market.Code(), timezone, rec.Date.String(), rec.Status.String()); err != nil {
				return fmt.Errorf("insert %s %s: %w", rec.Market, rec.Date, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO imports (source, records, imported_at) VALUES (?, ?, ?)",
			origin, len(records), time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite source: import: %w", err)
	}

	s.log.Info().
		Str("origin", origin).
		Int("records", len(records)).
		Msg("Imported calendar records")

	return len(records), nil
}

// ImportCSV validates a CSV dataset completely before replacing the table with it
func (s *SQLiteSource) ImportCSV(ctx context.Context, origin string, r io.Reader) (int, error) {
	reg, err := calendar.Load(r)
	if err != nil {
		return 0, fmt.Errorf("sqlite source: import %s: %w", origin, err)
	}
	return s.Import(ctx, origin, reg.Records())
}

// Count returns the number of rows in the table
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM non_trading_days").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite source: count: %w", err)
	}
	return n, nil
}

// sqlRowReader adapts *sql.Rows to calendar.RowReader, emitting the column names
// as the header row.
type sqlRowReader struct {
	rows   *sql.Rows
	header bool
}

func (r *sqlRowReader) Read() ([]string, error) {
	if !r.header {
		r.header = true
		return r.rows.Columns()
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	fields := make([]string, 4)
	if err := r.rows.Scan(&fields[0], &fields[1], &fields[2], &fields[3]); err != nil {
		return nil, err
	}
	return fields, nil
}
