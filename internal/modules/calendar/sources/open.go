package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/database"
	"github.com/aristath/tradecal/internal/modules/calendar"
)

// Source kinds accepted by Open
const (
	KindFile   = "file"
	KindS3     = "s3"
	KindSQLite = "sqlite"
	KindRules  = "rules"
)

// Options selects and configures the source built by Open
type Options struct {
	Kind string

	File string

	S3     S3Config
	Bucket string
	Key    string

	SQLitePath string
	ImportFile string // CSV imported into sqlite before first use; optional

	FromYear int
	ToYear   int
}

// Open builds the configured source. The returned cleanup releases whatever the
// source holds open and is never nil.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (calendar.Source, func() error, error) {
	noop := func() error { return nil }

	switch opts.Kind {
	case KindFile:
		return NewFileSource(opts.File, log), noop, nil

	case KindS3:
		client, err := NewS3Client(ctx, opts.S3)
		if err != nil {
			return nil, noop, err
		}
		return NewS3Source(client, opts.Bucket, opts.Key, log), noop, nil

	case KindSQLite:
		db, err := database.New(database.Config{
			Path:    opts.SQLitePath,
			Profile: database.ProfileStandard,
			Name:    "calendar",
		})
		if err != nil {
			return nil, noop, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, noop, err
		}

		source := NewSQLiteSource(db, log)
		if opts.ImportFile != "" {
			if err := importFile(ctx, source, opts.ImportFile); err != nil {
				_ = db.Close()
				return nil, noop, err
			}
		}
		return source, db.Close, nil

	case KindRules:
		return NewRulesSource(opts.FromYear, opts.ToYear), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown calendar source %q", opts.Kind)
	}
}

func importFile(ctx context.Context, source *SQLiteSource, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	_, err = source.ImportCSV(ctx, path, f)
	return err
}
