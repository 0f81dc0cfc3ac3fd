package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/modules/calendar"
)

const defaultReloadTimeout = 2 * time.Minute

// CalendarReloader is the part of calendar.Store the reload job needs
type CalendarReloader interface {
	Reload(ctx context.Context) (*calendar.Registry, error)
}

// ReloadCalendarJob refreshes the calendar snapshot from its source
type ReloadCalendarJob struct {
	store   CalendarReloader
	timeout time.Duration
	log     zerolog.Logger
}

// NewReloadCalendarJob creates a new ReloadCalendarJob
func NewReloadCalendarJob(store CalendarReloader, timeout time.Duration) *ReloadCalendarJob {
	if timeout <= 0 {
		timeout = defaultReloadTimeout
	}
	return &ReloadCalendarJob{
		store:   store,
		timeout: timeout,
		log:     zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *ReloadCalendarJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *ReloadCalendarJob) Name() string {
	return "reload_calendar"
}

// Run reloads the calendar; a failure leaves the current snapshot serving
func (j *ReloadCalendarJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	reg, err := j.store.Reload(ctx)
	if err != nil {
		return err
	}

	j.log.Debug().
		Str("snapshot", reg.ID().String()).
		Int("records", reg.Len()).
		Msg("Calendar snapshot refreshed")
	return nil
}
