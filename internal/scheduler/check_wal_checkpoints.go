package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/database"
)

// walFrameThreshold is the WAL size, in frames, above which the job truncates the log
const walFrameThreshold = 1000

// CheckWALCheckpointsJob keeps the calendar database WAL from growing unbounded
type CheckWALCheckpointsJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob; db may be nil
func NewCheckWALCheckpointsJob(db *database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		db:  db,
		log: zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *CheckWALCheckpointsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run inspects the WAL and forces a TRUNCATE checkpoint when it is large
func (j *CheckWALCheckpointsJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Failed to check WAL checkpoint")
		return nil
	}

	if frames <= walFrameThreshold {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
		return nil
	}

	j.log.Warn().
		Str("database", j.db.Name()).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, truncating")

	return j.db.WALCheckpoint("TRUNCATE")
}
