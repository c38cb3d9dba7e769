// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Recheck reasons.
const (
	ReasonManual    = "manual"
	ReasonScheduled = "scheduled"
	ReasonRating    = "rating"
)

// Job asks the workers to refresh a guild's ratings and re-examine its teams.
type Job struct {
	ID         string    // unique id handed back to clients
	GuildID    string    // guild to recheck
	Reason     string    // why the job was queued, e.g. "scheduled"
	EnqueuedAt time.Time // when the job entered the queue

	// CompetitorIDs limits the recheck to these competitors. Empty means
	// the whole roster.
	CompetitorIDs []int64
}

// NewJob creates a job with a fresh id.
func NewJob(guildID, reason string) Job {
	return Job{
		ID:         uuid.NewString(),
		GuildID:    guildID,
		Reason:     reason,
		EnqueuedAt: time.Now(),
	}
}

// ForCompetitors returns a copy of the job limited to ids.
func (j Job) ForCompetitors(ids ...int64) Job {
	j.CompetitorIDs = slices.Clone(ids)
	return j
}

// Age reports how long the job has been waiting.
func (j Job) Age(now time.Time) time.Duration {
	if j.EnqueuedAt.IsZero() {
		return 0
	}
	return now.Sub(j.EnqueuedAt)
}
