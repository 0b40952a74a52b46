package models

import (
	"time"

	"github.com/google/uuid"
)

// Surface represents the racing surface of a course
type Surface string

const (
	SurfaceTurf Surface = "turf"
	SurfaceDirt Surface = "dirt"
)

// Race represents a race event in the system
type Race struct {
	ID             uuid.UUID `db:"id" json:"id" validate:"required"`
	ExternalID     string    `db:"external_id" json:"race_id" validate:"required"`
	Name           string    `db:"name" json:"name"`
	Date           time.Time `db:"race_date" json:"date" validate:"required"`
	Venue          string    `db:"venue" json:"venue" validate:"required"`
	Surface        Surface   `db:"surface" json:"surface" validate:"required,oneof=turf dirt"`
	Distance       int       `db:"distance" json:"distance" validate:"required,gt=0"`
	TrackCondition string    `db:"track_condition" json:"track_condition"`
	EntrantCount   int       `db:"entrant_count" json:"entrant_count" validate:"gte=0"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Day returns the race date truncated to a UTC calendar day
func (r *Race) Day() time.Time {
	return TruncateDay(r.Date)
}

// IsTurf checks if the race is run on turf
func (r *Race) IsTurf() bool {
	return r.Surface == SurfaceTurf
}

// TruncateDay drops the clock component of t, keeping the calendar day in UTC
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
