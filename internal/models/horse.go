package models

import (
	"time"

	"github.com/google/uuid"
)

// Sex represents the sex of a horse
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexGelding Sex = "gelding"
)

// Horse represents a horse with its lineage. Horses are append-only and
// referenced by many entries.
type Horse struct {
	ID         uuid.UUID `db:"id" json:"id" validate:"required"`
	ExternalID string    `db:"external_id" json:"horse_id" validate:"required"`
	Name       string    `db:"name" json:"name" validate:"required"`
	Sex        Sex       `db:"sex" json:"sex"`
	BirthDate  string    `db:"birth_date" json:"birth_date"`
	Sire       string    `db:"sire" json:"sire"`
	Dam        string    `db:"dam" json:"dam"`
	DamSire    string    `db:"dam_sire" json:"dam_sire"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// IsMale reports whether the horse is an entire or gelded male
func (h *Horse) IsMale() bool {
	return h.Sex == SexMale || h.Sex == SexGelding
}
