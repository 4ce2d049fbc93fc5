package models

import (
	"time"

	"github.com/parastoo-62/petitions/internal/sixid"
)

// Signature is the durable, counted record. At most one exists per
// (petition, user) pair; the store enforces this with a unique index and
// the pipeline never deletes one. Metadata fields (IP, timestamps) may be
// attached after creation but the pair itself is immutable.
type Signature struct {
	Base             `bson:",inline"`
	PetitionID       sixid.SixID `bson:"petition_id" json:"petition_id"`
	LegacyPetitionID string      `bson:"legacy_petition_id,omitempty" json:"legacy_petition_id,omitempty"`
	UserID           sixid.SixID `bson:"user_id" json:"user_id"`
	FirstName        string      `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName         string      `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Zip              string      `bson:"zip,omitempty" json:"zip,omitempty"`
	ClientIP         string      `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	OptIn            bool        `bson:"opt_in" json:"opt_in"`
	CreatedAt        time.Time   `bson:"created_at" json:"created_at"`
}
