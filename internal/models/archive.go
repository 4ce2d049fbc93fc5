package models

import (
	"time"

	"github.com/parastoo-62/petitions/internal/sixid"
)

// ProcessedSignature is the append-only audit copy of a pending signature,
// written when its matched record leaves staging. Every archived record has
// exactly one row here and one in processed_validations, correlated by
// secret key.
type ProcessedSignature struct {
	Base             `bson:",inline"`
	PendingSignature `bson:"record"`
	ProcessedAt      time.Time `bson:"processed_at" json:"processed_at"`
	JobID            string    `bson:"job_id,omitempty" json:"job_id,omitempty"`
}

// ProcessedValidation is the append-only audit copy of a validation.
type ProcessedValidation struct {
	Base        `bson:",inline"`
	Validation  `bson:"record"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
	JobID       string    `bson:"job_id,omitempty" json:"job_id,omitempty"`
}

// SignatureValidationLink associates a secret key with its resolved
// signature ID and source API key. Retried validation deliveries for the
// same signature upsert into the same row keyed by secret key, so repeated
// validations never duplicate signature counts. A zero SignatureID marks a
// record the legitimacy gate neutralized.
type SignatureValidationLink struct {
	SecretKey   string      `bson:"secret_key" json:"secret_key"`
	SignatureID sixid.SixID `bson:"signature_id" json:"signature_id"`
	APIKey      string      `bson:"api_key,omitempty" json:"api_key,omitempty"`
	LinkedAt    time.Time   `bson:"linked_at" json:"linked_at"`
}
