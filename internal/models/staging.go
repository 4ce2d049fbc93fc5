package models

import (
	"time"

	"github.com/parastoo-62/petitions/internal/sixid"
)

// PendingSignature is a staging record created when a raw signature intent
// is accepted upstream. It is deleted once its matched pair is archived.
// SecretKey is the one-time correlation token shared with the Validation.
type PendingSignature struct {
	Base        `bson:",inline"`
	SecretKey   string    `bson:"secret_key" json:"secret_key"`
	FirstName   string    `bson:"first_name" json:"first_name"`
	LastName    string    `bson:"last_name" json:"last_name"`
	Email       string    `bson:"email" json:"email"`
	Zip         string    `bson:"zip,omitempty" json:"zip,omitempty"`
	ClientIP    string    `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	OptIn       bool      `bson:"opt_in" json:"opt_in"`
	PetitionID  string    `bson:"petition_id" json:"petition_id"` // as submitted by the petitioner
	SubmittedAt time.Time `bson:"submitted_at" json:"submitted_at"`
	ReceivedAt  time.Time `bson:"received_at" json:"received_at"` // pre-processing timestamp
}

// Validation is a staging record created when the petitioner confirms via
// the emailed link. PetitionID here is the validated petition ID; it may
// diverge from the pending record's only through tampering.
type Validation struct {
	Base        `bson:",inline"`
	SecretKey   string    `bson:"secret_key" json:"secret_key"`
	PetitionID  string    `bson:"petition_id" json:"petition_id"`
	ClientIP    string    `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	APIKey      string    `bson:"api_key,omitempty" json:"api_key,omitempty"`
	ValidatedAt time.Time `bson:"validated_at" json:"validated_at"`
	CloseAt     time.Time `bson:"close_at" json:"close_at"` // petition stops accepting validations
	ReceivedAt  time.Time `bson:"received_at" json:"received_at"`
}

// MatchedRecord is the in-memory join of a PendingSignature and its
// Validation for one batch item. It is never persisted as its own entity:
// its fate is either a ProcessedSignature/ProcessedValidation pair or a
// SignatureValidationLink with the sentinel (zero) signature ID.
type MatchedRecord struct {
	Pending    PendingSignature `bson:"pending" json:"pending"`
	Validation Validation       `bson:"validation" json:"validation"`

	// SignatureID is filled in once the deduplicator resolves it. It stays
	// zero for records neutralized by the legitimacy gate.
	SignatureID sixid.SixID `bson:"-" json:"-"`
}
