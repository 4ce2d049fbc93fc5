package models

import (
	"strings"

	"github.com/parastoo-62/petitions/internal/sixid"
)

// PetitionRef is a petition identifier as it arrives at the pipeline
// boundary: either a legacy externally-assigned identifier or an internal
// SixID. It is parsed exactly once and the two forms are never compared
// across each other implicitly; resolution to a Petition entity happens in
// the petition service.
type PetitionRef struct {
	internal sixid.SixID
	legacy   string
}

// ParsePetitionRef classifies a raw petition ID string. A string that
// decodes as a SixID is treated as an internal reference; anything else is
// carried as a legacy identifier. Empty input yields the zero ref.
func ParsePetitionRef(raw string) PetitionRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PetitionRef{}
	}
	if id, err := sixid.Parse(raw); err == nil && !id.IsZero() {
		return PetitionRef{internal: id}
	}
	return PetitionRef{legacy: raw}
}

// InternalRef wraps an internal petition ID.
func InternalRef(id sixid.SixID) PetitionRef {
	return PetitionRef{internal: id}
}

// LegacyRef wraps a legacy identifier.
func LegacyRef(id string) PetitionRef {
	return PetitionRef{legacy: id}
}

// IsZero reports whether the ref carries neither form.
func (r PetitionRef) IsZero() bool {
	return r.internal.IsZero() && r.legacy == ""
}

// Internal returns the internal ID and whether the ref holds one.
func (r PetitionRef) Internal() (sixid.SixID, bool) {
	return r.internal, !r.internal.IsZero()
}

// Legacy returns the legacy identifier and whether the ref holds one.
func (r PetitionRef) Legacy() (string, bool) {
	return r.legacy, r.legacy != ""
}

// String renders whichever form the ref holds, for logging.
func (r PetitionRef) String() string {
	if !r.internal.IsZero() {
		return r.internal.String()
	}
	return r.legacy
}
