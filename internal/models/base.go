package models

import (
	"github.com/parastoo-62/petitions/internal/sixid"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id sixid.SixID)
}

type Base struct {
	ID sixid.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = sixid.New()
}

func (m *Base) SetID(id sixid.SixID) {
	m.ID = id
}

func NewBase() Base {
	return Base{
		ID: sixid.New(),
	}
}
