package models

import (
	"time"
)

// User is the durable identity record, unique by normalized email. Within
// the pipeline's view an email uniquely determines the identity; full
// account management (login, profiles) lives outside this repository.
type User struct {
	Base      `bson:",inline"`
	Email     string    `bson:"email" json:"email"`
	Handle    string    `bson:"handle" json:"handle"`
	FirstName string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Zip       string    `bson:"zip,omitempty" json:"zip,omitempty"`
	City      string    `bson:"city,omitempty" json:"city,omitempty"`
	State     string    `bson:"state,omitempty" json:"state,omitempty"`
	Country   string    `bson:"country,omitempty" json:"country,omitempty"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}
