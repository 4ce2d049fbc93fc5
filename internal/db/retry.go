package db

import (
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsDuplicateKeyError is a function that checks if an error is a duplicate key error.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for duplicate key
// errors. Inserts that regenerate their random ID on each attempt use this
// to ride out the (vanishingly rare) _id collision under concurrent workers.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries executes an operation up to 1+maxRetries times, retrying only
// on duplicate key errors with a small incremental backoff. Any other error
// returns immediately.
func WithRetries(op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if !isDuplicateKey(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate
// key error (code 11000), including ones wrapped in bulk write exceptions.
func IsMongoDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// Server messages for E11000 look like:
//
//	E11000 duplicate key error collection: db.users index: unique_email dup key: { email: "..." }
var dupKeyIndexRe = regexp.MustCompile(`index: (\S+) dup key`)

// DuplicateKeyIndex returns the name of the index that a duplicate key
// error collided on, or "" when err is not a duplicate key error or the
// index name cannot be determined. Callers use it to tell an _id collision
// apart from a collision on a named unique index.
func DuplicateKeyIndex(err error) string {
	if !IsMongoDuplicateKeyError(err) {
		return ""
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				if m := dupKeyIndexRe.FindStringSubmatch(e.Message); m != nil {
					return m[1]
				}
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				if m := dupKeyIndexRe.FindStringSubmatch(e.Message); m != nil {
					return m[1]
				}
			}
		}
	}
	if m := dupKeyIndexRe.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	return ""
}
