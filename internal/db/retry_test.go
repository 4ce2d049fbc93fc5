package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

var errDup = errors.New("duplicate key")

func alwaysDup(err error) bool { return errors.Is(err, errDup) }
func neverDup(err error) bool { return false }

func TestWithRetries_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, alwaysDup)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_RetriesOnDuplicateKey(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		if calls < 3 {
			return errDup
		}
		return nil
	}, 3, alwaysDup)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetries_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return errDup
	}, 2, alwaysDup)
	assert.ErrorIs(t, err, errDup)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestWithRetries_NonDuplicateFailsFast(t *testing.T) {
	calls := 0
	boom := errors.New("connection reset")
	err := WithRetries(func() error {
		calls++
		return boom
	}, 5, neverDup)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestIsMongoDuplicateKeyError_NilAndPlain(t *testing.T) {
	assert.False(t, IsMongoDuplicateKeyError(nil))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("something else")))
}

func dupWriteException(message string) mongo.WriteException {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{
			{Code: 11000, Message: message},
		},
	}
}

func TestDuplicateKeyIndex_NamedIndex(t *testing.T) {
	err := dupWriteException(`E11000 duplicate key error collection: petitions.users index: unique_email dup key: { email: "a@b.com" }`)
	assert.Equal(t, IndexUniqueEmail, DuplicateKeyIndex(err))
}

func TestDuplicateKeyIndex_IDCollision(t *testing.T) {
	err := dupWriteException(`E11000 duplicate key error collection: petitions.users index: _id_ dup key: { _id: "aaaaaa" }`)
	assert.Equal(t, "_id_", DuplicateKeyIndex(err))
}

func TestDuplicateKeyIndex_NotDuplicate(t *testing.T) {
	assert.Equal(t, "", DuplicateKeyIndex(nil))
	assert.Equal(t, "", DuplicateKeyIndex(errors.New("connection reset")))
}
