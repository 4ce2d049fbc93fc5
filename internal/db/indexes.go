package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used across the pipeline.
const (
	PendingSignaturesCollection    = "pending_signatures"
	ValidationsCollection          = "signature_validations"
	SignaturesCollection           = "signatures"
	UsersCollection                = "users"
	PetitionsCollection            = "petitions"
	ProcessedSignaturesCollection  = "processed_signatures"
	ProcessedValidationsCollection = "processed_validations"
	ValidationLinksCollection      = "signature_validation_links"
)

// Index names, referenced when classifying duplicate-key errors.
const (
	IndexUniqueEmail        = "unique_email"
	IndexUniquePetitionUser = "unique_petition_user"
	IndexUniqueSecretKey    = "unique_secret_key"
	IndexUniqueRecordKey    = "unique_record_secret_key"
)

// EnsureIndexes creates the indexes the pipeline's correctness depends on.
// The unique index on signatures (petition_id, user_id) is the actual
// deduplication backstop under concurrent workers; the unique email index
// backs identity resolution; the unique record.secret_key indexes on the
// processed collections make re-archival of an already archived record a
// no-op. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type spec struct {
		collection string
		models     []mongo.IndexModel
	}

	uniqueNamed := func(name string) *options.IndexOptions {
		return options.Index().SetUnique(true).SetName(name)
	}

	specs := []spec{
		{
			collection: UsersCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: uniqueNamed(IndexUniqueEmail)},
			},
		},
		{
			collection: SignaturesCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "petition_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: uniqueNamed(IndexUniquePetitionUser)},
				{Keys: bson.D{{Key: "petition_id", Value: 1}, {Key: "client_ip", Value: 1}}},
			},
		},
		{
			collection: PendingSignaturesCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "secret_key", Value: 1}}, Options: uniqueNamed(IndexUniqueSecretKey)},
			},
		},
		{
			collection: ValidationsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "secret_key", Value: 1}}, Options: uniqueNamed(IndexUniqueSecretKey)},
			},
		},
		{
			collection: ValidationLinksCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "secret_key", Value: 1}}, Options: uniqueNamed(IndexUniqueSecretKey)},
			},
		},
		{
			collection: ProcessedSignaturesCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "record.secret_key", Value: 1}}, Options: uniqueNamed(IndexUniqueRecordKey)},
			},
		},
		{
			collection: ProcessedValidationsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "record.secret_key", Value: 1}}, Options: uniqueNamed(IndexUniqueRecordKey)},
			},
		},
		{
			collection: PetitionsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "legacy_id", Value: 1}}, Options: options.Index().SetSparse(true)},
			},
		},
	}

	for _, s := range specs {
		if _, err := database.Collection(s.collection).Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", s.collection, err)
		}
	}
	return nil
}
