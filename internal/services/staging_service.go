package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/models"
)

// IStagingService reads the two staging collections fed by the intake and
// validation services. Matching happens entirely server-side so a batch is a
// single round trip.
type IStagingService interface {
	// MatchBatch returns up to limit pending signatures that have a
	// validation record sharing their secret key, oldest first.
	MatchBatch(ctx context.Context, limit int) ([]models.MatchedRecord, error)
	CountPending(ctx context.Context) (int64, error)
	DeletePending(ctx context.Context, secretKey string) error
	DeleteValidation(ctx context.Context, secretKey string) error
}

type stagingService struct {
	db *mongo.Database
}

func NewStagingService(database *mongo.Database) IStagingService {
	return &stagingService{db: database}
}

func (s *stagingService) MatchBatch(ctx context.Context, limit int) ([]models.MatchedRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid batch limit %d", limit)
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "received_at", Value: 1}}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: db.ValidationsCollection},
			{Key: "localField", Value: "secret_key"},
			{Key: "foreignField", Value: "secret_key"},
			{Key: "as", Value: "matched"},
		}}},
		bson.D{{Key: "$unwind", Value: "$matched"}},
		bson.D{{Key: "$limit", Value: limit}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "pending", Value: "$$ROOT"},
			{Key: "validation", Value: "$matched"},
		}}},
		bson.D{{Key: "$unset", Value: "pending.matched"}},
	}

	cursor, err := s.db.Collection(db.PendingSignaturesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error matching staged signatures: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.MatchedRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding matched signatures: %w", err)
	}
	return records, nil
}

func (s *stagingService) CountPending(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(db.PendingSignaturesCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting pending signatures: %w", err)
	}
	return count, nil
}

func (s *stagingService) DeletePending(ctx context.Context, secretKey string) error {
	_, err := s.db.Collection(db.PendingSignaturesCollection).DeleteOne(ctx, bson.M{"secret_key": secretKey})
	if err != nil {
		return fmt.Errorf("error deleting pending signature: %w", err)
	}
	return nil
}

func (s *stagingService) DeleteValidation(ctx context.Context, secretKey string) error {
	_, err := s.db.Collection(db.ValidationsCollection).DeleteOne(ctx, bson.M{"secret_key": secretKey})
	if err != nil {
		return fmt.Errorf("error deleting validation record: %w", err)
	}
	return nil
}
