package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

// ErrPetitionNotFound is returned when a petition reference resolves to
// nothing, in either its legacy or internal form.
var ErrPetitionNotFound = errors.New("petition not found")

// IPetitionService is the pipeline's view of the petition entity store.
// Content management happens elsewhere; this service only resolves
// petitions and mutates the counters signature processing owns.
type IPetitionService interface {
	Resolve(ctx context.Context, ref models.PetitionRef) (*models.Petition, error)
	FindByID(ctx context.Context, id sixid.SixID) (*models.Petition, error)
	IncrementSignatureCount(ctx context.Context, id sixid.SixID) error
	IncrementFraudMetric(ctx context.Context, id sixid.SixID, cat models.MetricCategory) error
	IncrementUniqueCounters(ctx context.Context, id sixid.SixID, newIP bool) error
	StampFraudAlert(ctx context.Context, id sixid.SixID, at time.Time) error
	GetField(ctx context.Context, id sixid.SixID, field string) (interface{}, error)
	SetField(ctx context.Context, id sixid.SixID, field string, value interface{}) error
}

type petitionService struct {
	db *mongo.Database
}

// NewPetitionService creates a new PetitionService.
func NewPetitionService(database *mongo.Database) IPetitionService {
	return &petitionService{db: database}
}

// Resolve finds the petition entity for a reference in either form.
// Returns ErrPetitionNotFound when no entity matches.
func (s *petitionService) Resolve(ctx context.Context, ref models.PetitionRef) (*models.Petition, error) {
	if ref.IsZero() {
		return nil, ErrPetitionNotFound
	}

	filter := bson.M{"deleted": false}
	if id, ok := ref.Internal(); ok {
		filter["_id"] = id
	} else if legacy, ok := ref.Legacy(); ok {
		filter["legacy_id"] = legacy
	}

	var petition models.Petition
	err := s.db.Collection(db.PetitionsCollection).FindOne(ctx, filter).Decode(&petition)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPetitionNotFound
		}
		return nil, fmt.Errorf("error resolving petition %s: %w", ref.String(), err)
	}
	return &petition, nil
}

// FindByID fetches a petition by its internal ID.
func (s *petitionService) FindByID(ctx context.Context, id sixid.SixID) (*models.Petition, error) {
	return s.Resolve(ctx, models.InternalRef(id))
}

// IncrementSignatureCount adds one to the petition's total signature count.
// The increment happens at the store so it stays correct under concurrent
// workers.
func (s *petitionService) IncrementSignatureCount(ctx context.Context, id sixid.SixID) error {
	return s.increment(ctx, id, bson.M{"signature_count": 1})
}

// IncrementFraudMetric adds one to a per-petition fraud category counter.
func (s *petitionService) IncrementFraudMetric(ctx context.Context, id sixid.SixID, cat models.MetricCategory) error {
	return s.increment(ctx, id, bson.M{"fraud_metrics." + string(cat): 1})
}

// IncrementUniqueCounters bumps the unique-email counter (every newly
// created signature belongs to a distinct email by construction) and,
// when the signer's IP has not been seen on this petition, the unique-IP
// counter.
func (s *petitionService) IncrementUniqueCounters(ctx context.Context, id sixid.SixID, newIP bool) error {
	inc := bson.M{"fraud_metrics.unique_email": 1}
	if newIP {
		inc["fraud_metrics.unique_ip"] = 1
	}
	return s.increment(ctx, id, inc)
}

func (s *petitionService) increment(ctx context.Context, id sixid.SixID, inc bson.M) error {
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(db.PetitionsCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("db error incrementing counters for petition %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrPetitionNotFound
	}
	return nil
}

// StampFraudAlert records the time of a successfully delivered fraud alert.
// The stamp only advances; a failed delivery never updates it, so the next
// threshold evaluation retries the alert.
func (s *petitionService) StampFraudAlert(ctx context.Context, id sixid.SixID, at time.Time) error {
	update := bson.M{"$set": bson.M{"last_fraud_alert_at": at.UTC(), "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(db.PetitionsCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("db error stamping fraud alert for petition %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrPetitionNotFound
	}
	return nil
}

// GetField reads one named field from the petition document.
func (s *petitionService) GetField(ctx context.Context, id sixid.SixID, field string) (interface{}, error) {
	var doc bson.M
	opts := bson.M{"_id": id, "deleted": false}
	err := s.db.Collection(db.PetitionsCollection).FindOne(ctx, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPetitionNotFound
		}
		return nil, fmt.Errorf("error reading field %s of petition %s: %w", field, id.String(), err)
	}
	return doc[field], nil
}

// SetField writes one named field on the petition document.
func (s *petitionService) SetField(ctx context.Context, id sixid.SixID, field string, value interface{}) error {
	update := bson.M{"$set": bson.M{field: value, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(db.PetitionsCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("error setting field %s of petition %s: %w", field, id.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrPetitionNotFound
	}
	return nil
}
