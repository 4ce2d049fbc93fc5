package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

// ISignatureService manages terminal signature records. The unique index on
// (petition_id, user_id) is the backstop against concurrent double-signing.
type ISignatureService interface {
	FindByPetitionAndUser(ctx context.Context, petitionID, userID sixid.SixID) (*models.Signature, error)
	FindByID(ctx context.Context, id sixid.SixID) (*models.Signature, error)
	// Create inserts a signature. When another worker won the race on the
	// (petition_id, user_id) index the existing record is returned with
	// created=false.
	Create(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error)
	// HasSignatureFromIP reports whether the petition already carries a
	// signature from the given client IP.
	HasSignatureFromIP(ctx context.Context, petitionID sixid.SixID, clientIP string) (bool, error)
}

type signatureService struct {
	db *mongo.Database
}

func NewSignatureService(database *mongo.Database) ISignatureService {
	return &signatureService{db: database}
}

func (s *signatureService) FindByPetitionAndUser(ctx context.Context, petitionID, userID sixid.SixID) (*models.Signature, error) {
	var sig models.Signature
	filter := bson.M{"petition_id": petitionID, "user_id": userID}

	err := s.db.Collection(db.SignaturesCollection).FindOne(ctx, filter).Decode(&sig)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding signature for petition %s user %s: %w", petitionID, userID, err)
	}
	return &sig, nil
}

func (s *signatureService) FindByID(ctx context.Context, id sixid.SixID) (*models.Signature, error) {
	var sig models.Signature
	err := s.db.Collection(db.SignaturesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&sig)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding signature %s: %w", id, err)
	}
	return &sig, nil
}

func (s *signatureService) Create(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error) {
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	operation := func() error {
		sig.GenIDIfEmpty()
		_, err := s.db.Collection(db.SignaturesCollection).InsertOne(ctx, sig)
		if err != nil && db.IsMongoDuplicateKeyError(err) {
			// Distinguish an _id collision (regenerate and retry) from
			// losing the (petition_id, user_id) race.
			if existing, findErr := s.FindByPetitionAndUser(ctx, sig.PetitionID, sig.UserID); findErr == nil && existing != nil {
				return errAlreadySigned
			}
			sig.GenID()
		}
		return err
	}

	err := db.Try(operation)
	if errors.Is(err, errAlreadySigned) {
		existing, findErr := s.FindByPetitionAndUser(ctx, sig.PetitionID, sig.UserID)
		if findErr != nil {
			return nil, false, fmt.Errorf("signature exists for petition %s user %s but lookup failed: %w", sig.PetitionID, sig.UserID, findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error creating signature: %w", err)
	}
	return sig, true, nil
}

func (s *signatureService) HasSignatureFromIP(ctx context.Context, petitionID sixid.SixID, clientIP string) (bool, error) {
	if clientIP == "" {
		return false, nil
	}
	filter := bson.M{"petition_id": petitionID, "client_ip": clientIP}
	count, err := s.db.Collection(db.SignaturesCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("error counting signatures by ip: %w", err)
	}
	return count > 0, nil
}

var errAlreadySigned = errors.New("signature already exists for petition and user")
