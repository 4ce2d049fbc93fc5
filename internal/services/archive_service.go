package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/models"
)

// IArchiveService moves fully handled staging records into the audit
// collections and clears them out of staging.
type IArchiveService interface {
	// Archive writes the three audit records and deletes the two staging
	// records. The audit writes are attempted independently; failures are
	// logged and folded into the returned error but never stop the
	// remaining writes. Re-archiving after a partial failure is a no-op
	// for rows already present: the link is upserted on secret key and
	// the processed collections carry a unique record.secret_key index,
	// with a duplicate insert treated as success. The validation staging
	// row is only removed once the pending row is gone, so a partially
	// cleared pair stays re-matchable.
	Archive(ctx context.Context, rec *models.MatchedRecord, jobID string) error
}

type archiveService struct {
	db      *mongo.Database
	staging IStagingService
}

func NewArchiveService(database *mongo.Database, staging IStagingService) IArchiveService {
	return &archiveService{db: database, staging: staging}
}

func (s *archiveService) Archive(ctx context.Context, rec *models.MatchedRecord, jobID string) error {
	now := time.Now().UTC()
	secretKey := rec.Pending.SecretKey
	var errs []error

	fail := func(what string, err error) {
		log.WithError(err).WithFields(log.Fields{
			"secret_key": secretKey,
			"job_id":     jobID,
		}).Errorf("Archival step failed: %s", what)
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
	}

	processed := models.ProcessedSignature{
		Base:             models.NewBase(),
		PendingSignature: rec.Pending,
		ProcessedAt:      now,
		JobID:            jobID,
	}
	if err := db.Try(func() error {
		processed.GenIDIfEmpty()
		_, insertErr := s.db.Collection(db.ProcessedSignaturesCollection).InsertOne(ctx, processed)
		if db.DuplicateKeyIndex(insertErr) == db.IndexUniqueRecordKey {
			log.WithField("secret_key", secretKey).Debug("Processed signature already archived")
			return nil
		}
		if db.IsMongoDuplicateKeyError(insertErr) {
			processed.GenID()
		}
		return insertErr
	}); err != nil {
		fail("store processed signature", err)
	}

	validated := models.ProcessedValidation{
		Base:        models.NewBase(),
		Validation:  rec.Validation,
		ProcessedAt: now,
		JobID:       jobID,
	}
	if err := db.Try(func() error {
		validated.GenIDIfEmpty()
		_, insertErr := s.db.Collection(db.ProcessedValidationsCollection).InsertOne(ctx, validated)
		if db.DuplicateKeyIndex(insertErr) == db.IndexUniqueRecordKey {
			log.WithField("secret_key", secretKey).Debug("Processed validation already archived")
			return nil
		}
		if db.IsMongoDuplicateKeyError(insertErr) {
			validated.GenID()
		}
		return insertErr
	}); err != nil {
		fail("store processed validation", err)
	}

	// Upsert keyed on secret key so re-archiving after a partial failure
	// does not duplicate the link.
	link := models.SignatureValidationLink{
		SecretKey:   secretKey,
		SignatureID: rec.SignatureID,
		APIKey:      rec.Validation.APIKey,
		LinkedAt:    now,
	}
	_, err := s.db.Collection(db.ValidationLinksCollection).UpdateOne(ctx,
		bson.M{"secret_key": secretKey},
		bson.M{"$set": link},
		options.Update().SetUpsert(true))
	if err != nil {
		fail("store validation link", err)
	}

	// Delete the pending row first and only then its validation. The batch
	// join starts from pending rows, so removing the validation first
	// could strand a pending row that re-scans every batch but never
	// matches. If the validation delete fails the leftover row is already
	// archived and invisible to the join.
	if err := s.staging.DeletePending(ctx, secretKey); err != nil {
		fail("delete pending signature", err)
	} else if err := s.staging.DeleteValidation(ctx, secretKey); err != nil {
		fail("delete validation record", err)
	}

	return errors.Join(errs...)
}
