// Package pipeline turns matched staging records into counted signatures.
// Each run drains one batch: join the two staging collections on secret
// key, gate each pair for legitimacy, resolve the signer identity,
// deduplicate against the terminal store, bump petition counters and fraud
// metrics, then archive the staging rows. Records fail independently; one
// bad pair never stalls the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/metrics"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/services"
)

// Status classifies a run's outcome for callers that surface it over an
// API or task result.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusForbidden
	StatusNotFound
	StatusServerError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadRequest:
		return "bad_request"
	case StatusForbidden:
		return "forbidden"
	case StatusNotFound:
		return "not_found"
	case StatusServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Options tunes a single run. The zero value takes everything from config.
type Options struct {
	// BatchSize overrides the configured batch size when positive.
	// Negative values are rejected.
	BatchSize int
	// WorkerID tags the run's log lines. Empty means anonymous.
	WorkerID string
}

// Result summarizes one run.
type Result struct {
	JobID        string `json:"job_id"`
	Status       Status `json:"-"`
	StatusText   string `json:"status"`
	Matched      int    `json:"matched"`
	Created      int    `json:"created"`
	Duplicates   int    `json:"duplicates"`
	Illegitimate int    `json:"illegitimate"`
	Aborted      int    `json:"aborted"`
	Failed       int    `json:"failed"`
	// CaughtUp means the batch came back smaller than requested, so
	// staging held no further matched work at run time.
	CaughtUp bool `json:"caught_up"`
}

// OptInObserver is notified once per newly created signature whose signer
// opted into updates. Observers run synchronously on the batch worker and
// must not block.
type OptInObserver func(ctx context.Context, sig *models.Signature, user *models.User)

// Processor is the batch worker. Safe for concurrent runs: every store
// mutation is either idempotent or guarded by a unique index.
type Processor struct {
	cfg        *config.Config
	staging    services.IStagingService
	petitions  services.IPetitionService
	users      services.IUserService
	signatures services.ISignatureService
	archive    services.IArchiveService
	alerts     services.IAlertService
	fraud      services.IFraudService
	observers  []OptInObserver
}

func NewProcessor(
	cfg *config.Config,
	staging services.IStagingService,
	petitions services.IPetitionService,
	users services.IUserService,
	signatures services.ISignatureService,
	archive services.IArchiveService,
	alerts services.IAlertService,
	fraud services.IFraudService,
) *Processor {
	return &Processor{
		cfg:        cfg,
		staging:    staging,
		petitions:  petitions,
		users:      users,
		signatures: signatures,
		archive:    archive,
		alerts:     alerts,
		fraud:      fraud,
	}
}

// RegisterOptInObserver adds an observer. Not safe to call once runs have
// started.
func (p *Processor) RegisterOptInObserver(obs OptInObserver) {
	p.observers = append(p.observers, obs)
}

// ProcessSignatures runs one batch. jobID correlates log lines and archive
// records across a run; empty means generate one.
func (p *Processor) ProcessSignatures(ctx context.Context, jobID string, opts Options) Result {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	result := Result{JobID: jobID, Status: StatusOK}
	logger := log.WithFields(log.Fields{"job_id": jobID, "worker": opts.WorkerID})

	if !p.cfg.ProcessingEnabled {
		logger.Info("Signature processing is disabled, skipping run")
		result.Status = StatusForbidden
		result.StatusText = result.Status.String()
		return result
	}
	if opts.BatchSize < 0 {
		logger.Warnf("Rejecting run with negative batch size %d", opts.BatchSize)
		result.Status = StatusBadRequest
		result.StatusText = result.Status.String()
		return result
	}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = p.cfg.BatchSize
	}

	start := time.Now()
	records, err := p.staging.MatchBatch(ctx, batchSize)
	if err != nil {
		logger.WithError(err).Error("Failed to match staged signatures")
		metrics.Event(metrics.EventBatchError)
		result.Status = StatusServerError
		result.StatusText = result.Status.String()
		return result
	}

	result.Matched = len(records)
	metrics.EventAdd(metrics.EventMatched, float64(len(records)))
	if len(records) < batchSize {
		result.CaughtUp = true
		metrics.Event(metrics.EventCaughtUp)
	}

	for i := range records {
		rec := &records[i]
		outcome, err := p.processRecord(ctx, jobID, rec)
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeDuplicate:
			result.Duplicates++
		case outcomeIllegitimate:
			result.Illegitimate++
		case outcomeAborted:
			result.Aborted++
		case outcomeFailed:
			result.Failed++
		}
		if err != nil {
			logger.WithError(err).WithField("secret_key", rec.Pending.SecretKey).
				Error("Failed to process staged signature")
		}
	}

	metrics.ObserveBatch(start, len(records))
	result.StatusText = result.Status.String()
	logger.WithFields(log.Fields{
		"matched":      result.Matched,
		"created":      result.Created,
		"duplicates":   result.Duplicates,
		"illegitimate": result.Illegitimate,
		"aborted":      result.Aborted,
		"failed":       result.Failed,
		"caught_up":    result.CaughtUp,
		"elapsed":      time.Since(start).String(),
	}).Info("Signature batch processed")
	return result
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeDuplicate
	outcomeIllegitimate
	outcomeAborted
	outcomeFailed
)

func (p *Processor) processRecord(ctx context.Context, jobID string, rec *models.MatchedRecord) (outcome, error) {
	reason, err := p.checkLegitimacy(ctx, rec)
	if err != nil {
		// Store trouble, not a verdict. The record stays in staging for
		// the next run.
		return outcomeFailed, err
	}
	if reason != "" {
		return p.neutralize(ctx, jobID, rec, reason)
	}

	user, _, err := p.users.FindOrCreate(ctx, services.SignerProfile{
		Email:     rec.Pending.Email,
		FirstName: rec.Pending.FirstName,
		LastName:  rec.Pending.LastName,
		Zip:       rec.Pending.Zip,
		ClientIP:  rec.Pending.ClientIP,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("resolving signer identity: %w", err)
	}

	// The terminal record stores the petition the signer actually
	// submitted for, resolved independently of the gate's check.
	petition, err := p.petitions.Resolve(ctx, models.ParsePetitionRef(rec.Pending.PetitionID))
	if err != nil {
		if errors.Is(err, services.ErrPetitionNotFound) {
			// No archival: neutralizing here would silently drop a
			// signature that might resolve once the petition record
			// lands. Leave it in staging and flag it loudly.
			log.WithFields(log.Fields{
				"job_id":     jobID,
				"secret_key": rec.Pending.SecretKey,
				"petition":   rec.Pending.PetitionID,
			}).Error("Submitted petition unresolved at dedup, leaving record in staging")
			metrics.Event(metrics.EventAborted)
			return outcomeAborted, nil
		}
		return outcomeFailed, fmt.Errorf("resolving submitted petition: %w", err)
	}

	existing, err := p.signatures.FindByPetitionAndUser(ctx, petition.ID, user.ID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return outcomeFailed, fmt.Errorf("checking for existing signature: %w", err)
	}
	if existing != nil {
		rec.SignatureID = existing.ID
		metrics.Event(metrics.EventDuplicate)
		return outcomeDuplicate, p.archiveRecord(ctx, jobID, rec)
	}

	newIP := false
	if rec.Pending.ClientIP != "" {
		seen, err := p.signatures.HasSignatureFromIP(ctx, petition.ID, rec.Pending.ClientIP)
		if err != nil {
			return outcomeFailed, fmt.Errorf("checking signature ip: %w", err)
		}
		newIP = !seen
	}

	legacyID := ""
	if _, ok := models.ParsePetitionRef(rec.Pending.PetitionID).Legacy(); ok {
		legacyID = petition.LegacyID
	}
	sig, created, err := p.signatures.Create(ctx, &models.Signature{
		Base:             models.NewBase(),
		PetitionID:       petition.ID,
		LegacyPetitionID: legacyID,
		UserID:           user.ID,
		FirstName:        rec.Pending.FirstName,
		LastName:         rec.Pending.LastName,
		Zip:              rec.Pending.Zip,
		ClientIP:         rec.Pending.ClientIP,
		OptIn:            rec.Pending.OptIn,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("creating signature: %w", err)
	}
	rec.SignatureID = sig.ID
	if !created {
		// Lost the unique-index race to a concurrent worker.
		metrics.Event(metrics.EventDuplicate)
		return outcomeDuplicate, p.archiveRecord(ctx, jobID, rec)
	}

	metrics.Event(metrics.EventCreated)
	if sig.OptIn {
		metrics.Event(metrics.EventOptIn)
		for _, obs := range p.observers {
			obs(ctx, sig, user)
		}
	}

	// Counter and fraud-metric failures are logged but do not undo the
	// signature; the record still archives so it is not double-counted on
	// a retry.
	if err := p.petitions.IncrementSignatureCount(ctx, petition.ID); err != nil {
		log.WithError(err).WithField("petition", petition.ID.String()).
			Error("Failed to increment signature count")
	}
	if err := p.fraud.RecordSignature(ctx, petition.ID, rec.Pending.Email, newIP); err != nil {
		log.WithError(err).WithField("petition", petition.ID.String()).
			Error("Failed to record fraud metrics")
	}
	if err := p.fraud.EvaluateThresholds(ctx, petition.ID); err != nil {
		log.WithError(err).WithField("petition", petition.ID.String()).
			Error("Failed to evaluate fraud thresholds")
	}

	return outcomeCreated, p.archiveRecord(ctx, jobID, rec)
}

// checkLegitimacy returns a non-empty reason when the matched pair must be
// neutralized, or an error when the verdict could not be reached.
func (p *Processor) checkLegitimacy(ctx context.Context, rec *models.MatchedRecord) (string, error) {
	if rec.Validation.ValidatedAt.After(rec.Validation.CloseAt) {
		return fmt.Sprintf("validated at %s, after close at %s",
			rec.Validation.ValidatedAt.Format(time.RFC3339),
			rec.Validation.CloseAt.Format(time.RFC3339)), nil
	}
	if rec.Pending.PetitionID != rec.Validation.PetitionID {
		return fmt.Sprintf("petition mismatch: submitted %q, validated %q",
			rec.Pending.PetitionID, rec.Validation.PetitionID), nil
	}
	_, err := p.petitions.Resolve(ctx, models.ParsePetitionRef(rec.Validation.PetitionID))
	if errors.Is(err, services.ErrPetitionNotFound) {
		return fmt.Sprintf("validated petition %q does not exist", rec.Validation.PetitionID), nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving validated petition: %w", err)
	}
	return "", nil
}

// neutralize archives an illegitimate record with the sentinel signature ID
// and alerts the operators. The record never reaches the terminal store.
func (p *Processor) neutralize(ctx context.Context, jobID string, rec *models.MatchedRecord, reason string) (outcome, error) {
	log.WithFields(log.Fields{
		"job_id":     jobID,
		"secret_key": rec.Pending.SecretKey,
		"reason":     reason,
	}).Warn("Illegitimate signature record neutralized")
	metrics.Event(metrics.EventIllegitimate)

	p.alerts.DispatchOperatorAlert(
		"Illegitimate signature record detected",
		fmt.Sprintf("A tampered or out-of-window signature record was neutralized.\n\nSecret key: %s\nPetition: %s\nReason: %s\nJob: %s\n",
			rec.Pending.SecretKey, rec.Pending.PetitionID, reason, jobID))

	return outcomeIllegitimate, p.archiveRecord(ctx, jobID, rec)
}

func (p *Processor) archiveRecord(ctx context.Context, jobID string, rec *models.MatchedRecord) error {
	if err := p.archive.Archive(ctx, rec, jobID); err != nil {
		metrics.Event(metrics.EventArchiveError)
		return fmt.Errorf("archiving record: %w", err)
	}
	metrics.Event(metrics.EventArchived)
	return nil
}
