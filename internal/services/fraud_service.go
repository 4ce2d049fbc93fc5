package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/emailclass"
	"github.com/parastoo-62/petitions/internal/metrics"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

// IFraudService maintains per-petition fraud-signal counters and evaluates
// the configured ratio bounds against them.
type IFraudService interface {
	// RecordSignature classifies the signer's email and increments every
	// matching category counter, plus the unique email/IP counters.
	RecordSignature(ctx context.Context, petitionID sixid.SixID, signerEmail string, newIP bool) error
	// EvaluateThresholds re-reads the petition and checks every configured
	// bound against the current ratios, sending at most one alert per
	// throttle window. The alert timestamp is stamped only after the mail
	// is confirmed sent, so a failed delivery retries on the next crossing.
	EvaluateThresholds(ctx context.Context, petitionID sixid.SixID) error
}

type fraudService struct {
	cfg        *config.Config
	petitions  IPetitionService
	alerts     IAlertService
	classifier emailclass.Classifier
}

func NewFraudService(cfg *config.Config, petitions IPetitionService, alerts IAlertService, classifier emailclass.Classifier) IFraudService {
	return &fraudService{cfg: cfg, petitions: petitions, alerts: alerts, classifier: classifier}
}

func (s *fraudService) RecordSignature(ctx context.Context, petitionID sixid.SixID, signerEmail string, newIP bool) error {
	class := s.classifier.Classify(signerEmail)

	matched := map[models.MetricCategory]bool{
		models.MetricFreeEmail:         class.Free,
		models.MetricOpenEmail:         class.Open,
		models.MetricForwardingEmail:   class.Forwarding,
		models.MetricTimeBoundEmail:    class.TimeBound,
		models.MetricShredderEmail:     class.Shredder,
		models.MetricSubaddressedEmail: class.Subaddressed,
	}
	for _, cat := range models.EmailMetricCategories {
		if !matched[cat] {
			continue
		}
		if err := s.petitions.IncrementFraudMetric(ctx, petitionID, cat); err != nil {
			return fmt.Errorf("error recording %s metric: %w", cat, err)
		}
	}

	if err := s.petitions.IncrementUniqueCounters(ctx, petitionID, newIP); err != nil {
		return fmt.Errorf("error recording unique counters: %w", err)
	}
	return nil
}

func (s *fraudService) EvaluateThresholds(ctx context.Context, petitionID sixid.SixID) error {
	if !s.cfg.AlertingConfigured() || len(s.cfg.FraudBounds) == 0 {
		return nil
	}

	petition, err := s.petitions.FindByID(ctx, petitionID)
	if err != nil {
		return fmt.Errorf("error loading petition for threshold check: %w", err)
	}
	if !petition.Public {
		return nil
	}
	if petition.SignatureCount < int64(s.cfg.AlertMinSignatures) {
		return nil
	}
	if petition.LastFraudAlertAt != nil && time.Since(*petition.LastFraudAlertAt) < s.cfg.AlertThrottle {
		return nil
	}

	// The signer's own signature is excluded from the denominator so a
	// petition's first signature can never trip a ratio.
	denominator := petition.SignatureCount - 1
	if denominator <= 0 {
		return nil
	}

	crossed := crossedBounds(petition, s.cfg.FraudBounds, denominator)
	if len(crossed) == 0 {
		return nil
	}
	for range crossed {
		metrics.Event(metrics.EventAlertCrossed)
	}

	subject := fmt.Sprintf("Fraud threshold crossed on petition %q", petition.Title)
	body := buildThresholdAlertBody(petition, crossed, denominator)

	if err := s.alerts.SendThresholdAlert(ctx, subject, body); err != nil {
		log.WithError(err).WithField("petition", petition.ID.String()).Warn("Failed to send fraud threshold alert")
		metrics.Event(metrics.EventAlertFailed)
		return nil
	}
	metrics.Event(metrics.EventAlertSent)

	if err := s.petitions.StampFraudAlert(ctx, petition.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("error stamping fraud alert time: %w", err)
	}
	log.WithFields(log.Fields{
		"petition":   petition.ID.String(),
		"categories": len(crossed),
	}).Info("Fraud threshold alert sent")
	return nil
}

// crossing describes one bound violation for the alert body.
type crossing struct {
	Category models.MetricCategory
	Ratio    float64
	Bound    config.Bound
}

// crossedBounds walks the configured bounds in category order so the alert
// body lists crossings deterministically.
func crossedBounds(petition *models.Petition, bounds map[string]config.Bound, denominator int64) []crossing {
	cats := make([]string, 0, len(bounds))
	for cat := range bounds {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var crossed []crossing
	for _, cat := range cats {
		bound := bounds[cat]
		category := models.MetricCategory(cat)
		ratio := float64(petition.FraudMetrics.Count(category)) / float64(denominator)
		if bound.Lower != nil && ratio < *bound.Lower {
			crossed = append(crossed, crossing{Category: category, Ratio: ratio, Bound: bound})
			continue
		}
		if bound.Upper != nil && ratio > *bound.Upper {
			crossed = append(crossed, crossing{Category: category, Ratio: ratio, Bound: bound})
		}
	}
	return crossed
}

func buildThresholdAlertBody(petition *models.Petition, crossed []crossing, denominator int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Petition: %s (%s)\n", petition.Title, petition.ID)
	fmt.Fprintf(&b, "Signatures: %d\n\n", petition.SignatureCount)
	b.WriteString("Crossed bounds:\n")
	for _, c := range crossed {
		fmt.Fprintf(&b, "  %s: ratio %.4f (count %d / %d)",
			c.Category, c.Ratio, petition.FraudMetrics.Count(c.Category), denominator)
		if c.Bound.Lower != nil {
			fmt.Fprintf(&b, " lower bound %.4f", *c.Bound.Lower)
		}
		if c.Bound.Upper != nil {
			fmt.Fprintf(&b, " upper bound %.4f", *c.Bound.Upper)
		}
		b.WriteString("\n")
	}
	return b.String()
}
