package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/email"
	"github.com/parastoo-62/petitions/internal/metrics"
)

// IAlertService delivers operator email. Operator alerts (tampered records)
// are fire-and-forget and rate limited so a flood of bad records cannot
// swamp the inbox or stall the batch. Threshold alerts are synchronous so
// the caller knows whether delivery happened before stamping the throttle.
type IAlertService interface {
	DispatchOperatorAlert(subject, body string)
	SendThresholdAlert(ctx context.Context, subject, body string) error
}

// AlertEnqueueFunc hands an operator alert to the background queue for
// delivery with retries. Declared here so the service layer does not
// depend on the task package.
type AlertEnqueueFunc func(ctx context.Context, to []string, subject, body string) error

type alertService struct {
	cfg     *config.Config
	sender  email.Sender
	enqueue AlertEnqueueFunc
	limiter *rate.Limiter
}

const operatorSendTimeout = 10 * time.Second

func NewAlertService(cfg *config.Config, sender email.Sender, enqueue AlertEnqueueFunc) IAlertService {
	perMinute := cfg.OpsAlertPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	burst := cfg.OpsAlertBurst
	if burst <= 0 {
		burst = 3
	}
	return &alertService{
		cfg:     cfg,
		sender:  sender,
		enqueue: enqueue,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (s *alertService) DispatchOperatorAlert(subject, body string) {
	if len(s.cfg.OpsAlertRecipients) == 0 {
		return
	}
	if s.enqueue == nil && s.sender == nil {
		return
	}
	if !s.limiter.Allow() {
		log.WithField("subject", subject).Debug("Operator alert dropped by rate limiter")
		return
	}
	fullSubject := s.cfg.AlertSubjectPrefix + " " + subject

	if s.enqueue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), operatorSendTimeout)
		defer cancel()
		if err := s.enqueue(ctx, s.cfg.OpsAlertRecipients, fullSubject, body); err != nil {
			log.WithError(err).WithField("subject", subject).Warn("Failed to enqueue operator alert")
			metrics.Event(metrics.EventAlertFailed)
		}
		return
	}

	// No queue wired, deliver directly off the caller's path.
	msg := email.BuildMessage(s.cfg.SmtpFromAddress, s.cfg.OpsAlertRecipients, fullSubject, body)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), operatorSendTimeout)
		defer cancel()
		if err := s.sender.Send(ctx, s.cfg.OpsAlertRecipients, fullSubject, msg); err != nil {
			log.WithError(err).WithField("subject", subject).Warn("Failed to send operator alert")
			metrics.Event(metrics.EventAlertFailed)
		}
	}()
}

func (s *alertService) SendThresholdAlert(ctx context.Context, subject, body string) error {
	if s.sender == nil {
		return fmt.Errorf("no alert sender configured")
	}
	if len(s.cfg.AlertRecipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}
	fullSubject := s.cfg.AlertSubjectPrefix + " " + subject
	msg := email.BuildMessage(s.cfg.SmtpFromAddress, s.cfg.AlertRecipients, fullSubject, body)

	if err := s.sender.Send(ctx, s.cfg.AlertRecipients, fullSubject, msg); err != nil {
		return fmt.Errorf("error sending threshold alert: %w", err)
	}
	return nil
}
