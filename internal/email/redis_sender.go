package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
)

// Alert type markers embedded in subjects, used to key the mock store.
const (
	alertTypeTamper    = "tamper"
	alertTypeThreshold = "fraud_threshold"
	alertTypeUnknown   = "unknown"
)

// RedisSender stores emails in Redis instead of sending them. Used when
// MOCK_SERVICES is enabled so tests can assert on dispatched alerts.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a JSON representation of the email under a key derived from
// the primary recipient and the alert type guessed from the subject.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	alertType := alertTypeUnknown
	switch {
	case strings.Contains(subject, "Illegitimate"), strings.Contains(subject, "tampered"):
		alertType = alertTypeTamper
	case strings.Contains(subject, "Fraud threshold"), strings.Contains(subject, "threshold"):
		alertType = alertTypeThreshold
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":         strings.Join(to, ", "),
		"from":       s.cfg.SmtpFromAddress,
		"subject":    subject,
		"body":       string(rawMessage),
		"sent_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"alert_type": alertType,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, alertType)
	ttl := 5 * time.Minute

	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.WithFields(log.Fields{"key": key, "subject": subject}).Debug("Mock email stored in Redis")
	return nil
}
