package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
)

// FileEmailSender appends email content to a log file. Enabled via
// LOG_EMAILS, usually alongside the primary sender through the composite.
type FileEmailSender struct {
	filePath string
	cfg      *config.Config
}

// NewFileEmailSender creates a FileEmailSender and ensures its directory
// exists.
func NewFileEmailSender(filePath string, cfg *config.Config) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileEmailSender{
		filePath: filePath,
		cfg:      cfg,
	}, nil
}

// Send appends the raw message to the configured file.
func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	timestamp := time.Now().Format(time.RFC3339Nano)

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.WithError(err).WithField("path", s.filePath).Warn("FileEmailSender: failed to open log file")
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- Email logged at %s (To: %v, Subject: %s) ---\n", timestamp, to, subject)
	full := append([]byte(entry), rawMessage...)
	full = append(full, []byte("--- End logged email ---\n\n")...)

	if _, err := file.Write(full); err != nil {
		log.WithError(err).WithField("path", s.filePath).Warn("FileEmailSender: failed to write log file")
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	return nil
}
