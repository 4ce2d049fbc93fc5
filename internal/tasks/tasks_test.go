package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/pipeline"
)

type recordingSender struct {
	to      []string
	subject string
	err     error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.to = to
	r.subject = subject
	return r.err
}

func TestHandleSignatureProcessTaskBadPayload(t *testing.T) {
	p := NewTaskProcessor(&config.Config{}, nil, nil)
	task := asynq.NewTask(TypeSignatureProcess, []byte("{not json"))

	err := p.HandleSignatureProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSignatureProcessTaskDisabled(t *testing.T) {
	cfg := &config.Config{ProcessingEnabled: false, BatchSize: 10}
	proc := pipeline.NewProcessor(cfg, nil, nil, nil, nil, nil, nil, nil)
	p := NewTaskProcessor(cfg, proc, nil)

	data, err := json.Marshal(SignatureProcessPayload{})
	require.NoError(t, err)

	err = p.HandleSignatureProcessTask(context.Background(), asynq.NewTask(TypeSignatureProcess, data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleAlertDeliverTask(t *testing.T) {
	sender := &recordingSender{}
	p := NewTaskProcessor(&config.Config{SmtpFromAddress: "noreply@example.com"}, nil, sender)

	data, err := json.Marshal(AlertDeliverPayload{
		To:      []string{"ops@example.com"},
		Subject: "Fraud threshold crossed",
		Body:    "details",
	})
	require.NoError(t, err)

	err = p.HandleAlertDeliverTask(context.Background(), asynq.NewTask(TypeAlertDeliver, data))
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, sender.to)
	assert.Equal(t, "Fraud threshold crossed", sender.subject)
}

func TestHandleAlertDeliverTaskNoRecipients(t *testing.T) {
	p := NewTaskProcessor(&config.Config{}, nil, &recordingSender{})

	data, err := json.Marshal(AlertDeliverPayload{Subject: "x"})
	require.NoError(t, err)

	err = p.HandleAlertDeliverTask(context.Background(), asynq.NewTask(TypeAlertDeliver, data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
