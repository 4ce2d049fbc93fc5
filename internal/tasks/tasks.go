// Package tasks wires the batch pipeline and alert delivery into asynq.
// The scheduler enqueues a processing task on a fixed cadence; operators
// can also enqueue one on demand through the service API.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/email"
	"github.com/parastoo-62/petitions/internal/pipeline"
)

const (
	TypeSignatureProcess = "signatures:process"
	TypeAlertDeliver     = "alert:deliver"
)

// SignatureProcessPayload parameterizes one batch run.
type SignatureProcessPayload struct {
	JobID     string `json:"job_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// AlertDeliverPayload carries a pre-rendered alert email. Delivery retries
// ride on asynq's backoff instead of blocking the batch worker.
type AlertDeliverPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// IAsynqClient is the slice of asynq.Client the enqueue helpers need.
// Tests substitute a fake.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient returns an asynq client on the given Redis connection.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// EnqueueSignatureProcess queues one batch run.
func EnqueueSignatureProcess(ctx context.Context, client IAsynqClient, payload SignatureProcessPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process payload: %w", err)
	}
	// Unique per queue so a slow batch is not stacked behind duplicates.
	return client.EnqueueContext(ctx, asynq.NewTask(TypeSignatureProcess, data),
		asynq.Queue("default"), asynq.Unique(time.Minute))
}

// EnqueueAlertDeliver queues an alert email for delivery with retries.
func EnqueueAlertDeliver(ctx context.Context, client IAsynqClient, payload AlertDeliverPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	return client.EnqueueContext(ctx, asynq.NewTask(TypeAlertDeliver, data),
		asynq.Queue("critical"), asynq.MaxRetry(5))
}

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	processor   *pipeline.Processor
	emailSender email.Sender
}

func NewTaskProcessor(cfg *config.Config, processor *pipeline.Processor, emailSender email.Sender) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		processor:   processor,
		emailSender: emailSender,
	}
}

// HandleSignatureProcessTask runs one batch of the signature pipeline.
func (p *TaskProcessor) HandleSignatureProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload SignatureProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal process payload: %v: %w", err, asynq.SkipRetry)
	}

	result := p.processor.ProcessSignatures(ctx, payload.JobID, pipeline.Options{
		BatchSize: payload.BatchSize,
		WorkerID:  "asynq",
	})
	switch result.Status {
	case pipeline.StatusOK:
		return nil
	case pipeline.StatusForbidden, pipeline.StatusBadRequest:
		// Operator turned processing off or the payload is malformed;
		// retrying the same task cannot help.
		return fmt.Errorf("batch run rejected (%s): %w", result.Status, asynq.SkipRetry)
	default:
		return fmt.Errorf("batch run %s failed with status %s", result.JobID, result.Status)
	}
}

// HandleAlertDeliverTask sends a queued alert email.
func (p *TaskProcessor) HandleAlertDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload AlertDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal alert payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.To) == 0 {
		return fmt.Errorf("alert task has no recipients: %w", asynq.SkipRetry)
	}

	msg := email.BuildMessage(p.cfg.SmtpFromAddress, payload.To, payload.Subject, payload.Body)
	if err := p.emailSender.Send(ctx, payload.To, payload.Subject, msg); err != nil {
		log.WithError(err).WithField("subject", payload.Subject).Warn("Alert delivery failed, will retry")
		return err
	}
	return nil
}

// NewServer configures the asynq server. The caller runs it.
func NewServer(cfg *config.Config, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			// One batch at a time; batch runs already fan out across
			// records, and the unique indexes keep overlapping runs
			// correct but wasteful.
			Concurrency: 1,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithError(err).WithField("task", task.Type()).Error("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSignatureProcess, processor.HandleSignatureProcessTask)
	mux.HandleFunc(TypeAlertDeliver, processor.HandleAlertDeliverTask)
	return srv, mux
}

// NewScheduler enqueues a batch run on the configured cadence.
func NewScheduler(cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	data, err := json.Marshal(SignatureProcessPayload{})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scheduler payload: %w", err)
	}
	spec := fmt.Sprintf("@every %s", cfg.ProcessInterval)
	entryID, err := scheduler.Register(spec, asynq.NewTask(TypeSignatureProcess, data),
		asynq.Queue("default"), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to register processing schedule: %w", err)
	}
	log.WithFields(log.Fields{"entry": entryID, "interval": cfg.ProcessInterval.String()}).
		Info("Registered signature processing schedule")
	return scheduler, nil
}
