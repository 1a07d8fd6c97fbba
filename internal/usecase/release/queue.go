package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

// TaskGenerate is the asynq task type of a queued generation batch.
const TaskGenerate = "release:generate"

const defaultQueueName = "release"

type generatePayload struct {
	RFQID string `json:"rfq_id"`
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue defers generation batches to the worker. At most one batch per RFQ
// is pending at a time.
type Queue struct {
	client    taskEnqueuer
	queueName string
	uniqueTTL time.Duration
}

func NewQueue(client *asynq.Client, queueName string, uniqueTTL time.Duration) *Queue {
	return newQueue(client, queueName, uniqueTTL)
}

func newQueue(client taskEnqueuer, queueName string, uniqueTTL time.Duration) *Queue {
	name := strings.TrimSpace(queueName)
	if name == "" {
		name = defaultQueueName
	}
	if uniqueTTL <= 0 {
		uniqueTTL = defaultLockTTL
	}
	return &Queue{client: client, queueName: name, uniqueTTL: uniqueTTL}
}

func NewGenerateTask(rfqID string) (*asynq.Task, error) {
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(generatePayload{RFQID: rfqID})
	if err != nil {
		return nil, errs.Wrap(err, "marshal generate payload")
	}
	return asynq.NewTask(TaskGenerate, payload), nil
}

// EnqueueGenerate queues a batch for rfqID and returns the task id. A batch
// already pending for the RFQ yields ErrGenerationInProgress.
func (q *Queue) EnqueueGenerate(ctx context.Context, rfqID string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	task, err := NewGenerateTask(rfqID)
	if err != nil {
		return "", err
	}

	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queueName),
		asynq.Unique(q.uniqueTTL),
		asynq.MaxRetry(3),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", ErrGenerationInProgress
		}
		return "", errs.Wrap(err, "enqueue generate task")
	}
	return info.ID, nil
}

// HandleGenerateTask is the asynq handler for TaskGenerate. An unavailable
// bridge is retried; a batch already running or an RFQ past ready is dropped.
func (s *Service) HandleGenerateTask(ctx context.Context, task *asynq.Task) error {
	var payload generatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskGenerate, err, asynq.SkipRetry)
	}

	result, err := s.GenerateReleaseFiles(ctx, payload.RFQID)
	if err != nil {
		if errors.Is(err, ErrGenerationInProgress) || errors.Is(err, ports.ErrRFQNotFound) || errors.Is(err, domainrfq.ErrStatusTransition) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logging.Info(logContext(ctx, payload.RFQID), "queued release generation done",
		slog.String("summary", result.Summary()),
	)
	return nil
}
