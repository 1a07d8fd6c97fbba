package release

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainrfq "pdmrelease/internal/domain/rfq"
)

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: "release"}, nil
}

func TestEnqueueGenerate(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := newQueue(enq, "", time.Minute)

	id, err := q.EnqueueGenerate(context.Background(), " rfq-1 ")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskGenerate, enq.tasks[0].Type())

	var payload generatePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "rfq-1", payload.RFQID)

	dup := newQueue(&fakeEnqueuer{err: asynq.ErrDuplicateTask}, "release", time.Minute)
	_, err = dup.EnqueueGenerate(context.Background(), "rfq-1")
	require.ErrorIs(t, err, ErrGenerationInProgress)
}

func TestHandleGenerateTask(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")

	task, err := NewGenerateTask(rfq.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleGenerateTask(context.Background(), task))
	assert.Equal(t, domainrfq.StatusDraft, f.rfq(t, rfq.ID).Status)

	bad := asynq.NewTask(TaskGenerate, []byte("{"))
	assert.True(t, errors.Is(f.svc.HandleGenerateTask(context.Background(), bad), asynq.SkipRetry))

	missing, err := NewGenerateTask("missing")
	require.NoError(t, err)
	assert.True(t, errors.Is(f.svc.HandleGenerateTask(context.Background(), missing), asynq.SkipRetry))

	f.bridge.pingErr = errors.New("down")
	err = f.svc.HandleGenerateTask(context.Background(), task)
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
