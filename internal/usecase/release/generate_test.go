package release

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
)

func TestGenerateReleaseFilesStatusFold(t *testing.T) {
	cases := []struct {
		name          string
		withSupplier  bool
		failDrawing   bool
		wantStatus    domainrfq.Status
		wantGenerated bool
	}{
		{name: "all generated with supplier", withSupplier: true, wantStatus: domainrfq.StatusReady, wantGenerated: true},
		{name: "all generated without supplier", wantStatus: domainrfq.StatusDraft, wantGenerated: true},
		{name: "failure with supplier", withSupplier: true, failDrawing: true, wantStatus: domainrfq.StatusPendingFiles},
		{name: "failure without supplier", failDrawing: true, wantStatus: domainrfq.StatusPendingFiles},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rfq := f.createRFQ(t)
			f.addItem(t, rfq.ID, "Parts/bracket.sldprt", "PN-1")
			f.addItem(t, rfq.ID, "Drawings/bracket.slddrw", "PN-1")
			if tc.withSupplier {
				f.addSupplier(t, rfq.ID)
			}
			if tc.failDrawing {
				f.bridge.fail = failFor("slddrw")
			}

			result, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
			require.NoError(t, err)

			assert.Equal(t, tc.wantStatus, result.NewStatus)
			got := f.rfq(t, rfq.ID)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantGenerated, got.ReleaseFilesGenerated)
			if tc.wantGenerated {
				assert.NotNil(t, got.ReleaseFilesGeneratedAt)
			} else {
				assert.Nil(t, got.ReleaseFilesGeneratedAt)
			}
		})
	}
}

func TestGenerateReleaseFilesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	f.addItem(t, rfq.ID, "Drawings/a.slddrw", "PN-1")
	f.addSupplier(t, rfq.ID)

	first, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.SuccessCount)
	assert.Equal(t, "Generated 2 files, 0 failed", first.Summary())
	before := f.items(t, rfq.ID)

	second, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SuccessCount)
	assert.Equal(t, 0, second.FailureCount)
	assert.Equal(t, domainrfq.StatusReady, second.NewStatus)
	assert.Equal(t, 2, f.bridge.callCount())

	after := f.items(t, rfq.ID)
	for i := range before {
		assert.Equal(t, before[i].Step, after[i].Step, "step record of line %d", i+1)
		assert.Equal(t, before[i].PDF, after[i].PDF, "pdf record of line %d", i+1)
	}
}

func TestGenerateReleaseFilesIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/one.sldprt", "PN-1")
	broken := f.addItem(t, rfq.ID, "Parts/two.sldprt", "PN-2")
	f.addItem(t, rfq.ID, "Parts/three.sldasm", "PN-3")
	f.addSupplier(t, rfq.ID)
	f.bridge.fail = failFor("two.sldprt")

	result, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, domainrfq.StatusPendingFiles, result.NewStatus)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID, result.Failures[0].ItemID)
	assert.Equal(t, 2, result.Failures[0].LineNumber)
	assert.Contains(t, result.Failures[0].Message, "model could not be opened")

	items := f.items(t, rfq.ID)
	assert.True(t, items[0].Step.Generated)
	assert.False(t, items[1].Step.Generated)
	assert.Nil(t, items[1].Step.Path)
	assert.True(t, items[2].Step.Generated)
}

func TestGenerateReleaseFilesCountsErrorsAndPanics(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/err.sldprt", "PN-1")
	f.addItem(t, rfq.ID, "Parts/panic.sldprt", "PN-2")
	f.addItem(t, rfq.ID, "Parts/nopath.sldprt", "PN-3")
	f.addItem(t, rfq.ID, "Parts/ok.sldprt", "PN-4")
	f.bridge.fail = func(req ports.ExportRequest) (ports.ExportResult, bool, error) {
		switch {
		case strings.Contains(req.SourceFilePath, "err.sldprt"):
			return ports.ExportResult{}, true, errors.New("bridge timeout")
		case strings.Contains(req.SourceFilePath, "panic.sldprt"):
			panic("bridge crashed")
		case strings.Contains(req.SourceFilePath, "nopath.sldprt"):
			return ports.ExportResult{Success: true}, true, nil
		}
		return ports.ExportResult{}, false, nil
	}

	result, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 3, result.FailureCount)
	require.Len(t, result.Failures, 3)
	assert.Contains(t, result.Failures[0].Message, "bridge timeout")
	assert.Contains(t, result.Failures[1].Message, "panic: bridge crashed")
	assert.Contains(t, result.Failures[2].Message, "no output path")
	assert.Equal(t, domainrfq.StatusPendingFiles, f.rfq(t, rfq.ID).Status)
}

func TestGenerateReleaseFilesSkipsIneligibleItems(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Docs/notes.txt", "PN-DOC")
	f.addItem(t, rfq.ID, "Exports/legacy.stp", "PN-STP")
	f.addSupplier(t, rfq.ID)

	result, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	assert.Equal(t, 0, f.bridge.callCount())
	assert.Equal(t, domainrfq.StatusReady, result.NewStatus)
}

func TestGenerateReleaseFilesServiceUnavailable(t *testing.T) {
	t.Run("bridge unreachable", func(t *testing.T) {
		f := newFixture(t)
		rfq := f.createRFQ(t)
		f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
		f.bridge.pingErr = errors.New("connection refused")

		_, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
		require.ErrorIs(t, err, ErrServiceUnavailable)

		assert.Equal(t, domainrfq.StatusPendingFiles, f.rfq(t, rfq.ID).Status)
		assert.Equal(t, 0, f.bridge.callCount())
		assert.Empty(t, f.notifier.events)

		ok, err := f.lock.TryAcquire(context.Background(), rfq.ID, "someone-else", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "guard must not be retained")
	})

	t.Run("workdir root missing", func(t *testing.T) {
		f := newFixture(t)
		rfq := f.createRFQ(t)
		f.svc.opts.WorkdirRoot = "  "

		_, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
		require.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Equal(t, domainrfq.StatusDraft, f.rfq(t, rfq.ID).Status)
	})
}

func TestGenerateReleaseFilesRejectsConcurrentBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")

	ok, err := f.lock.TryAcquire(ctx, rfq.ID, "other-batch", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.ErrorIs(t, err, ErrGenerationInProgress)
	assert.Equal(t, 0, f.bridge.callCount())
	assert.Equal(t, domainrfq.StatusPendingFiles, f.rfq(t, rfq.ID).Status)

	require.NoError(t, f.lock.Release(ctx, rfq.ID, "other-batch"))
	result, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
}

func TestGenerateReleaseFilesPublishesEvents(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")

	_, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, ports.ReleaseEventGenerating, f.notifier.events[0].Kind)
	assert.Equal(t, ports.ReleaseEventGenerated, f.notifier.events[1].Kind)
	assert.Equal(t, 1, f.notifier.events[1].SuccessCount)
	assert.Equal(t, rfq.Number, f.notifier.events[1].RFQNumber)
}

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBridge) Export(ctx context.Context, req ports.ExportRequest) (ports.ExportResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ports.ExportResult), args.Error(1)
}

func TestGenerateReleaseFilesBuildsBridgeRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)

	_, err := f.svc.AddLineItem(ctx, AddLineItemInput{
		RFQID:         rfq.ID,
		SourcePath:    "Parts/Sub/a.SLDPRT",
		PartNumber:    "PN-1",
		Revision:      "C",
		Quantity:      4,
		Configuration: "Machined",
	})
	require.NoError(t, err)
	_, err = f.svc.AddLineItem(ctx, AddLineItemInput{
		RFQID:         rfq.ID,
		SourcePath:    "Drawings/a.slddrw",
		PartNumber:    "PN-1",
		Quantity:      4,
		Configuration: "ignored for drawings",
	})
	require.NoError(t, err)

	bridge := new(mockBridge)
	bridge.On("Ping", mock.Anything).Return(nil)
	bridge.On("Export", mock.Anything, mock.MatchedBy(func(req ports.ExportRequest) bool {
		return req.Kind == domainrfq.ExportStep &&
			req.SourceFilePath == `C:\Vault\Parts\Sub\a.SLDPRT` &&
			req.PartNumber == "PN-1" &&
			req.Revision != nil && *req.Revision == "C" &&
			req.Configuration == "Machined"
	})).Return(ports.ExportResult{Success: true, OutputPath: `C:\Vault\out\PN-1_REVC.step`, FileSize: 10}, nil).Once()
	bridge.On("Export", mock.Anything, mock.MatchedBy(func(req ports.ExportRequest) bool {
		return req.Kind == domainrfq.ExportPDF &&
			req.SourceFilePath == `C:\Vault\Drawings\a.slddrw` &&
			req.Revision == nil &&
			req.Configuration == ""
	})).Return(ports.ExportResult{Success: true, OutputPath: `C:\Vault\out\PN-1.pdf`, FileSize: 20}, nil).Once()

	f.svc.bridge = bridge
	f.svc.opts.WorkdirRoot = `C:\Vault\`

	result, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	bridge.AssertExpectations(t)

	items := f.items(t, rfq.ID)
	require.NotNil(t, items[0].Step.Path)
	assert.Equal(t, `C:\Vault\out\PN-1_REVC.step`, *items[0].Step.Path)
	require.NotNil(t, items[1].PDF.Size)
	assert.Equal(t, int64(20), *items[1].PDF.Size)
}

func TestGenerateReleaseFilesRunsToCompletionAfterCallerCancel(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	f.addItem(t, rfq.ID, "Parts/b.sldprt", "PN-2")
	f.addItem(t, rfq.ID, "Parts/c.sldprt", "PN-3")
	f.addSupplier(t, rfq.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	f.bridge.fail = func(ports.ExportRequest) (ports.ExportResult, bool, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return ports.ExportResult{}, false, nil
	}

	result, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 3, f.bridge.callCount())
	assert.Equal(t, domainrfq.StatusReady, f.rfq(t, rfq.ID).Status)
	for _, item := range f.items(t, rfq.ID) {
		assert.NotNil(t, item.Step.Path, "line %d", item.LineNumber)
	}

	ok, err := f.lock.TryAcquire(context.Background(), rfq.ID, "next-batch", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock still held after batch")
}

type refreshCountingLock struct {
	ports.GenerationLock
	refreshes atomic.Int32
}

func (l *refreshCountingLock) Refresh(ctx context.Context, rfqID, owner string, ttl time.Duration) (bool, error) {
	l.refreshes.Add(1)
	return l.GenerationLock.Refresh(ctx, rfqID, owner, ttl)
}

func TestGenerateReleaseFilesKeepsLockBeyondTTL(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	f.addItem(t, rfq.ID, "Parts/b.sldprt", "PN-2")

	counting := &refreshCountingLock{GenerationLock: f.lock}
	f.svc.lock = counting
	f.svc.opts.LockTTL = 30 * time.Millisecond

	var secondErr error
	first := true
	f.bridge.fail = func(ports.ExportRequest) (ports.ExportResult, bool, error) {
		if !first {
			return ports.ExportResult{}, false, nil
		}
		first = false
		deadline := time.Now().Add(2 * time.Second)
		for counting.refreshes.Load() < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		_, secondErr = f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
		return ports.ExportResult{}, false, nil
	}

	result, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.GreaterOrEqual(t, counting.refreshes.Load(), int32(3))
	require.ErrorIs(t, secondErr, ErrGenerationInProgress)
	assert.Equal(t, 2, f.bridge.callCount())
}

func TestGenerateReleaseFilesLeavesUserStatusAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	f.addSupplier(t, rfq.ID)

	_, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(ctx, rfq.ID)
	require.NoError(t, err)

	_, err = f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.ErrorIs(t, err, domainrfq.ErrStatusTransition)
	assert.Equal(t, domainrfq.StatusSent, f.rfq(t, rfq.ID).Status)
	assert.Equal(t, 1, f.bridge.callCount())
}

func TestGenerateReleaseFilesRecoversStaleGeneratingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	require.NoError(t, f.repo.SetRFQStatus(ctx, rfq.ID, domainrfq.StatusGenerating, time.Now()))

	result, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, domainrfq.StatusDraft, result.NewStatus)
	assert.Equal(t, domainrfq.StatusDraft, f.rfq(t, rfq.ID).Status)
}

var errStoreDown = errors.New("store down")

type failingWriteRepo struct {
	ports.RFQRepository
	failItemExport  bool
	failReleaseSave bool
}

func (r failingWriteRepo) SetItemExport(ctx context.Context, itemID string, kind domainrfq.ExportKind, record domainrfq.ExportRecord, updatedAt time.Time) error {
	if r.failItemExport {
		return errStoreDown
	}
	return r.RFQRepository.SetItemExport(ctx, itemID, kind, record, updatedAt)
}

func (r failingWriteRepo) UpdateRFQReleaseState(ctx context.Context, input ports.ReleaseStateUpdate) error {
	if r.failReleaseSave {
		return errStoreDown
	}
	return r.RFQRepository.UpdateRFQReleaseState(ctx, input)
}

func TestGenerateReleaseFilesRestoresStatusAfterStoreFailure(t *testing.T) {
	cases := []struct {
		name       string
		repo       func(base ports.RFQRepository) ports.RFQRepository
		wantStatus domainrfq.Status
	}{
		{
			name: "item export write fails",
			repo: func(base ports.RFQRepository) ports.RFQRepository {
				return failingWriteRepo{RFQRepository: base, failItemExport: true}
			},
			wantStatus: domainrfq.StatusPendingFiles,
		},
		{
			name: "release state write fails",
			repo: func(base ports.RFQRepository) ports.RFQRepository {
				return failingWriteRepo{RFQRepository: base, failReleaseSave: true}
			},
			wantStatus: domainrfq.StatusReady,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rfq := f.createRFQ(t)
			f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
			f.addSupplier(t, rfq.ID)
			f.svc.repo = tc.repo(f.repo)

			_, err := f.svc.GenerateReleaseFiles(context.Background(), rfq.ID)
			require.ErrorIs(t, err, errStoreDown)

			stored := f.rfq(t, rfq.ID)
			assert.NotEqual(t, domainrfq.StatusGenerating, stored.Status)
			assert.Equal(t, tc.wantStatus, stored.Status)

			ok, err := f.lock.TryAcquire(context.Background(), rfq.ID, "next-batch", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}
