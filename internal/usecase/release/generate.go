package release

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

// ItemFailure describes one (item, kind) export that did not produce a file.
type ItemFailure struct {
	ItemID     string
	LineNumber int
	Kind       domainrfq.ExportKind
	Message    string
}

type GenerateResult struct {
	SuccessCount int
	FailureCount int
	NewStatus    domainrfq.Status
	Failures     []ItemFailure
}

func (r GenerateResult) Summary() string {
	return fmt.Sprintf("Generated %d files, %d failed", r.SuccessCount, r.FailureCount)
}

// GenerateReleaseFiles exports every missing STEP/PDF deliverable of the RFQ
// through the export bridge, one (item, kind) at a time in line order, and
// folds the outcome into the RFQ status.
//
// Per-item failures are counted and reported in the result; they never abort
// the batch. The returned error is reserved for conditions that stop the batch
// as a whole: ErrServiceUnavailable, ErrGenerationInProgress and
// ErrStatusTransition (the RFQ is past ready) before any mutation, or a
// persistence failure.
func (s *Service) GenerateReleaseFiles(ctx context.Context, rfqID string) (GenerateResult, error) {
	if err := checkContext(ctx); err != nil {
		return GenerateResult{}, err
	}
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return GenerateResult{}, err
	}
	logCtx := logContext(ctx, rfqID)

	if err := s.checkAvailable(ctx); err != nil {
		logging.Warn(logCtx, "release generation unavailable", slog.Any("err", errs.Loggable(err)))
		return GenerateResult{}, err
	}

	owner := s.newID()
	acquired, err := s.lock.TryAcquire(ctx, rfqID, owner, s.opts.LockTTL)
	if err != nil {
		return GenerateResult{}, errs.Wrap(err, "acquire generation lock")
	}
	if !acquired {
		return GenerateResult{}, ErrGenerationInProgress
	}

	// Once the guard is held the batch runs to completion even if the caller
	// goes away. Each bridge call is bounded by the bridge's own timeout.
	runCtx := context.WithoutCancel(logCtx)
	stopHeartbeat := s.keepLock(runCtx, rfqID, owner)
	defer func() {
		stopHeartbeat()
		if err := s.lock.Release(runCtx, rfqID, owner); err != nil {
			logging.Warn(runCtx, "release generation lock failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	rfq, err := s.repo.GetRFQ(runCtx, rfqID)
	if err != nil {
		return GenerateResult{}, errs.Wrap(err, "load rfq")
	}
	// Statuses past ready are set by the user and are not re-derived.
	if !rfq.Status.IsReleaseStage() && rfq.Status != domainrfq.StatusGenerating {
		return GenerateResult{}, fmt.Errorf("%w: %s is %s", domainrfq.ErrStatusTransition, rfq.Number, rfq.Status)
	}

	items, err := s.repo.ListItemsForRFQ(runCtx, rfqID)
	if err != nil {
		return GenerateResult{}, errs.Wrap(err, "load rfq items")
	}

	started := s.now()
	if err := s.repo.SetRFQStatus(runCtx, rfqID, domainrfq.StatusGenerating, started); err != nil {
		return GenerateResult{}, errs.Wrap(err, "mark rfq generating")
	}
	s.notify(runCtx, ports.ReleaseEvent{
		Kind:      ports.ReleaseEventGenerating,
		RFQID:     rfqID,
		RFQNumber: rfq.Number,
		Status:    domainrfq.StatusGenerating,
	})
	logging.Info(runCtx, "release generation started", slog.Int("items", len(items)))

	result := GenerateResult{}
	for _, item := range items {
		for _, kind := range item.PendingExports() {
			output, exportErr := s.exportOne(runCtx, item, kind)
			if exportErr != nil {
				result.FailureCount++
				result.Failures = append(result.Failures, ItemFailure{
					ItemID:     item.ID,
					LineNumber: item.LineNumber,
					Kind:       kind,
					Message:    exportErr.Error(),
				})
				logging.Warn(runCtx, "export failed",
					slog.String("item_id", item.ID),
					slog.Int("line", item.LineNumber),
					slog.String("kind", string(kind)),
					slog.Any("err", errs.Loggable(exportErr)),
				)
				continue
			}

			record := domainrfq.GeneratedRecord(output.OutputPath, output.FileSize)
			if err := s.repo.SetItemExport(runCtx, item.ID, kind, record, s.now()); err != nil {
				s.restoreStatus(runCtx, rfq)
				return result, errs.Wrapf(err, "persist %s export for item %s", kind, item.ID)
			}
			result.SuccessCount++
			logging.Debug(runCtx, "export stored",
				slog.String("item_id", item.ID),
				slog.String("kind", string(kind)),
				slog.String("path", output.OutputPath),
			)
		}
	}

	supplierCount, err := s.repo.CountSuppliers(runCtx, rfqID)
	if err != nil {
		s.restoreStatus(runCtx, rfq)
		return result, errs.Wrap(err, "count suppliers")
	}

	allGenerated := result.FailureCount == 0
	result.NewStatus = domainrfq.ResolveReleaseStatus(allGenerated, supplierCount)

	finished := s.now()
	update := ports.ReleaseStateUpdate{
		RFQID:     rfqID,
		Status:    result.NewStatus,
		Generated: allGenerated,
		UpdatedAt: finished,
	}
	if allGenerated {
		update.GeneratedAt = &finished
	}
	if err := s.repo.UpdateRFQReleaseState(runCtx, update); err != nil {
		s.restoreStatus(runCtx, rfq)
		return result, errs.Wrap(err, "persist release state")
	}

	s.metrics.ObserveBatch(result.NewStatus, result.SuccessCount, result.FailureCount, finished.Sub(started))
	s.notify(runCtx, ports.ReleaseEvent{
		Kind:         ports.ReleaseEventGenerated,
		RFQID:        rfqID,
		RFQNumber:    rfq.Number,
		Status:       result.NewStatus,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
	})
	logging.Info(runCtx, "release generation finished",
		slog.Int("generated", result.SuccessCount),
		slog.Int("failed", result.FailureCount),
		slog.String("status", string(result.NewStatus)),
	)
	return result, nil
}

// CheckAvailability reports ErrServiceUnavailable when generation could not
// start right now.
func (s *Service) CheckAvailability(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.checkAvailable(ctx)
}

func (s *Service) checkAvailable(ctx context.Context) error {
	if strings.TrimSpace(s.opts.WorkdirRoot) == "" {
		return fmt.Errorf("%w: working directory root is not configured", ErrServiceUnavailable)
	}
	if s.bridge == nil {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, ports.ErrBridgeNotConfigured)
	}
	if err := s.bridge.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return nil
}

// exportOne drives a single bridge call. Bridge errors, panics, unsuccessful
// results and results without an output path all come back as errors.
func (s *Service) exportOne(ctx context.Context, item ports.LineItem, kind domainrfq.ExportKind) (result ports.ExportResult, err error) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errs.FromPanic(recovered)
		}
		s.metrics.ObserveExport(kind, err == nil, time.Since(started))
	}()

	req := ports.ExportRequest{
		SourceFilePath: domainrfq.JoinWorkdirPath(s.opts.WorkdirRoot, item.Source.RelativePath),
		Kind:           kind,
		PartNumber:     item.EffectivePartNumber(),
	}
	if rev := item.EffectiveRevision(); rev != "" {
		req.Revision = &rev
	}
	if kind == domainrfq.ExportStep && domainrfq.ClassifyExtension(item.Source.Extension).IsModel() {
		req.Configuration = strings.TrimSpace(item.Configuration)
	}

	result, err = s.bridge.Export(ctx, req)
	if err != nil {
		return result, fmt.Errorf("%w: %w", domainrfq.ErrExportFailed, err)
	}
	if !result.Success {
		msg := strings.TrimSpace(result.Error)
		if msg == "" {
			msg = "bridge reported failure"
		}
		return result, fmt.Errorf("%w: %s", domainrfq.ErrExportFailed, msg)
	}
	if strings.TrimSpace(result.OutputPath) == "" {
		return result, fmt.Errorf("%w: bridge returned no output path", domainrfq.ErrExportFailed)
	}
	return result, nil
}

// keepLock refreshes the generation lock every third of its ttl until the
// returned stop function is called.
func (s *Service) keepLock(ctx context.Context, rfqID, owner string) (stop func()) {
	interval := s.opts.LockTTL / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	heartbeatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
			}
			held, err := s.lock.Refresh(heartbeatCtx, rfqID, owner, s.opts.LockTTL)
			if heartbeatCtx.Err() != nil {
				return
			}
			switch {
			case err != nil:
				logging.Warn(ctx, "refresh generation lock failed", slog.Any("err", errs.Loggable(err)))
			case !held:
				logging.Warn(ctx, "generation lock lost while batch is running")
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// restoreStatus moves the RFQ out of generating after a persistence failure.
// It re-derives the status from what is stored and falls back to the status
// the RFQ had before the batch.
func (s *Service) restoreStatus(ctx context.Context, before ports.RFQ) {
	restoreCtx := context.WithoutCancel(ctx)

	status := before.Status
	if snapshot, err := s.releaseSnapshot(restoreCtx, before); err == nil {
		status = domainrfq.DeriveStatus(snapshot)
	}
	if status == "" || status == domainrfq.StatusGenerating {
		status = domainrfq.StatusPendingFiles
	}
	if err := s.repo.SetRFQStatus(restoreCtx, before.ID, status, s.now()); err != nil {
		logging.Error(ctx, "restore rfq status failed",
			slog.String("status", string(status)),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

// releaseSnapshot reads what the aggregate status is derived from.
func (s *Service) releaseSnapshot(ctx context.Context, rfq ports.RFQ) (domainrfq.ReleaseSnapshot, error) {
	items, err := s.repo.ListItemsForRFQ(ctx, rfq.ID)
	if err != nil {
		return domainrfq.ReleaseSnapshot{}, err
	}
	suppliers, err := s.repo.CountSuppliers(ctx, rfq.ID)
	if err != nil {
		return domainrfq.ReleaseSnapshot{}, err
	}
	snapshot := domainrfq.ReleaseSnapshot{
		Current:       rfq.Status,
		ItemCount:     len(items),
		SupplierCount: suppliers,
	}
	for _, item := range items {
		snapshot.PendingExports += len(item.PendingExports())
	}
	return snapshot, nil
}
