package release

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type PackageResult struct {
	ArchivePath           string
	FileCount             int
	OrderDocumentIncluded bool
	// Published is the object store location, empty when not published.
	Published string
}

type packageCandidate struct {
	item ports.LineItem
	kind domainrfq.ExportKind
	path string
}

// GeneratePackage bundles the generated deliverables of items and a rendered
// order document into {output root}/{rfq}/{rfq}_release.zip.
//
// Without any item carrying a STEP or PDF path it returns ErrNothingToPackage
// and writes nothing. Deliverables missing on disk are skipped and a failed
// order document is left out; both are logged. Archive failures return
// ErrArchiveWrite and leave any previous archive in place.
func (s *Service) GeneratePackage(ctx context.Context, rfq ports.RFQ, items []ports.LineItem) (PackageResult, error) {
	if err := checkContext(ctx); err != nil {
		return PackageResult{}, err
	}
	logCtx := logContext(ctx, rfq.ID)

	candidates := packageCandidates(items)
	if len(candidates) == 0 {
		logging.Warn(logCtx, "nothing to package")
		return PackageResult{}, ErrNothingToPackage
	}

	taken := make(map[string]struct{}, len(candidates)+1)
	entries := make([]ports.ArchiveEntry, 0, len(candidates)+1)
	for _, c := range candidates {
		if _, err := os.Stat(c.path); err != nil {
			logging.Warn(logCtx, "release file missing, skipped",
				slog.String("item_id", c.item.ID),
				slog.String("kind", string(c.kind)),
				slog.String("path", c.path),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		name := domainrfq.ReleaseFileName(c.item.EffectivePartNumber(), c.item.EffectiveRevision(), c.kind)
		entries = append(entries, ports.ArchiveEntry{
			Name:       domainrfq.UniqueName(name, taken),
			SourcePath: c.path,
		})
	}
	if len(entries) == 0 {
		logging.Warn(logCtx, "none of the generated release files exist on disk", slog.Int("expected", len(candidates)))
		return PackageResult{}, fmt.Errorf("%w: none of %d generated files found on disk", ErrNothingToPackage, len(candidates))
	}

	staging, err := os.MkdirTemp("", "pdm-release-*")
	if err != nil {
		s.metrics.ObservePackage(false, 0)
		return PackageResult{}, fmt.Errorf("%w: %w", ErrArchiveWrite, err)
	}
	defer os.RemoveAll(staging)

	result := PackageResult{}
	if docPath, err := s.renderOrderDocument(ctx, rfq, items, staging); err != nil {
		logging.Warn(logCtx, "order document omitted from package", slog.Any("err", errs.Loggable(err)))
	} else {
		entries = append(entries, ports.ArchiveEntry{
			Name:       domainrfq.UniqueName(filepath.Base(docPath), taken),
			SourcePath: docPath,
		})
		result.OrderDocumentIncluded = true
	}

	dirName := domainrfq.ArchiveDirName(rfq.Number, rfq.ID)
	dest := filepath.Join(s.opts.OutputRoot, dirName, dirName+"_release.zip")
	size, err := s.archiver.Write(ctx, dest, entries)
	if err != nil {
		s.metrics.ObservePackage(false, 0)
		logging.Error(logCtx, "write release archive failed", slog.String("path", dest), slog.Any("err", errs.Loggable(err)))
		return PackageResult{}, fmt.Errorf("%w: %w", ErrArchiveWrite, err)
	}
	result.ArchivePath = dest
	result.FileCount = len(entries)

	if s.publisher != nil {
		location, err := s.publisher.Publish(ctx, rfq, dest)
		if err != nil {
			logging.Warn(logCtx, "publish release archive failed", slog.Any("err", errs.Loggable(err)))
		} else {
			result.Published = location
		}
	}

	s.metrics.ObservePackage(true, result.FileCount)
	s.notify(logCtx, ports.ReleaseEvent{
		Kind:        ports.ReleaseEventPackaged,
		RFQID:       rfq.ID,
		RFQNumber:   rfq.Number,
		Status:      rfq.Status,
		ArchivePath: dest,
	})
	logging.Info(logCtx, "release package written",
		slog.String("path", dest),
		slog.Int("files", result.FileCount),
		slog.Int64("bytes", size),
		slog.Bool("order_document", result.OrderDocumentIncluded),
	)
	return result, nil
}

// GeneratePackageByID loads the RFQ and its items and packages them.
func (s *Service) GeneratePackageByID(ctx context.Context, rfqID string) (PackageResult, error) {
	if err := checkContext(ctx); err != nil {
		return PackageResult{}, err
	}
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return PackageResult{}, err
	}

	rfq, err := s.repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return PackageResult{}, errs.Wrap(err, "load rfq")
	}
	items, err := s.repo.ListItemsForRFQ(ctx, rfqID)
	if err != nil {
		return PackageResult{}, errs.Wrap(err, "load rfq items")
	}
	return s.GeneratePackage(ctx, rfq, items)
}

func packageCandidates(items []ports.LineItem) []packageCandidate {
	var out []packageCandidate
	for _, item := range items {
		for _, kind := range []domainrfq.ExportKind{domainrfq.ExportStep, domainrfq.ExportPDF} {
			record := item.Export(kind)
			if !record.HasOutput() {
				continue
			}
			out = append(out, packageCandidate{item: item, kind: kind, path: *record.Path})
		}
	}
	return out
}

func (s *Service) renderOrderDocument(ctx context.Context, rfq ports.RFQ, items []ports.LineItem, dir string) (string, error) {
	if s.renderer == nil {
		return "", fmt.Errorf("%w: no renderer configured", domainrfq.ErrDocumentRender)
	}

	suppliers, err := s.repo.ListSuppliers(ctx, rfq.ID)
	if err != nil {
		logging.Warn(logContext(ctx, rfq.ID), "load suppliers for order document failed", slog.Any("err", errs.Loggable(err)))
		suppliers = nil
	}

	return s.renderer.Render(ctx, ports.OrderDocument{
		RFQ:         rfq,
		Items:       items,
		Suppliers:   suppliers,
		GeneratedAt: s.now(),
	}, dir)
}
