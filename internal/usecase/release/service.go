// Package release orchestrates release file generation and packaging for RFQs.
package release

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

const (
	component      = "usecase.release"
	defaultLockTTL = 30 * time.Minute
)

var (
	ErrServiceUnavailable   = domainrfq.ErrServiceUnavailable
	ErrGenerationInProgress = domainrfq.ErrGenerationInProgress
	ErrNothingToPackage     = domainrfq.ErrNothingToPackage
	ErrArchiveWrite         = domainrfq.ErrArchiveWrite

	errRFQIDRequired  = errors.New("rfq id is required")
	errItemIDRequired = errors.New("item id is required")
)

// Deps are the collaborators of the release service. Publisher is optional;
// Notifier and Metrics default to no-ops.
type Deps struct {
	Repo      ports.RFQRepository
	UoW       ports.UnitOfWork
	Bridge    ports.ExportBridge
	Lock      ports.GenerationLock
	Renderer  ports.OrderDocumentRenderer
	Archiver  ports.ArchiveWriter
	Publisher ports.ArchivePublisher
	Notifier  ports.ReleaseNotifier
	Metrics   ports.ReleaseMetrics
}

type Options struct {
	// WorkdirRoot is the vault root source file paths are relative to.
	WorkdirRoot string
	// OutputRoot is where per-RFQ archive directories are created.
	OutputRoot string
	LockTTL    time.Duration
}

type Service struct {
	repo      ports.RFQRepository
	uow       ports.UnitOfWork
	bridge    ports.ExportBridge
	lock      ports.GenerationLock
	renderer  ports.OrderDocumentRenderer
	archiver  ports.ArchiveWriter
	publisher ports.ArchivePublisher
	notifier  ports.ReleaseNotifier
	metrics   ports.ReleaseMetrics
	opts      Options
	now       func() time.Time
	newID     func() string
}

func NewService(deps Deps, opts Options) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	s := &Service{
		repo:      deps.Repo,
		uow:       deps.UoW,
		bridge:    deps.Bridge,
		lock:      deps.Lock,
		renderer:  deps.Renderer,
		archiver:  deps.Archiver,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func logContext(ctx context.Context, rfqID string) context.Context {
	ctx = logging.WithComponent(ctx, component)
	if rfqID != "" {
		ctx = logging.WithAttrs(ctx, slog.String("rfq_id", rfqID))
	}
	return ctx
}

// withTx runs fn in the unit of work when one is wired.
func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.uow == nil {
		return fn(ctx)
	}
	return s.uow.WithTx(ctx, fn)
}

func (s *Service) notify(ctx context.Context, event ports.ReleaseEvent) {
	event.OccurredAt = s.now()
	if err := s.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		logging.Warn(ctx, "release event not delivered",
			slog.String("event", string(event.Kind)),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func trimmedID(id string, missing error) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", missing
	}
	return trimmed, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, ports.ReleaseEvent) error { return nil }

type noopMetrics struct{}

func (noopMetrics) ObserveExport(domainrfq.ExportKind, bool, time.Duration) {}
func (noopMetrics) ObserveBatch(domainrfq.Status, int, int, time.Duration)  {}
func (noopMetrics) ObservePackage(bool, int)                                {}
