package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"pdmrelease/internal/infrastructure/archive"
	"pdmrelease/internal/infrastructure/lock"
	"pdmrelease/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "pdmrelease/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "pdmrelease/internal/infrastructure/persistence/sqlite/uow"
	"pdmrelease/internal/ports"
)

// fakeBridge writes a small file per export into outDir unless fail says
// otherwise for the request.
type fakeBridge struct {
	mu      sync.Mutex
	outDir  string
	pingErr error
	fail    func(req ports.ExportRequest) (ports.ExportResult, bool, error)
	calls   []ports.ExportRequest
}

func (b *fakeBridge) Ping(context.Context) error { return b.pingErr }

func (b *fakeBridge) Export(_ context.Context, req ports.ExportRequest) (ports.ExportResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()

	if b.fail != nil {
		if res, handled, err := b.fail(req); handled {
			return res, err
		}
	}

	base := filepath.Base(strings.ReplaceAll(req.SourceFilePath, `\`, "/"))
	out := filepath.Join(b.outDir, fmt.Sprintf("%s.%s", base, req.Kind))
	content := []byte("exported " + base)
	if err := os.WriteFile(out, content, 0o644); err != nil {
		return ports.ExportResult{}, err
	}
	return ports.ExportResult{
		Success:    true,
		OutputPath: out,
		FileName:   filepath.Base(out),
		FileSize:   int64(len(content)),
	}, nil
}

func (b *fakeBridge) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Render(_ context.Context, doc ports.OrderDocument, dir string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	path := filepath.Join(dir, doc.RFQ.Number+"_order.pdf")
	return path, os.WriteFile(path, []byte("%PDF-1.3"), 0o644)
}

type failingArchiver struct{}

func (failingArchiver) Write(context.Context, string, []ports.ArchiveEntry) (int64, error) {
	return 0, errors.New("disk full")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ports.ReleaseEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event ports.ReleaseEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *sqliterepo.RFQRepository
	bridge   *fakeBridge
	lock     *lock.MemoryLock
	notifier *recordingNotifier
	output   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "release.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewRFQRepository(db)
	bridge := &fakeBridge{outDir: t.TempDir()}
	memLock := lock.NewMemoryLock()
	notifier := &recordingNotifier{}
	output := filepath.Join(t.TempDir(), "releases")

	svc := NewService(Deps{
		Repo:     repo,
		UoW:      sqliteuow.NewUnitOfWork(db),
		Bridge:   bridge,
		Lock:     memLock,
		Renderer: stubRenderer{},
		Archiver: archive.NewZipWriter(),
		Notifier: notifier,
	}, Options{
		WorkdirRoot: "/vault",
		OutputRoot:  output,
		LockTTL:     time.Minute,
	})

	return &fixture{
		svc:      svc,
		repo:     repo,
		bridge:   bridge,
		lock:     memLock,
		notifier: notifier,
		output:   output,
	}
}

func (f *fixture) createRFQ(t *testing.T) ports.RFQ {
	t.Helper()
	rfq, err := f.svc.CreateRFQ(context.Background(), CreateRFQInput{Title: "Bracket set"})
	if err != nil {
		t.Fatalf("CreateRFQ() error = %v", err)
	}
	return rfq
}

func (f *fixture) addItem(t *testing.T, rfqID, path, partNumber string) ports.LineItem {
	t.Helper()
	item, err := f.svc.AddLineItem(context.Background(), AddLineItemInput{
		RFQID:      rfqID,
		SourcePath: path,
		PartNumber: partNumber,
		Revision:   "A",
		Quantity:   1,
	})
	if err != nil {
		t.Fatalf("AddLineItem(%s) error = %v", path, err)
	}
	return item
}

func (f *fixture) addSupplier(t *testing.T, rfqID string) {
	t.Helper()
	if _, err := f.svc.AddSupplier(context.Background(), AddSupplierInput{RFQID: rfqID, SupplierName: "Laser Works"}); err != nil {
		t.Fatalf("AddSupplier() error = %v", err)
	}
}

func (f *fixture) rfq(t *testing.T, id string) ports.RFQ {
	t.Helper()
	rfq, err := f.repo.GetRFQ(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRFQ() error = %v", err)
	}
	return rfq
}

func (f *fixture) items(t *testing.T, rfqID string) []ports.LineItem {
	t.Helper()
	items, err := f.repo.ListItemsForRFQ(context.Background(), rfqID)
	if err != nil {
		t.Fatalf("ListItemsForRFQ() error = %v", err)
	}
	return items
}

func failFor(substr string) func(ports.ExportRequest) (ports.ExportResult, bool, error) {
	return func(req ports.ExportRequest) (ports.ExportResult, bool, error) {
		if strings.Contains(req.SourceFilePath, substr) {
			return ports.ExportResult{Success: false, Error: "model could not be opened"}, true, nil
		}
		return ports.ExportResult{}, false, nil
	}
}
