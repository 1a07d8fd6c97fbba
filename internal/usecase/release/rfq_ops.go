package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type CreateRFQInput struct {
	Title                 string
	Notes                 string
	DueDate               *time.Time
	RequiresSamples       bool
	RequiresFirstArticle  bool
	RequiresQualityReport bool
}

type AddLineItemInput struct {
	RFQID string
	// SourcePath is the vault-relative path of the CAD file.
	SourcePath    string
	PartNumber    string
	Revision      string
	Description   string
	Quantity      int
	Unit          string
	Material      string
	Finish        string
	Tolerance     string
	Notes         string
	Configuration string
}

type AddSupplierInput struct {
	RFQID        string
	SupplierID   string
	SupplierName string
}

func (s *Service) CreateRFQ(ctx context.Context, input CreateRFQInput) (ports.RFQ, error) {
	if err := checkContext(ctx); err != nil {
		return ports.RFQ{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ports.RFQ{}, errors.New("title is required")
	}

	created, err := s.repo.CreateRFQ(ctx, ports.RFQCreate{
		ID:                    s.newID(),
		Title:                 title,
		RequiresSamples:       input.RequiresSamples,
		RequiresFirstArticle:  input.RequiresFirstArticle,
		RequiresQualityReport: input.RequiresQualityReport,
		Notes:                 strings.TrimSpace(input.Notes),
		DueDate:               input.DueDate,
		CreatedAt:             s.now(),
	})
	if err != nil {
		return ports.RFQ{}, errs.Wrap(err, "create rfq")
	}
	logging.Info(logContext(ctx, created.ID), "rfq created", slog.String("number", created.Number))
	return created, nil
}

// AddLineItem registers the source file and appends a line item. The RFQ
// status is re-derived: a new item still needing exports moves a ready RFQ
// back to pending_files.
func (s *Service) AddLineItem(ctx context.Context, input AddLineItemInput) (ports.LineItem, error) {
	if err := checkContext(ctx); err != nil {
		return ports.LineItem{}, err
	}
	rfqID, err := trimmedID(input.RFQID, errRFQIDRequired)
	if err != nil {
		return ports.LineItem{}, err
	}
	if input.Quantity <= 0 {
		return ports.LineItem{}, domainrfq.ErrInvalidQuantity
	}
	relPath := strings.TrimSpace(input.SourcePath)
	if relPath == "" {
		return ports.LineItem{}, errors.New("source path is required")
	}

	var created ports.LineItem
	err = s.withTx(ctx, func(txCtx context.Context) error {
		rfq, err := s.editableRFQ(txCtx, rfqID)
		if err != nil {
			return err
		}

		fileName := path.Base(strings.ReplaceAll(relPath, `\`, "/"))
		source, err := s.repo.CreateSourceFile(txCtx, ports.SourceFile{
			ID:           s.newID(),
			RelativePath: relPath,
			FileName:     fileName,
			Extension:    path.Ext(fileName),
			PartNumber:   strings.TrimSpace(input.PartNumber),
			Revision:     strings.TrimSpace(input.Revision),
		})
		if err != nil {
			return err
		}

		created, err = s.repo.CreateItem(txCtx, ports.LineItemCreate{
			ID:            s.newID(),
			RFQID:         rfqID,
			SourceFileID:  source.ID,
			PartNumber:    strings.TrimSpace(input.PartNumber),
			Description:   strings.TrimSpace(input.Description),
			Revision:      strings.TrimSpace(input.Revision),
			Quantity:      input.Quantity,
			Unit:          strings.TrimSpace(input.Unit),
			Material:      strings.TrimSpace(input.Material),
			Finish:        strings.TrimSpace(input.Finish),
			Tolerance:     strings.TrimSpace(input.Tolerance),
			Notes:         strings.TrimSpace(input.Notes),
			Configuration: strings.TrimSpace(input.Configuration),
			CreatedAt:     s.now(),
		})
		if err != nil {
			return err
		}
		return s.refreshReleaseState(txCtx, rfq)
	})
	if err != nil {
		return ports.LineItem{}, errs.Wrap(err, "add line item")
	}
	return created, nil
}

// RemoveLineItem deletes the item and closes the gap in line numbers.
func (s *Service) RemoveLineItem(ctx context.Context, itemID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	itemID, err := trimmedID(itemID, errItemIDRequired)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItem(txCtx, itemID)
		if err != nil {
			return err
		}
		rfq, err := s.editableRFQ(txCtx, item.RFQID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteItem(txCtx, itemID); err != nil {
			return err
		}
		if err := s.repo.RenumberItems(txCtx, item.RFQID); err != nil {
			return err
		}
		return s.refreshReleaseState(txCtx, rfq)
	})
	if err != nil {
		return errs.Wrap(err, "remove line item")
	}
	return nil
}

func (s *Service) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	itemID, err := trimmedID(itemID, errItemIDRequired)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return domainrfq.ErrInvalidQuantity
	}

	err = s.withTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItem(txCtx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.editableRFQ(txCtx, item.RFQID); err != nil {
			return err
		}
		return s.repo.UpdateItemQuantity(txCtx, itemID, quantity, s.now())
	})
	if err != nil {
		return errs.Wrap(err, "update item quantity")
	}
	return nil
}

// ResetItemExports clears both export records of an item, typically after a
// new revision of its source file, so the next batch exports it again.
func (s *Service) ResetItemExports(ctx context.Context, itemID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	itemID, err := trimmedID(itemID, errItemIDRequired)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItem(txCtx, itemID)
		if err != nil {
			return err
		}
		rfq, err := s.editableRFQ(txCtx, item.RFQID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, kind := range []domainrfq.ExportKind{domainrfq.ExportStep, domainrfq.ExportPDF} {
			if err := s.repo.SetItemExport(txCtx, itemID, kind, domainrfq.ExportRecord{}, now); err != nil {
				return err
			}
		}
		return s.refreshReleaseState(txCtx, rfq)
	})
	if err != nil {
		return errs.Wrap(err, "reset item exports")
	}
	return nil
}

func (s *Service) AddSupplier(ctx context.Context, input AddSupplierInput) (ports.SupplierAssignment, error) {
	if err := checkContext(ctx); err != nil {
		return ports.SupplierAssignment{}, err
	}
	rfqID, err := trimmedID(input.RFQID, errRFQIDRequired)
	if err != nil {
		return ports.SupplierAssignment{}, err
	}
	name := strings.TrimSpace(input.SupplierName)
	if name == "" {
		return ports.SupplierAssignment{}, errors.New("supplier name is required")
	}
	supplierID := strings.TrimSpace(input.SupplierID)
	if supplierID == "" {
		supplierID = s.newID()
	}

	var created ports.SupplierAssignment
	err = s.withTx(ctx, func(txCtx context.Context) error {
		rfq, err := s.editableRFQ(txCtx, rfqID)
		if err != nil {
			return err
		}
		created, err = s.repo.CreateSupplier(txCtx, ports.SupplierAssignment{
			ID:           s.newID(),
			RFQID:        rfqID,
			SupplierID:   supplierID,
			SupplierName: name,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return err
		}
		return s.refreshReleaseState(txCtx, rfq)
	})
	if err != nil {
		return ports.SupplierAssignment{}, errs.Wrap(err, "add supplier")
	}
	return created, nil
}

// MarkSent records that the RFQ went out to its suppliers. Only a ready RFQ
// can be sent.
func (s *Service) MarkSent(ctx context.Context, rfqID string) (ports.RFQ, error) {
	if err := checkContext(ctx); err != nil {
		return ports.RFQ{}, err
	}
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return ports.RFQ{}, err
	}

	var sent ports.RFQ
	err = s.withTx(ctx, func(txCtx context.Context) error {
		rfq, err := s.repo.GetRFQ(txCtx, rfqID)
		if err != nil {
			return err
		}
		if rfq.Status != domainrfq.StatusReady {
			return fmt.Errorf("%w: send requires status ready, got %s", domainrfq.ErrStatusTransition, rfq.Status)
		}
		now := s.now()
		if err := s.repo.MarkSuppliersSent(txCtx, rfqID, now); err != nil {
			return err
		}
		if err := s.repo.SetRFQStatus(txCtx, rfqID, domainrfq.StatusSent, now); err != nil {
			return err
		}
		sent, err = s.repo.GetRFQ(txCtx, rfqID)
		return err
	})
	if err != nil {
		return ports.RFQ{}, errs.Wrap(err, "mark rfq sent")
	}
	logging.Info(logContext(ctx, rfqID), "rfq marked sent")
	return sent, nil
}

// editableRFQ loads the RFQ and rejects edits outside release preparation.
func (s *Service) editableRFQ(ctx context.Context, rfqID string) (ports.RFQ, error) {
	rfq, err := s.repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return ports.RFQ{}, err
	}
	if rfq.Status == domainrfq.StatusGenerating {
		return ports.RFQ{}, ErrGenerationInProgress
	}
	if !rfq.Status.IsReleaseStage() {
		return ports.RFQ{}, fmt.Errorf("%w: rfq is %s", domainrfq.ErrStatusTransition, rfq.Status)
	}
	return rfq, nil
}

// refreshReleaseState re-derives the status after an edit and clears the
// release-files flag once something needs exporting again. The flag is only
// ever set by a generation batch.
func (s *Service) refreshReleaseState(ctx context.Context, before ports.RFQ) error {
	snapshot, err := s.releaseSnapshot(ctx, before)
	if err != nil {
		return err
	}

	status := domainrfq.DeriveStatus(snapshot)
	generated := before.ReleaseFilesGenerated && snapshot.PendingExports == 0 && snapshot.ItemCount > 0
	if status == before.Status && generated == before.ReleaseFilesGenerated {
		return nil
	}

	update := ports.ReleaseStateUpdate{
		RFQID:     before.ID,
		Status:    status,
		Generated: generated,
		UpdatedAt: s.now(),
	}
	if generated {
		update.GeneratedAt = before.ReleaseFilesGeneratedAt
	}
	return s.repo.UpdateRFQReleaseState(ctx, update)
}
