package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/infrastructure/persistence/sqlite/model"
	"pdmrelease/internal/ports"
)

// RFQRepository is the gorm-backed RFQ item store. It works on SQLite and
// Postgres alike.
type RFQRepository struct {
	db *gorm.DB
}

var _ ports.RFQRepository = (*RFQRepository)(nil)

func NewRFQRepository(db *gorm.DB) *RFQRepository {
	return &RFQRepository{db: db}
}

func (r *RFQRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn on the context transaction, or opens one when there is none.
func (r *RFQRepository) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *RFQRepository) GetRFQ(ctx context.Context, rfqID string) (ports.RFQ, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RFQ{}, err
	}
	return getRFQ(db, "id = ?", strings.TrimSpace(rfqID))
}

func (r *RFQRepository) GetRFQByNumber(ctx context.Context, number string) (ports.RFQ, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RFQ{}, err
	}
	return getRFQ(db, "number = ?", strings.TrimSpace(number))
}

func (r *RFQRepository) ListRFQs(ctx context.Context, filter ports.RFQFilter) ([]ports.RFQ, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RFQ{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.RFQ
	if err := query.Order("number_seq desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rfqs")
	}

	out := make([]ports.RFQ, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRFQ(row))
	}
	return out, nil
}

func (r *RFQRepository) ListItemsForRFQ(ctx context.Context, rfqID string) ([]ports.LineItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.RFQItem
	if err := db.
		Where("rfq_id = ?", rfqID).
		Order("line_number asc").
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rfq items")
	}
	return joinSourceFiles(db, rows)
}

func (r *RFQRepository) GetItem(ctx context.Context, itemID string) (ports.LineItem, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.LineItem{}, err
	}

	var row model.RFQItem
	if err := db.Where("id = ?", itemID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.LineItem{}, ports.ErrItemNotFound
		}
		return ports.LineItem{}, errs.Wrap(err, "query rfq item")
	}

	items, err := joinSourceFiles(db, []model.RFQItem{row})
	if err != nil {
		return ports.LineItem{}, err
	}
	return items[0], nil
}

func (r *RFQRepository) ListSuppliers(ctx context.Context, rfqID string) ([]ports.SupplierAssignment, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.RFQSupplier
	if err := db.Where("rfq_id = ?", rfqID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rfq suppliers")
	}

	out := make([]ports.SupplierAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapSupplier(row))
	}
	return out, nil
}

func (r *RFQRepository) CountSuppliers(ctx context.Context, rfqID string) (int, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.RFQSupplier{}).Where("rfq_id = ?", rfqID).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count rfq suppliers")
	}
	return int(count), nil
}

func (r *RFQRepository) CreateRFQ(ctx context.Context, input ports.RFQCreate) (ports.RFQ, error) {
	if strings.TrimSpace(input.ID) == "" {
		return ports.RFQ{}, errors.New("rfq id is required")
	}

	var created ports.RFQ
	err := r.inTx(ctx, func(db *gorm.DB) error {
		var maxSeq int64
		if err := db.Model(&model.RFQ{}).Select("COALESCE(MAX(number_seq), 0)").Scan(&maxSeq).Error; err != nil {
			return errs.Wrap(err, "query rfq number sequence")
		}

		seq := maxSeq + 1
		row := model.RFQ{
			ID:                    input.ID,
			NumberSeq:             seq,
			Number:                domainrfq.FormatRFQNumber(seq),
			Title:                 input.Title,
			Status:                string(domainrfq.StatusDraft),
			BillingAddressID:      input.BillingAddressID,
			ShippingAddressID:     input.ShippingAddressID,
			RequiresSamples:       input.RequiresSamples,
			RequiresFirstArticle:  input.RequiresFirstArticle,
			RequiresQualityReport: input.RequiresQualityReport,
			Notes:                 input.Notes,
			DueDate:               input.DueDate,
			CreatedAt:             input.CreatedAt,
			UpdatedAt:             input.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ports.ErrDuplicateRFQ
			}
			return errs.Wrap(err, "insert rfq")
		}
		created = mapRFQ(row)
		return nil
	})
	if err != nil {
		return ports.RFQ{}, err
	}
	return created, nil
}

func (r *RFQRepository) CreateSourceFile(ctx context.Context, file ports.SourceFile) (ports.SourceFile, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.SourceFile{}, err
	}
	if strings.TrimSpace(file.ID) == "" {
		return ports.SourceFile{}, errors.New("source file id is required")
	}

	version := file.Version
	if version <= 0 {
		version = 1
	}
	row := model.SourceFile{
		ID:           file.ID,
		RelativePath: file.RelativePath,
		FileName:     file.FileName,
		Extension:    strings.ToLower(strings.TrimPrefix(file.Extension, ".")),
		PartNumber:   file.PartNumber,
		Revision:     file.Revision,
		Version:      version,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.SourceFile{}, errs.Wrap(err, "insert source file")
	}
	return mapSourceFile(row), nil
}

func (r *RFQRepository) CreateItem(ctx context.Context, input ports.LineItemCreate) (ports.LineItem, error) {
	if input.Quantity <= 0 {
		return ports.LineItem{}, domainrfq.ErrInvalidQuantity
	}
	if strings.TrimSpace(input.ID) == "" {
		return ports.LineItem{}, errors.New("item id is required")
	}

	var created ports.LineItem
	err := r.inTx(ctx, func(db *gorm.DB) error {
		if _, err := getRFQ(db, "id = ?", input.RFQID); err != nil {
			return err
		}

		var maxLine int
		if err := db.Model(&model.RFQItem{}).
			Where("rfq_id = ?", input.RFQID).
			Select("COALESCE(MAX(line_number), 0)").
			Scan(&maxLine).Error; err != nil {
			return errs.Wrap(err, "query max line number")
		}

		unit := strings.TrimSpace(input.Unit)
		if unit == "" {
			unit = "pcs"
		}
		row := model.RFQItem{
			ID:            input.ID,
			RFQID:         input.RFQID,
			LineNumber:    maxLine + 1,
			SourceFileID:  input.SourceFileID,
			PartNumber:    input.PartNumber,
			Description:   input.Description,
			Revision:      input.Revision,
			Quantity:      input.Quantity,
			Unit:          unit,
			Material:      input.Material,
			Finish:        input.Finish,
			Tolerance:     input.Tolerance,
			Notes:         input.Notes,
			Configuration: input.Configuration,
			CreatedAt:     input.CreatedAt,
			UpdatedAt:     input.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert rfq item")
		}

		items, err := joinSourceFiles(db, []model.RFQItem{row})
		if err != nil {
			return err
		}
		created = items[0]
		return nil
	})
	if err != nil {
		return ports.LineItem{}, err
	}
	return created, nil
}

func (r *RFQRepository) DeleteItem(ctx context.Context, itemID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ?", itemID).Delete(&model.RFQItem{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete rfq item")
	}
	if result.RowsAffected == 0 {
		return ports.ErrItemNotFound
	}
	return nil
}

func (r *RFQRepository) RenumberItems(ctx context.Context, rfqID string) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		var rows []model.RFQItem
		if err := db.
			Select("id", "line_number").
			Where("rfq_id = ?", rfqID).
			Order("line_number asc").
			Order("created_at asc").
			Find(&rows).Error; err != nil {
			return errs.Wrap(err, "query rfq items for renumber")
		}

		for idx, row := range rows {
			want := idx + 1
			if row.LineNumber == want {
				continue
			}
			if err := db.Model(&model.RFQItem{}).
				Where("id = ?", row.ID).
				Update("line_number", want).Error; err != nil {
				return errs.Wrapf(err, "renumber item %s", row.ID)
			}
		}
		return nil
	})
}

func (r *RFQRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int, updatedAt time.Time) error {
	if quantity <= 0 {
		return domainrfq.ErrInvalidQuantity
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.RFQItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update item quantity")
	}
	if result.RowsAffected == 0 {
		return ports.ErrItemNotFound
	}
	return nil
}

func (r *RFQRepository) SetItemExport(ctx context.Context, itemID string, kind domainrfq.ExportKind, record domainrfq.ExportRecord, updatedAt time.Time) error {
	if err := record.Validate(); err != nil {
		return err
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var columns map[string]any
	switch kind {
	case domainrfq.ExportStep:
		columns = map[string]any{
			"step_generated": record.Generated,
			"step_path":      record.Path,
			"step_size":      record.Size,
		}
	case domainrfq.ExportPDF:
		columns = map[string]any{
			"pdf_generated": record.Generated,
			"pdf_path":      record.Path,
			"pdf_size":      record.Size,
		}
	default:
		return fmt.Errorf("unsupported export kind %q", kind)
	}
	columns["updated_at"] = updatedAt

	result := db.Model(&model.RFQItem{}).Where("id = ?", itemID).Updates(columns)
	if result.Error != nil {
		return errs.Wrapf(result.Error, "update %s export", kind)
	}
	if result.RowsAffected == 0 {
		return ports.ErrItemNotFound
	}
	return nil
}

func (r *RFQRepository) CreateSupplier(ctx context.Context, input ports.SupplierAssignment) (ports.SupplierAssignment, error) {
	if strings.TrimSpace(input.ID) == "" {
		return ports.SupplierAssignment{}, errors.New("supplier assignment id is required")
	}

	var created ports.SupplierAssignment
	err := r.inTx(ctx, func(db *gorm.DB) error {
		if _, err := getRFQ(db, "id = ?", input.RFQID); err != nil {
			return err
		}

		row := model.RFQSupplier{
			ID:           input.ID,
			RFQID:        input.RFQID,
			SupplierID:   input.SupplierID,
			SupplierName: input.SupplierName,
			QuotedAmount: input.QuotedAmount,
			Currency:     input.Currency,
			LeadTimeDays: input.LeadTimeDays,
			SentAt:       input.SentAt,
			QuotedAt:     input.QuotedAt,
			CreatedAt:    input.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert rfq supplier")
		}
		created = mapSupplier(row)
		return nil
	})
	if err != nil {
		return ports.SupplierAssignment{}, err
	}
	return created, nil
}

func (r *RFQRepository) MarkSuppliersSent(ctx context.Context, rfqID string, sentAt time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.RFQSupplier{}).
		Where("rfq_id = ? AND sent_at IS NULL", rfqID).
		Update("sent_at", sentAt).Error; err != nil {
		return errs.Wrap(err, "mark suppliers sent")
	}
	return nil
}

func (r *RFQRepository) SetRFQStatus(ctx context.Context, rfqID string, status domainrfq.Status, updatedAt time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	return updateRFQ(db, rfqID, map[string]any{
		"status":     string(status),
		"updated_at": updatedAt,
	})
}

func (r *RFQRepository) UpdateRFQReleaseState(ctx context.Context, input ports.ReleaseStateUpdate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var generatedAt *time.Time
	if input.Generated {
		generatedAt = input.GeneratedAt
	}
	return updateRFQ(db, input.RFQID, map[string]any{
		"status":                     string(input.Status),
		"release_files_generated":    input.Generated,
		"release_files_generated_at": generatedAt,
		"updated_at":                 input.UpdatedAt,
	})
}

func updateRFQ(db *gorm.DB, rfqID string, columns map[string]any) error {
	result := db.Model(&model.RFQ{}).Where("id = ?", rfqID).Updates(columns)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update rfq")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRFQNotFound
	}
	return nil
}

func getRFQ(db *gorm.DB, where string, arg any) (ports.RFQ, error) {
	var row model.RFQ
	if err := db.Where(where, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RFQ{}, ports.ErrRFQNotFound
		}
		return ports.RFQ{}, errs.Wrap(err, "query rfq")
	}
	return mapRFQ(row), nil
}

func joinSourceFiles(db *gorm.DB, rows []model.RFQItem) ([]ports.LineItem, error) {
	if len(rows) == 0 {
		return []ports.LineItem{}, nil
	}

	ids := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.SourceFileID]; ok {
			continue
		}
		seen[row.SourceFileID] = struct{}{}
		ids = append(ids, row.SourceFileID)
	}

	var files []model.SourceFile
	if err := db.Where("id IN ?", ids).Find(&files).Error; err != nil {
		return nil, errs.Wrap(err, "query source files")
	}
	byID := make(map[string]model.SourceFile, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	items := make([]ports.LineItem, 0, len(rows))
	for _, row := range rows {
		item, err := mapItem(row, byID[row.SourceFileID])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func mapRFQ(row model.RFQ) ports.RFQ {
	return ports.RFQ{
		ID:                      row.ID,
		Number:                  row.Number,
		Title:                   row.Title,
		Status:                  domainrfq.Status(row.Status),
		BillingAddressID:        row.BillingAddressID,
		ShippingAddressID:       row.ShippingAddressID,
		RequiresSamples:         row.RequiresSamples,
		RequiresFirstArticle:    row.RequiresFirstArticle,
		RequiresQualityReport:   row.RequiresQualityReport,
		ReleaseFilesGenerated:   row.ReleaseFilesGenerated,
		ReleaseFilesGeneratedAt: row.ReleaseFilesGeneratedAt,
		Notes:                   row.Notes,
		DueDate:                 row.DueDate,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}
}

// mapItem shapes a row at the boundary: rows breaking the export invariant or
// carrying a non-positive quantity are rejected instead of passed on.
func mapItem(row model.RFQItem, file model.SourceFile) (ports.LineItem, error) {
	step := domainrfq.ExportRecord{Generated: row.StepGenerated, Path: row.StepPath, Size: row.StepSize}
	pdf := domainrfq.ExportRecord{Generated: row.PDFGenerated, Path: row.PDFPath, Size: row.PDFSize}
	if err := step.Validate(); err != nil {
		return ports.LineItem{}, errs.Wrapf(err, "item %s step record", row.ID)
	}
	if err := pdf.Validate(); err != nil {
		return ports.LineItem{}, errs.Wrapf(err, "item %s pdf record", row.ID)
	}
	if row.Quantity <= 0 {
		return ports.LineItem{}, errs.Wrapf(domainrfq.ErrInvalidQuantity, "item %s", row.ID)
	}

	return ports.LineItem{
		ID:            row.ID,
		RFQID:         row.RFQID,
		LineNumber:    row.LineNumber,
		SourceFileID:  row.SourceFileID,
		Source:        mapSourceFile(file),
		PartNumber:    row.PartNumber,
		Description:   row.Description,
		Revision:      row.Revision,
		Quantity:      row.Quantity,
		Unit:          row.Unit,
		Material:      row.Material,
		Finish:        row.Finish,
		Tolerance:     row.Tolerance,
		Notes:         row.Notes,
		Configuration: row.Configuration,
		Step:          step,
		PDF:           pdf,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func mapSourceFile(row model.SourceFile) ports.SourceFile {
	return ports.SourceFile{
		ID:           row.ID,
		RelativePath: row.RelativePath,
		FileName:     row.FileName,
		Extension:    row.Extension,
		PartNumber:   row.PartNumber,
		Revision:     row.Revision,
		Version:      row.Version,
	}
}

func mapSupplier(row model.RFQSupplier) ports.SupplierAssignment {
	return ports.SupplierAssignment{
		ID:           row.ID,
		RFQID:        row.RFQID,
		SupplierID:   row.SupplierID,
		SupplierName: row.SupplierName,
		QuotedAmount: row.QuotedAmount,
		Currency:     row.Currency,
		LeadTimeDays: row.LeadTimeDays,
		SentAt:       row.SentAt,
		QuotedAt:     row.QuotedAt,
		CreatedAt:    row.CreatedAt,
	}
}
