package release

import (
	"context"
	"errors"
	"strings"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type RFQDetail struct {
	RFQ       ports.RFQ
	Items     []ports.LineItem
	Suppliers []ports.SupplierAssignment
}

// ResolveRFQ accepts either an RFQ id or its number (RFQ-000123).
func (s *Service) ResolveRFQ(ctx context.Context, ref string) (ports.RFQ, error) {
	if err := checkContext(ctx); err != nil {
		return ports.RFQ{}, err
	}
	ref, err := trimmedID(ref, errRFQIDRequired)
	if err != nil {
		return ports.RFQ{}, err
	}

	if strings.HasPrefix(strings.ToUpper(ref), "RFQ-") {
		rfq, err := s.repo.GetRFQByNumber(ctx, strings.ToUpper(ref))
		if err == nil || !errors.Is(err, ports.ErrRFQNotFound) {
			return rfq, err
		}
	}
	return s.repo.GetRFQ(ctx, ref)
}

func (s *Service) GetRFQ(ctx context.Context, ref string) (RFQDetail, error) {
	rfq, err := s.ResolveRFQ(ctx, ref)
	if err != nil {
		return RFQDetail{}, err
	}
	items, err := s.repo.ListItemsForRFQ(ctx, rfq.ID)
	if err != nil {
		return RFQDetail{}, errs.Wrap(err, "load rfq items")
	}
	suppliers, err := s.repo.ListSuppliers(ctx, rfq.ID)
	if err != nil {
		return RFQDetail{}, errs.Wrap(err, "load rfq suppliers")
	}
	return RFQDetail{RFQ: rfq, Items: items, Suppliers: suppliers}, nil
}

func (s *Service) ListRFQs(ctx context.Context, statuses []domainrfq.Status, limit int) ([]ports.RFQ, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListRFQs(ctx, ports.RFQFilter{Statuses: statuses, Limit: limit})
}

func (s *Service) ListItems(ctx context.Context, rfqID string) ([]ports.LineItem, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return nil, err
	}
	return s.repo.ListItemsForRFQ(ctx, rfqID)
}

func (s *Service) ListSuppliers(ctx context.Context, rfqID string) ([]ports.SupplierAssignment, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	rfqID, err := trimmedID(rfqID, errRFQIDRequired)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx, rfqID)
}
