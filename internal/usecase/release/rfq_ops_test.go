package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainrfq "pdmrelease/internal/domain/rfq"
)

func TestCreateRFQStartsAsDraft(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)

	assert.Equal(t, domainrfq.StatusDraft, rfq.Status)
	assert.Equal(t, "RFQ-000001", rfq.Number)

	_, err := f.svc.CreateRFQ(context.Background(), CreateRFQInput{Title: " "})
	assert.Error(t, err)
}

func TestLineItemsStayDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	middle := f.addItem(t, rfq.ID, `Parts\b.sldprt`, "PN-2")
	f.addItem(t, rfq.ID, "Parts/c.sldprt", "PN-3")

	assert.Equal(t, 2, middle.LineNumber)
	assert.Equal(t, "b.sldprt", middle.Source.FileName)
	assert.Equal(t, "sldprt", middle.Source.Extension)

	require.NoError(t, f.svc.RemoveLineItem(ctx, middle.ID))

	items := f.items(t, rfq.ID)
	require.Len(t, items, 2)
	assert.Equal(t, "PN-1", items[0].PartNumber)
	assert.Equal(t, 1, items[0].LineNumber)
	assert.Equal(t, "PN-3", items[1].PartNumber)
	assert.Equal(t, 2, items[1].LineNumber)
}

func TestAddLineItemRejectsBadQuantity(t *testing.T) {
	f := newFixture(t)
	rfq := f.createRFQ(t)

	_, err := f.svc.AddLineItem(context.Background(), AddLineItemInput{RFQID: rfq.ID, SourcePath: "a.sldprt", Quantity: 0})
	require.ErrorIs(t, err, domainrfq.ErrInvalidQuantity)

	item := f.addItem(t, rfq.ID, "a.sldprt", "PN-1")
	require.ErrorIs(t, f.svc.UpdateItemQuantity(context.Background(), item.ID, -1), domainrfq.ErrInvalidQuantity)
	require.NoError(t, f.svc.UpdateItemQuantity(context.Background(), item.ID, 12))
	assert.Equal(t, 12, f.items(t, rfq.ID)[0].Quantity)
}

func TestEditsRederiveStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	part := f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	assert.Equal(t, domainrfq.StatusPendingFiles, f.rfq(t, rfq.ID).Status)

	f.addSupplier(t, rfq.ID)
	_, err := f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, domainrfq.StatusReady, f.rfq(t, rfq.ID).Status)

	drawing := f.addItem(t, rfq.ID, "Drawings/a.slddrw", "PN-1")
	got := f.rfq(t, rfq.ID)
	assert.Equal(t, domainrfq.StatusPendingFiles, got.Status)
	assert.False(t, got.ReleaseFilesGenerated)

	require.NoError(t, f.svc.RemoveLineItem(ctx, drawing.ID))
	assert.Equal(t, domainrfq.StatusReady, f.rfq(t, rfq.ID).Status)

	require.NoError(t, f.svc.ResetItemExports(ctx, part.ID))
	assert.Equal(t, domainrfq.StatusPendingFiles, f.rfq(t, rfq.ID).Status)
	assert.False(t, f.items(t, rfq.ID)[0].Step.Generated)
}

func TestMarkSentRequiresReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")
	f.addSupplier(t, rfq.ID)

	_, err := f.svc.MarkSent(ctx, rfq.ID)
	require.ErrorIs(t, err, domainrfq.ErrStatusTransition)

	_, err = f.svc.GenerateReleaseFiles(ctx, rfq.ID)
	require.NoError(t, err)

	sent, err := f.svc.MarkSent(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, domainrfq.StatusSent, sent.Status)

	suppliers, err := f.svc.ListSuppliers(ctx, rfq.ID)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.NotNil(t, suppliers[0].SentAt)

	_, err = f.svc.AddLineItem(ctx, AddLineItemInput{RFQID: rfq.ID, SourcePath: "b.sldprt", Quantity: 1})
	require.ErrorIs(t, err, domainrfq.ErrStatusTransition)
}

func TestResolveRFQByNumberOrID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.createRFQ(t)
	f.addItem(t, rfq.ID, "Parts/a.sldprt", "PN-1")

	byNumber, err := f.svc.GetRFQ(ctx, "rfq-000001")
	require.NoError(t, err)
	assert.Equal(t, rfq.ID, byNumber.RFQ.ID)
	assert.Len(t, byNumber.Items, 1)

	byID, err := f.svc.ResolveRFQ(ctx, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, rfq.Number, byID.Number)

	list, err := f.svc.ListRFQs(ctx, []domainrfq.Status{domainrfq.StatusPendingFiles}, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
