package rfq

// ResolveReleaseStatus folds the outcome of a generation batch into the RFQ
// aggregate status.
//
//	all generated, suppliers > 0  -> ready
//	all generated, no suppliers   -> draft
//	any failure                   -> pending_files
func ResolveReleaseStatus(allGenerated bool, supplierCount int) Status {
	if !allGenerated {
		return StatusPendingFiles
	}
	if supplierCount > 0 {
		return StatusReady
	}
	return StatusDraft
}

// ReleaseSnapshot is the item/supplier state the aggregate status is derived
// from outside a generation batch.
type ReleaseSnapshot struct {
	Current        Status
	ItemCount      int
	PendingExports int
	SupplierCount  int
}

// DeriveStatus recomputes the status after an item or supplier edit. Statuses
// past release preparation, and a running batch, are left alone.
func DeriveStatus(s ReleaseSnapshot) Status {
	if !s.Current.IsReleaseStage() && s.Current != "" {
		return s.Current
	}
	if s.ItemCount == 0 {
		return StatusDraft
	}
	return ResolveReleaseStatus(s.PendingExports == 0, s.SupplierCount)
}
