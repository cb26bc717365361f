package domain

// DeriveMasterStatus reduces the multiset of sub-order fulfillment states plus
// the payment axis into the single customer-facing master status.
//
// The reduction counts states rather than scanning positions, so permuting the
// input never changes the result. Terminal outcomes win first, then the
// payment gate:
//
//   - every sub-order cancelled -> Cancelled
//   - every sub-order shipped or completed -> Completed
//   - payment not settled -> Pending, regardless of sub-order progress
//   - any sub-order progressed past intake (or partially cancelled/completed)
//     -> Processing
//   - otherwise -> Pending
//
// Ordering matters for the refund exception: refunding a cancelled order must
// not reopen it as Pending. A partially cancelled order (some cancelled, some
// not) deliberately stays Processing until an admin resolves it with a force
// override.
func DeriveMasterStatus(statuses []PrinterStatus, payment PaymentStatus) MasterStatus {
	if len(statuses) == 0 {
		return MasterStatusPending
	}

	var pending, cancelled, fulfilled int
	for _, s := range statuses {
		switch s {
		case PrinterStatusPending:
			pending++
		case PrinterStatusCancelled:
			cancelled++
		case PrinterStatusShipped, PrinterStatusCompleted:
			// Shipped and completed form the terminal fulfilled pair, both
			// count toward the order being done.
			fulfilled++
		}
	}

	total := len(statuses)
	switch {
	case cancelled == total:
		return MasterStatusCancelled
	case fulfilled == total:
		return MasterStatusCompleted
	case payment != PaymentStatusPaid:
		return MasterStatusPending
	case pending == total:
		return MasterStatusPending
	default:
		return MasterStatusProcessing
	}
}

// SubOrderStatuses extracts the fulfillment states of every embedded sub-order.
func (m *MasterOrder) SubOrderStatuses() []PrinterStatus {
	statuses := make([]PrinterStatus, len(m.SubOrders))
	for i := range m.SubOrders {
		statuses[i] = m.SubOrders[i].PrinterStatus
	}
	return statuses
}

// Rederive recomputes the stored master status from current sub-order and
// payment state, returning the previous value so callers can diff for
// notifications. It touches nothing but MasterStatus.
func (m *MasterOrder) Rederive() (previous MasterStatus, changed bool) {
	previous = m.MasterStatus
	m.MasterStatus = DeriveMasterStatus(m.SubOrderStatuses(), m.PaymentStatus)
	return previous, m.MasterStatus != previous
}
