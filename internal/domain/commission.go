package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvariantViolation indicates the stored ledger totals no longer match the
// sums of their sub-order components. It is an internal defect signal: callers
// must abort the surrounding write when they see it.
var ErrInvariantViolation = errors.New("order ledger: invariant violation")

// ErrInvalidCommissionRate rejects rates outside the [0,1] fraction range at
// write time; a bad stored rate is configuration error, never a runtime state.
var ErrInvalidCommissionRate = errors.New("commission: rate must be a fraction between 0 and 1")

// CommissionLine holds the derived monetary split for one sub-order.
type CommissionLine struct {
	CommissionFee int64
	Payout        int64
}

// ValidateCommissionRate enforces the [0,1] fraction contract for stored rates.
func ValidateCommissionRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidCommissionRate, rate)
	}
	return nil
}

// ResolveCommissionRate returns the partner's effective rate at the given
// instant: the override rate while now < ExpiresAt, the standard rate
// otherwise. Expired overrides are ignored in place, no cleanup write needed.
func ResolveCommissionRate(partner Partner, now time.Time) float64 {
	if o := partner.CommissionOverride; o != nil && now.Before(o.ExpiresAt) {
		return o.Rate
	}
	return partner.StandardCommissionRate
}

// ComputeCommissionLine derives the stored commission fee and payout for a
// sub-order line. Amounts are minor currency units; the fee rounds half-up and
// the payout absorbs the complement so fee+payout always equals the price.
func ComputeCommissionLine(printerTotalPrice int64, rate float64) CommissionLine {
	fee := roundHalfUp(float64(printerTotalPrice) * rate)
	return CommissionLine{
		CommissionFee: fee,
		Payout:        printerTotalPrice - fee,
	}
}

// RecomputeTotals reprices a sub-order's line items and refreshes the master
// ledger sums. Item subtotals are recomputed from quantity and unit price, the
// sub-order price is the sum of its subtotals, and commission is re-derived
// from the applied rate already stored on the sub-order.
func (m *MasterOrder) RecomputeTotals() {
	var totalPrice, totalCommission, totalPayout int64
	var totalItems int

	for i := range m.SubOrders {
		sub := &m.SubOrders[i]

		var subTotal int64
		for j := range sub.Items {
			item := &sub.Items[j]
			item.Subtotal = item.UnitPrice * int64(item.Quantity)
			subTotal += item.Subtotal
			totalItems += item.Quantity
		}
		sub.PrinterTotalPrice = subTotal

		line := ComputeCommissionLine(sub.PrinterTotalPrice, sub.AppliedCommissionRate)
		sub.CommissionFee = line.CommissionFee
		sub.PrinterPayout = line.Payout

		totalPrice += sub.PrinterTotalPrice
		totalCommission += sub.CommissionFee
		totalPayout += sub.PrinterPayout
	}

	m.TotalPrice = totalPrice
	m.TotalCommission = totalCommission
	m.TotalPayout = totalPayout
	m.TotalItems = totalItems
}

// CheckInvariants verifies I1–I3 and the per-line payout identity against the
// stored values. A non-nil result means the aggregate must not be persisted.
func (m *MasterOrder) CheckInvariants() error {
	var sumPrice, sumCommission, sumPayout int64
	for i := range m.SubOrders {
		sub := &m.SubOrders[i]
		if sub.PrinterPayout != sub.PrinterTotalPrice-sub.CommissionFee {
			return fmt.Errorf("%w: sub-order %s payout %d != price %d - commission %d",
				ErrInvariantViolation, sub.ID, sub.PrinterPayout, sub.PrinterTotalPrice, sub.CommissionFee)
		}
		sumPrice += sub.PrinterTotalPrice
		sumCommission += sub.CommissionFee
		sumPayout += sub.PrinterPayout
	}
	if m.TotalPrice != sumPrice {
		return fmt.Errorf("%w: total price %d != sum of sub-order prices %d",
			ErrInvariantViolation, m.TotalPrice, sumPrice)
	}
	if m.TotalCommission != sumCommission {
		return fmt.Errorf("%w: total commission %d != sum of commission fees %d",
			ErrInvariantViolation, m.TotalCommission, sumCommission)
	}
	if m.TotalPayout != sumPayout {
		return fmt.Errorf("%w: total payout %d != sum of printer payouts %d",
			ErrInvariantViolation, m.TotalPayout, sumPayout)
	}
	return nil
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
