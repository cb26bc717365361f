package domain

import (
	"math/rand"
	"testing"
)

func TestDeriveMasterStatusPaymentGate(t *testing.T) {
	statuses := []PrinterStatus{PrinterStatusShipped, PrinterStatusInProduction}

	for _, payment := range []PaymentStatus{PaymentStatusUnpaid, PaymentStatusFailed, PaymentStatusRefunded} {
		if got := DeriveMasterStatus(statuses, payment); got != MasterStatusPending {
			t.Fatalf("payment %s: expected pending, got %s", payment, got)
		}
	}

	// Terminal outcomes beat the gate: refunding a cancelled order keeps it cancelled.
	all := []PrinterStatus{PrinterStatusCancelled, PrinterStatusCancelled}
	if got := DeriveMasterStatus(all, PaymentStatusRefunded); got != MasterStatusCancelled {
		t.Fatalf("refunded cancelled order: expected cancelled, got %s", got)
	}
	done := []PrinterStatus{PrinterStatusShipped, PrinterStatusCompleted}
	if got := DeriveMasterStatus(done, PaymentStatusRefunded); got != MasterStatusCompleted {
		t.Fatalf("refunded completed order: expected completed, got %s", got)
	}
}

func TestDeriveMasterStatusReduction(t *testing.T) {
	cases := []struct {
		name     string
		statuses []PrinterStatus
		want     MasterStatus
	}{
		{"no sub-orders", nil, MasterStatusPending},
		{"all pending", []PrinterStatus{PrinterStatusPending, PrinterStatusPending}, MasterStatusPending},
		{"one accepted", []PrinterStatus{PrinterStatusAccepted, PrinterStatusPending}, MasterStatusProcessing},
		{"one shipped one pending", []PrinterStatus{PrinterStatusShipped, PrinterStatusPending}, MasterStatusProcessing},
		{"all completed", []PrinterStatus{PrinterStatusCompleted, PrinterStatusCompleted}, MasterStatusCompleted},
		{"all shipped", []PrinterStatus{PrinterStatusShipped, PrinterStatusShipped}, MasterStatusCompleted},
		{"shipped plus completed", []PrinterStatus{PrinterStatusShipped, PrinterStatusCompleted}, MasterStatusCompleted},
		{"all cancelled", []PrinterStatus{PrinterStatusCancelled, PrinterStatusCancelled}, MasterStatusCancelled},
		{"partial cancellation stays processing", []PrinterStatus{PrinterStatusCancelled, PrinterStatusInProduction}, MasterStatusProcessing},
		{"cancelled plus completed stays processing", []PrinterStatus{PrinterStatusCancelled, PrinterStatusCompleted}, MasterStatusProcessing},
		{"cancelled plus pending stays processing", []PrinterStatus{PrinterStatusCancelled, PrinterStatusPending}, MasterStatusProcessing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveMasterStatus(tc.statuses, PaymentStatusPaid); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDeriveMasterStatusOrderIndependent(t *testing.T) {
	all := []PrinterStatus{
		PrinterStatusPending, PrinterStatusAccepted, PrinterStatusInProduction,
		PrinterStatusShipped, PrinterStatusCompleted, PrinterStatusCancelled,
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(6)
		statuses := make([]PrinterStatus, n)
		for i := range statuses {
			statuses[i] = all[rng.Intn(len(all))]
		}

		want := DeriveMasterStatus(statuses, PaymentStatusPaid)
		for perm := 0; perm < 10; perm++ {
			shuffled := append([]PrinterStatus(nil), statuses...)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			if got := DeriveMasterStatus(shuffled, PaymentStatusPaid); got != want {
				t.Fatalf("permutation of %v changed result: %s != %s", statuses, got, want)
			}
		}
	}
}

func TestRederiveReportsChange(t *testing.T) {
	order := MasterOrder{
		PaymentStatus: PaymentStatusPaid,
		MasterStatus:  MasterStatusPending,
		SubOrders: []SubOrder{
			{ID: "so_1", PrinterStatus: PrinterStatusAccepted},
			{ID: "so_2", PrinterStatus: PrinterStatusPending},
		},
	}

	prev, changed := order.Rederive()
	if prev != MasterStatusPending || !changed {
		t.Fatalf("expected change from pending, got prev=%s changed=%v", prev, changed)
	}
	if order.MasterStatus != MasterStatusProcessing {
		t.Fatalf("expected processing, got %s", order.MasterStatus)
	}

	if _, changed := order.Rederive(); changed {
		t.Fatal("second rederive should be a no-op")
	}
}
