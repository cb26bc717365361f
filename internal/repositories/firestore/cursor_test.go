package firestore

import (
	"errors"
	"testing"
	"time"

	domain "github.com/printmesh/api/internal/domain"
)

func TestPageCursorRoundTrip(t *testing.T) {
	in := pageCursor{
		createdAt: time.Date(2025, 6, 15, 10, 0, 0, 123456789, time.UTC),
		id:        "mo_01HZX",
	}

	out, err := decodePageCursor(encodePageCursor(in))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !out.createdAt.Equal(in.createdAt) || out.id != in.id {
		t.Fatalf("cursor changed in transit: %+v != %+v", out, in)
	}
}

func TestDecodePageCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm9waXBl", ""} {
		if _, err := decodePageCursor(token); !errors.Is(err, errBadPageToken) {
			t.Fatalf("token %q: expected bad token error, got %v", token, err)
		}
	}
}

func TestClampPageSize(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, defaultPageSize},
		{-5, defaultPageSize},
		{42, 42},
		{maxPageSize + 1, maxPageSize},
	}
	for _, tc := range cases {
		if got := clampPageSize(domain.Pagination{PageSize: tc.in}); got != tc.want {
			t.Fatalf("size %d: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestEncodeMasterOrderDenormalisesLookupKeys(t *testing.T) {
	order := domain.MasterOrder{
		ID: "mo_1",
		SubOrders: []domain.SubOrder{
			{ID: "so_a", PartnerID: "ptn_a"},
			{ID: "so_b", PartnerID: "ptn_b"},
		},
	}

	doc := encodeMasterOrder(order)
	if len(doc.SubOrderIDs) != 2 || doc.SubOrderIDs[0] != "so_a" || doc.SubOrderIDs[1] != "so_b" {
		t.Fatalf("sub-order keys not denormalised: %v", doc.SubOrderIDs)
	}
	if len(doc.PartnerIDs) != 2 || doc.PartnerIDs[0] != "ptn_a" || doc.PartnerIDs[1] != "ptn_b" {
		t.Fatalf("partner keys not denormalised: %v", doc.PartnerIDs)
	}

	back := decodeMasterOrder("mo_1", doc)
	if len(back.SubOrders) != 2 || back.SubOrders[1].PartnerID != "ptn_b" {
		t.Fatalf("aggregate lost in round trip: %+v", back)
	}
}
