package cart

import "testing"

// checkInvariants asserts the totals never drift from the items and no
// line holds a quantity below 1.
func checkInvariants(t *testing.T, s State) {
	t.Helper()
	total, count := Totals(s.Items)
	if s.Total != total || s.ItemCount != count {
		t.Fatalf("totals drifted: stored (%v,%d), derived (%v,%d)", s.Total, s.ItemCount, total, count)
	}
	for _, it := range s.Items {
		if it.Quantity < 1 {
			t.Fatalf("item %s has quantity %d", it.ID, it.Quantity)
		}
	}
}

func TestStoreStartsLoading(t *testing.T) {
	s := NewStore()
	st := s.Snapshot()
	if !st.Loading {
		t.Fatal("new store must report loading until the first authoritative read")
	}
	if len(st.Items) != 0 || st.Total != 0 || st.ItemCount != 0 {
		t.Fatalf("new store must be empty, got %+v", st)
	}
}

func TestAddAppendsPendingLine(t *testing.T) {
	s := NewStore()
	s.Add(Product{ID: "P1", Name: "Widget", Price: 100}, 2)

	st := s.Snapshot()
	checkInvariants(t, st)
	if len(st.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(st.Items))
	}
	it := st.Items[0]
	if it.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", it.Status)
	}
	if it.ID == "" {
		t.Fatal("pending line must carry a locally generated id")
	}
	if st.Total != 200 || st.ItemCount != 2 {
		t.Fatalf("expected (200,2), got (%v,%d)", st.Total, st.ItemCount)
	}
}

func TestAddMergesByProduct(t *testing.T) {
	s := NewStore()
	p := Product{ID: "P1", Price: 100}
	s.Add(p, 2)
	s.Add(p, 3)

	st := s.Snapshot()
	checkInvariants(t, st)
	if len(st.Items) != 1 {
		t.Fatalf("same product must merge into one line, got %d lines", len(st.Items))
	}
	if st.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", st.Items[0].Quantity)
	}
}

func TestSetCartReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.Add(Product{ID: "P1", Price: 100}, 2)

	s.SetCart(Cart{
		Items: []LineItem{{ID: "srv-1", Status: StatusConfirmed, Product: Product{ID: "P2", Price: 10}, Quantity: 4, Price: 10}},
		// Deliberately wrong payload totals: the store must recompute.
		TotalAmount: 999,
		TotalItems:  999,
	})

	st := s.Snapshot()
	checkInvariants(t, st)
	if st.Loading {
		t.Fatal("SetCart must clear the loading flag")
	}
	if len(st.Items) != 1 || st.Items[0].ID != "srv-1" {
		t.Fatalf("expected wholesale replacement, got %+v", st.Items)
	}
	if st.Total != 40 || st.ItemCount != 4 {
		t.Fatalf("expected recomputed (40,4), got (%v,%d)", st.Total, st.ItemCount)
	}
}

func TestUpdateSetsQuantity(t *testing.T) {
	s := NewStore()
	s.SetCart(Cart{Items: []LineItem{{ID: "srv-1", Product: Product{ID: "P1"}, Quantity: 2, Price: 100}}})

	s.Update("srv-1", 5)
	st := s.Snapshot()
	checkInvariants(t, st)
	if st.Items[0].Quantity != 5 || st.Total != 500 {
		t.Fatalf("expected quantity 5 total 500, got %d %v", st.Items[0].Quantity, st.Total)
	}

	// Unknown id and sub-1 quantity are no-ops.
	s.Update("missing", 3)
	s.Update("srv-1", 0)
	st = s.Snapshot()
	checkInvariants(t, st)
	if st.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity unchanged, got %d", st.Items[0].Quantity)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewStore()
	s.SetCart(Cart{Items: []LineItem{{ID: "srv-1", Quantity: 1, Price: 10}}})

	s.Remove("srv-1")
	s.Remove("srv-1")
	st := s.Snapshot()
	checkInvariants(t, st)
	if len(st.Items) != 0 || st.Total != 0 {
		t.Fatalf("expected empty cart, got %+v", st)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.SetCart(Cart{Items: []LineItem{{ID: "a", Quantity: 2, Price: 5}, {ID: "b", Quantity: 1, Price: 3}}})

	s.Clear()
	s.Clear()
	st := s.Snapshot()
	checkInvariants(t, st)
	if len(st.Items) != 0 || st.Total != 0 || st.ItemCount != 0 {
		t.Fatalf("expected empty cart, got %+v", st)
	}
}

func TestSnapshotDoesNotAliasInternalItems(t *testing.T) {
	s := NewStore()
	s.SetCart(Cart{Items: []LineItem{{ID: "srv-1", Quantity: 1, Price: 10}}})

	st := s.Snapshot()
	st.Items[0].Quantity = 99
	if got := s.Snapshot().Items[0].Quantity; got != 1 {
		t.Fatalf("snapshot mutation leaked into store, quantity %d", got)
	}
}
