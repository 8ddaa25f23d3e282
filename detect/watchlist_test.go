package detect

import "testing"

func TestWatchlistMerchantHits(t *testing.T) {
	w := NewWatchlist([]string{"wire transfer", "crypto exchange", "  "}, nil)

	hits := w.MerchantHits("QuickCash WIRE TRANSFER Services")
	if len(hits) != 1 || hits[0] != "wire transfer" {
		t.Fatalf("hits = %v", hits)
	}
	if got := w.MerchantHits("Corner Grocery"); got != nil {
		t.Fatalf("unexpected hits: %v", got)
	}
	if got := w.MerchantHits(""); got != nil {
		t.Fatalf("empty descriptor matched: %v", got)
	}
}

func TestWatchlistDevices(t *testing.T) {
	w := NewWatchlist(nil, []string{"device-1", "device-2", "device-2"})

	if !w.DeviceFlagged("device-1") {
		t.Fatal("device-1 should be flagged")
	}
	if w.DeviceFlagged("device-9") {
		t.Fatal("device-9 should not be flagged")
	}
	if w.DeviceFlagged("") {
		t.Fatal("empty id should not be flagged")
	}
}

func TestWatchlistNilSafe(t *testing.T) {
	var w *Watchlist
	if w.MerchantHits("anything") != nil || w.DeviceFlagged("x") {
		t.Fatal("nil watchlist must report no signals")
	}
}
