package detect

import (
	"strings"

	"github.com/FastFilter/xorfilter"
	"github.com/cespare/xxhash/v2"
	"github.com/cloudflare/ahocorasick"
)

// Watchlist flags risk signals attached to a transaction: merchant
// descriptors matching known-bad terms and device identifiers on a denylist.
// Signals are informational and do not alter the risk score.
type Watchlist struct {
	terms   []string
	matcher *ahocorasick.Matcher

	// deviceFilter answers most lookups; devices confirms the hits since
	// the filter admits false positives.
	deviceFilter *xorfilter.BinaryFuse8
	devices      map[string]bool
}

func NewWatchlist(merchantTerms, deviceIDs []string) *Watchlist {
	w := &Watchlist{}

	for _, term := range merchantTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			w.terms = append(w.terms, term)
		}
	}
	if len(w.terms) > 0 {
		w.matcher = ahocorasick.NewStringMatcher(w.terms)
	}

	if len(deviceIDs) > 0 {
		w.devices = make(map[string]bool, len(deviceIDs))
		keys := make([]uint64, 0, len(deviceIDs))
		for _, id := range deviceIDs {
			id = strings.TrimSpace(id)
			if id == "" || w.devices[id] {
				continue
			}
			w.devices[id] = true
			keys = append(keys, xxhash.Sum64String(id))
		}
		if filter, err := xorfilter.PopulateBinaryFuse8(keys); err == nil {
			w.deviceFilter = filter
		}
	}
	return w
}

// MerchantHits returns the watchlist terms found in a merchant descriptor.
func (w *Watchlist) MerchantHits(descriptor string) []string {
	if w == nil || w.matcher == nil || descriptor == "" {
		return nil
	}
	var hits []string
	for _, idx := range w.matcher.MatchThreadSafe([]byte(strings.ToLower(descriptor))) {
		hits = append(hits, w.terms[idx])
	}
	return hits
}

// DeviceFlagged reports whether a device identifier is on the denylist.
func (w *Watchlist) DeviceFlagged(deviceID string) bool {
	if w == nil || len(w.devices) == 0 || deviceID == "" {
		return false
	}
	if w.deviceFilter != nil && !w.deviceFilter.Contains(xxhash.Sum64String(deviceID)) {
		return false
	}
	return w.devices[deviceID]
}
