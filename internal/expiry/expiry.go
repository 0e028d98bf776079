// Package expiry classifies groceries by freshness relative to a reference day.
package expiry

import (
	"sort"

	"github.com/dukerupert/pantry/internal/model"
)

// DefaultHorizonDays is the look-ahead window for "expiring soon".
const DefaultHorizonDays = 7

type Freshness string

const (
	FreshnessExpired      Freshness = "expired"
	FreshnessExpiringSoon Freshness = "expiring_soon"
	FreshnessFresh        Freshness = "fresh"
)

// WarningSet is the derived banner data for one user's groceries. It is
// computed per request and never stored.
type WarningSet struct {
	Expired           []model.GroceryItem `json:"expired"`
	ExpiringSoon      []model.GroceryItem `json:"expiring_soon"`
	ExpiredCount      int                 `json:"expired_count"`
	ExpiringSoonCount int                 `json:"expiring_soon_count"`
}

// Status returns the freshness of a single item. An item expiring today is
// expiring soon, not expired.
func Status(item model.GroceryItem, today model.Date, horizonDays int) Freshness {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	switch {
	case item.ExpiryDate.Before(today):
		return FreshnessExpired
	case !item.ExpiryDate.After(today.AddDays(horizonDays)):
		return FreshnessExpiringSoon
	default:
		return FreshnessFresh
	}
}

// Classify partitions items into expired and expiring-soon sets. Expired
// items are ordered most recently expired first; expiring-soon items are
// ordered soonest first. Ties keep input order.
func Classify(items []model.GroceryItem, today model.Date, horizonDays int) WarningSet {
	ws := WarningSet{
		Expired:      []model.GroceryItem{},
		ExpiringSoon: []model.GroceryItem{},
	}

	for _, item := range items {
		switch Status(item, today, horizonDays) {
		case FreshnessExpired:
			ws.Expired = append(ws.Expired, item)
		case FreshnessExpiringSoon:
			ws.ExpiringSoon = append(ws.ExpiringSoon, item)
		}
	}

	sort.SliceStable(ws.Expired, func(i, j int) bool {
		return ws.Expired[i].ExpiryDate.After(ws.Expired[j].ExpiryDate)
	})
	sort.SliceStable(ws.ExpiringSoon, func(i, j int) bool {
		return ws.ExpiringSoon[i].ExpiryDate.Before(ws.ExpiringSoon[j].ExpiryDate)
	})

	ws.ExpiredCount = len(ws.Expired)
	ws.ExpiringSoonCount = len(ws.ExpiringSoon)
	return ws
}

// Names returns the distinct names of the expiring-soon items, in order.
func (ws WarningSet) Names() []string {
	seen := make(map[string]struct{}, len(ws.ExpiringSoon))
	names := make([]string, 0, len(ws.ExpiringSoon))
	for _, item := range ws.ExpiringSoon {
		if _, ok := seen[item.Name]; ok {
			continue
		}
		seen[item.Name] = struct{}{}
		names = append(names, item.Name)
	}
	return names
}
