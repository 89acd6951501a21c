package catalog

import "errors"

var ErrUnknownBundle = errors.New("unknown bundle")

// BundleDefinition is a static sellable package: Count templates for Amount
// minor-currency units.
type BundleDefinition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
	Count  int    `json:"count"`
}

var bundles = map[string]BundleDefinition{
	"single":   {ID: "single", Name: "Single Template", Amount: 499, Count: 1},
	"starter":  {ID: "starter", Name: "Starter Pack", Amount: 1299, Count: 3},
	"creator":  {ID: "creator", Name: "Creator Bundle", Amount: 1999, Count: 5},
	"complete": {ID: "complete", Name: "Complete Collection", Amount: 3499, Count: 10},
}

// Lookup resolves a bundle identifier against the static catalog.
func Lookup(bundleID string) (BundleDefinition, error) {
	bundle, ok := bundles[bundleID]
	if !ok {
		return BundleDefinition{}, ErrUnknownBundle
	}
	return bundle, nil
}

// All returns every bundle in a stable order, cheapest first.
func All() []BundleDefinition {
	out := make([]BundleDefinition, 0, len(bundles))
	for _, id := range []string{"single", "starter", "creator", "complete"} {
		out = append(out, bundles[id])
	}
	return out
}
