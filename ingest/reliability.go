package ingest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinReliability is the lowest reliability score that is kept.
var MinReliability = decimal.NewFromInt(3)

// MeetsThreshold compares a raw reliability cell numerically. Surrounding
// whitespace is ignored; empty and non-numeric cells never pass.
func MeetsThreshold(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return d.GreaterThanOrEqual(MinReliability)
}
