// Package chain holds the normalized option-chain snapshot model and the
// strict parser for raw provider chain documents.
package chain

import (
	"math"
	"sort"
	"time"
)

// OptionType is the side of an option contract.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Contract is one option contract row inside a snapshot. Immutable once
// constructed. A missing or non-numeric gamma is represented as NaN and a
// missing open interest as -1; the GEX engine skips and counts such rows
// instead of failing the whole computation.
type Contract struct {
	Strike       float64
	Expiry       time.Time // calendar date, midnight UTC
	Type         OptionType
	OpenInterest int64
	Gamma        float64
}

// HasGamma reports whether the contract carries a usable gamma value.
func (c Contract) HasGamma() bool {
	return !math.IsNaN(c.Gamma)
}

// HasOpenInterest reports whether the contract carries a usable open interest.
func (c Contract) HasOpenInterest() bool {
	return c.OpenInterest >= 0
}

// Snapshot is one point-in-time option chain for a single symbol. All
// contracts share the snapshot's symbol and underlying price.
type Snapshot struct {
	Symbol          string
	FetchedAt       time.Time
	UnderlyingPrice float64
	Contracts       []Contract
}

// Empty reports whether the snapshot carries no contracts, which represents
// an empty or failed fetch rather than a parse defect.
func (s *Snapshot) Empty() bool {
	return len(s.Contracts) == 0
}

// Expiries returns the distinct expiry dates in the snapshot, ascending.
func (s *Snapshot) Expiries() []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, c := range s.Contracts {
		if !seen[c.Expiry] {
			seen[c.Expiry] = true
			out = append(out, c.Expiry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
