// Package gex turns chain snapshots into aggregated gamma-exposure records,
// the zero-gamma crossing estimate, and export-ready views. Everything here
// is pure: snapshots in, derived records out, no locking.
package gex

import (
	"sort"
	"time"

	"github.com/OUgly/GEXCalculator/internal/chain"
)

// ContractMultiplier is the standard equity option sizing of 100 shares per
// contract.
const ContractMultiplier = 100

// SignConvention maps call and put gamma contributions onto the dealer book.
// Keeping it a value makes the convention swappable without touching the
// aggregation.
type SignConvention struct {
	Call float64
	Put  float64
}

// DealerPositioning is the standard dealer-short-retail-long assumption:
// dealers are long gamma on calls and short gamma on puts.
var DealerPositioning = SignConvention{Call: 1, Put: -1}

// Record is the signed dollar gamma exposure aggregated at one
// (strike, expiry) key. Derived, never mutated after creation.
type Record struct {
	Strike    float64
	Expiry    time.Time
	CallGamma float64
	PutGamma  float64
	NetGamma  float64
}

// Result is the outcome of one computation over a snapshot. Skipped counts
// contracts excluded for missing or non-numeric gamma or open interest; a
// nonzero count is a warning, never a failure.
type Result struct {
	Symbol  string
	Spot    float64
	Records []Record
	Skipped int
}

// TotalCall returns the summed call gamma exposure across all records.
func (r Result) TotalCall() float64 {
	var sum float64
	for _, rec := range r.Records {
		sum += rec.CallGamma
	}
	return sum
}

// TotalPut returns the summed put gamma exposure across all records.
func (r Result) TotalPut() float64 {
	var sum float64
	for _, rec := range r.Records {
		sum += rec.PutGamma
	}
	return sum
}

// TotalNet returns the summed net gamma exposure across all records.
func (r Result) TotalNet() float64 {
	var sum float64
	for _, rec := range r.Records {
		sum += rec.NetGamma
	}
	return sum
}

// Engine computes GEX records from snapshots under a fixed sign convention.
type Engine struct {
	signs SignConvention
}

// NewEngine returns an engine using the standard dealer positioning signs.
func NewEngine() *Engine {
	return &Engine{signs: DealerPositioning}
}

// NewEngineWithConvention returns an engine with an explicit sign convention.
func NewEngineWithConvention(signs SignConvention) *Engine {
	return &Engine{signs: signs}
}

// DollarGamma converts a per-contract unit gamma and open interest into
// dollar gamma exposure per 1% move of the underlying.
func DollarGamma(gamma float64, openInterest int64, spot float64) float64 {
	return gamma * float64(openInterest) * ContractMultiplier * spot * spot * 0.01
}

type recordKey struct {
	strike float64
	expiry int64
}

// Compute aggregates the snapshot's contracts into signed GEX records keyed
// by (strike, expiry), sorted ascending by strike then expiry. Contracts
// without a usable gamma or open interest are excluded and counted.
func (e *Engine) Compute(snap *chain.Snapshot) Result {
	res := Result{Symbol: snap.Symbol, Spot: snap.UnderlyingPrice}

	agg := make(map[recordKey]*Record)
	for _, c := range snap.Contracts {
		if !c.HasGamma() || !c.HasOpenInterest() {
			res.Skipped++
			continue
		}

		key := recordKey{strike: c.Strike, expiry: c.Expiry.Unix()}
		rec, ok := agg[key]
		if !ok {
			rec = &Record{Strike: c.Strike, Expiry: c.Expiry}
			agg[key] = rec
		}

		exposure := DollarGamma(c.Gamma, c.OpenInterest, snap.UnderlyingPrice)
		switch c.Type {
		case chain.Call:
			rec.CallGamma += e.signs.Call * exposure
		case chain.Put:
			rec.PutGamma += e.signs.Put * exposure
		}
	}

	res.Records = make([]Record, 0, len(agg))
	for _, rec := range agg {
		rec.NetGamma = rec.CallGamma + rec.PutGamma
		res.Records = append(res.Records, *rec)
	}
	sort.Slice(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Expiry.Before(b.Expiry)
	})
	return res
}
