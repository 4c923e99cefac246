package store

import (
	"encoding/json"
	"math"
	"time"

	"github.com/OUgly/GEXCalculator/internal/chain"
)

// blobSnapshot is the persisted snapshot shape. Gamma is a pointer because
// the in-memory model carries NaN for missing gammas, which JSON cannot.
type blobSnapshot struct {
	Symbol          string         `json:"symbol"`
	FetchedAt       int64          `json:"fetched_at"`
	UnderlyingPrice float64        `json:"underlying_price"`
	Contracts       []blobContract `json:"contracts"`
}

type blobContract struct {
	Strike       float64  `json:"strike"`
	Expiry       string   `json:"expiry"`
	Type         string   `json:"type"`
	OpenInterest int64    `json:"open_interest"`
	Gamma        *float64 `json:"gamma,omitempty"`
}

func encodeSnapshot(snap *chain.Snapshot) ([]byte, error) {
	blob := blobSnapshot{
		Symbol:          snap.Symbol,
		FetchedAt:       snap.FetchedAt.UnixNano(),
		UnderlyingPrice: snap.UnderlyingPrice,
		Contracts:       make([]blobContract, 0, len(snap.Contracts)),
	}
	for _, c := range snap.Contracts {
		bc := blobContract{
			Strike:       c.Strike,
			Expiry:       c.Expiry.Format("2006-01-02"),
			Type:         string(c.Type),
			OpenInterest: c.OpenInterest,
		}
		if c.HasGamma() {
			g := c.Gamma
			bc.Gamma = &g
		}
		blob.Contracts = append(blob.Contracts, bc)
	}
	return json.Marshal(blob)
}

func decodeSnapshot(data []byte) (*chain.Snapshot, error) {
	var blob blobSnapshot
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	snap := &chain.Snapshot{
		Symbol:          blob.Symbol,
		FetchedAt:       time.Unix(0, blob.FetchedAt).UTC(),
		UnderlyingPrice: blob.UnderlyingPrice,
		Contracts:       make([]chain.Contract, 0, len(blob.Contracts)),
	}
	for _, bc := range blob.Contracts {
		expiry, err := time.ParseInLocation("2006-01-02", bc.Expiry, time.UTC)
		if err != nil {
			return nil, err
		}
		c := chain.Contract{
			Strike:       bc.Strike,
			Expiry:       expiry,
			Type:         chain.OptionType(bc.Type),
			OpenInterest: bc.OpenInterest,
			Gamma:        math.NaN(),
		}
		if bc.Gamma != nil {
			c.Gamma = *bc.Gamma
		}
		snap.Contracts = append(snap.Contracts, c)
	}
	return snap, nil
}
