package chain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// providerDocument mirrors the provider /chains payload shape. Strikes map to
// a list of contracts keyed by expiry ("2025-01-17:30") then strike ("19.0").
type providerDocument struct {
	Symbol          string                     `json:"symbol"`
	UnderlyingPrice *float64                   `json:"underlyingPrice"`
	CallExpDateMap  map[string]map[string]any  `json:"callExpDateMap"`
	PutExpDateMap   map[string]map[string]any  `json:"putExpDateMap"`
}

// Parse maps a raw provider chain document onto a Snapshot. It validates the
// document shape strictly: a missing symbol, a non-positive underlying price,
// or an unparseable expiry/strike key abort with a ParseError naming the
// field. A contract with missing or non-numeric gamma or open interest is
// retained with sentinel values so the engine can count it as skipped.
func Parse(raw []byte, fetchedAt time.Time) (*Snapshot, error) {
	var doc providerDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, parseErrorf("(document)", "invalid JSON: %v", err)
	}
	return fromDocument(&doc, fetchedAt)
}

func fromDocument(doc *providerDocument, fetchedAt time.Time) (*Snapshot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(doc.Symbol))
	if symbol == "" {
		return nil, parseErrorf("symbol", "missing or empty")
	}
	if doc.UnderlyingPrice == nil {
		return nil, parseErrorf("underlyingPrice", "missing")
	}
	spot := *doc.UnderlyingPrice
	if spot <= 0 || math.IsNaN(spot) || math.IsInf(spot, 0) {
		return nil, parseErrorf("underlyingPrice", "must be a positive number, got %v", spot)
	}
	if len(doc.CallExpDateMap) == 0 && len(doc.PutExpDateMap) == 0 {
		return nil, parseErrorf("callExpDateMap", "no expiration maps present")
	}

	snap := &Snapshot{
		Symbol:          symbol,
		FetchedAt:       fetchedAt.UTC(),
		UnderlyingPrice: spot,
	}

	for _, side := range []struct {
		field string
		typ   OptionType
		m     map[string]map[string]any
	}{
		{"callExpDateMap", Call, doc.CallExpDateMap},
		{"putExpDateMap", Put, doc.PutExpDateMap},
	} {
		contracts, err := parseSide(side.field, side.typ, side.m)
		if err != nil {
			return nil, err
		}
		snap.Contracts = append(snap.Contracts, contracts...)
	}

	sort.Slice(snap.Contracts, func(i, j int) bool {
		a, b := snap.Contracts[i], snap.Contracts[j]
		if !a.Expiry.Equal(b.Expiry) {
			return a.Expiry.Before(b.Expiry)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type < b.Type
	})
	return snap, nil
}

func parseSide(field string, typ OptionType, expMap map[string]map[string]any) ([]Contract, error) {
	var out []Contract
	for expiryKey, strikes := range expMap {
		expiry, err := parseExpiryKey(expiryKey)
		if err != nil {
			return nil, parseErrorf(field, "expiry key %q: %v", expiryKey, err)
		}
		for strikeKey, entry := range strikes {
			strike, err := strconv.ParseFloat(strikeKey, 64)
			if err != nil {
				return nil, parseErrorf(field, "strike key %q is not numeric", strikeKey)
			}
			for _, c := range contractList(entry) {
				out = append(out, Contract{
					Strike:       strike,
					Expiry:       expiry,
					Type:         typ,
					OpenInterest: contractOpenInterest(c),
					Gamma:        contractGamma(c),
				})
			}
		}
	}
	return out, nil
}

// parseExpiryKey strips the ":days-to-expiry" suffix the provider appends
// ("2025-01-17:30" -> 2025-01-17) and parses the date.
func parseExpiryKey(key string) (time.Time, error) {
	date := key
	if i := strings.IndexByte(key, ':'); i >= 0 {
		date = key[:i]
	}
	return time.ParseInLocation("2006-01-02", date, time.UTC)
}

// contractList normalizes the per-strike entry, which the provider encodes
// either as a list of contracts or a single contract object.
func contractList(entry any) []map[string]any {
	switch v := entry.(type) {
	case []any:
		var out []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}

// contractGamma pulls gamma from the contract, checking the flat field first
// and then the nested greek maps some provider versions use. Missing or
// non-numeric values come back as NaN.
func contractGamma(c map[string]any) float64 {
	if g, ok := numeric(c["gamma"]); ok {
		return g
	}
	for _, key := range []string{"greek", "greeks"} {
		if nested, ok := c[key].(map[string]any); ok {
			if g, ok := numeric(nested["gamma"]); ok {
				return g
			}
		}
	}
	return math.NaN()
}

func contractOpenInterest(c map[string]any) int64 {
	v, ok := numeric(c["openInterest"])
	if !ok || v < 0 || math.IsNaN(v) {
		return -1
	}
	return int64(v)
}

// numeric coerces a decoded JSON value to float64. Anything that is not a
// finite number reports false.
func numeric(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
