package gex

import (
	"math"
	"sort"
)

// ZeroGamma estimates the strike at which net gamma exposure crosses zero.
// Records are collapsed to per-strike net values (summed across expiries),
// scanned in ascending strike order for the first adjacent sign change, and
// the crossing is linearly interpolated between the two strikes. The result
// is absent (ok=false) when no sign change exists or fewer than two strikes
// carry nonzero net exposure; absence is never coerced to a number.
func ZeroGamma(records []Record) (float64, bool) {
	byStrike := make(map[float64]float64)
	for _, rec := range records {
		byStrike[rec.Strike] += rec.NetGamma
	}

	strikes := make([]float64, 0, len(byStrike))
	nonzero := 0
	for s, v := range byStrike {
		strikes = append(strikes, s)
		if v != 0 {
			nonzero++
		}
	}
	if nonzero < 2 {
		return 0, false
	}
	sort.Float64s(strikes)

	for i := 0; i+1 < len(strikes); i++ {
		s1, s2 := strikes[i], strikes[i+1]
		v1, v2 := byStrike[s1], byStrike[s2]
		if v1 == 0 || v2 == 0 || (v1 > 0) == (v2 > 0) {
			continue
		}
		cross := s1 + (s2-s1)*math.Abs(v1)/(math.Abs(v1)+math.Abs(v2))
		return cross, true
	}
	return 0, false
}
