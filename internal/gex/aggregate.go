package gex

import (
	"sort"
	"time"
)

// SelectorKind identifies how an expiry selector narrows records.
type SelectorKind string

const (
	SelectAll    SelectorKind = "all"
	SelectExpiry SelectorKind = "expiry"
	SelectWeek   SelectorKind = "week"
	SelectMonth  SelectorKind = "month"
)

// ExpirySelector narrows records to a single expiry, the calendar week or
// month containing Date, or all expiries.
type ExpirySelector struct {
	Kind SelectorKind
	Date time.Time
}

// AllExpiries keeps every record, one row per (strike, expiry).
func AllExpiries() ExpirySelector {
	return ExpirySelector{Kind: SelectAll}
}

// SingleExpiry keeps records for exactly one expiry date.
func SingleExpiry(date time.Time) ExpirySelector {
	return ExpirySelector{Kind: SelectExpiry, Date: date}
}

// WeekOf keeps records whose expiry falls in the Monday-start calendar week
// containing date, summed per strike.
func WeekOf(date time.Time) ExpirySelector {
	return ExpirySelector{Kind: SelectWeek, Date: date}
}

// MonthOf keeps records whose expiry falls in the calendar month containing
// date, summed per strike.
func MonthOf(date time.Time) ExpirySelector {
	return ExpirySelector{Kind: SelectMonth, Date: date}
}

func (s ExpirySelector) matches(expiry time.Time) bool {
	switch s.Kind {
	case SelectExpiry:
		return sameDate(expiry, s.Date)
	case SelectWeek:
		return weekStart(expiry).Equal(weekStart(s.Date))
	case SelectMonth:
		return expiry.Year() == s.Date.Year() && expiry.Month() == s.Date.Month()
	default:
		return true
	}
}

// grouped reports whether the selector collapses expiries per strike.
func (s ExpirySelector) grouped() bool {
	return s.Kind == SelectWeek || s.Kind == SelectMonth
}

// label is the group label for the filtered rows: the expiry date itself for
// single/all rows, the week's Monday for week groups, YYYY-MM for month
// groups. All labels are fixed-format and locale-free.
func (s ExpirySelector) label(expiry time.Time) string {
	switch s.Kind {
	case SelectWeek:
		return weekStart(expiry).Format("2006-01-02")
	case SelectMonth:
		return expiry.Format("2006-01")
	default:
		return expiry.Format("2006-01-02")
	}
}

// Aggregate is one row of a filtered or grouped GEX view.
type Aggregate struct {
	Strike    float64
	Label     string
	CallGamma float64
	PutGamma  float64
	NetGamma  float64
}

// FilterRecords narrows records to those whose expiry the selector accepts,
// preserving order.
func FilterRecords(records []Record, sel ExpirySelector) []Record {
	var filtered []Record
	for _, rec := range records {
		if sel.matches(rec.Expiry) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// FilterAndGroup narrows records by the selector and, for week and month
// selectors, sums exposures per strike across the selected expiries. The
// result stays sorted ascending by strike (then label for ungrouped rows).
func FilterAndGroup(records []Record, sel ExpirySelector) []Aggregate {
	filtered := FilterRecords(records, sel)

	if !sel.grouped() {
		out := make([]Aggregate, 0, len(filtered))
		for _, rec := range filtered {
			out = append(out, Aggregate{
				Strike:    rec.Strike,
				Label:     sel.label(rec.Expiry),
				CallGamma: rec.CallGamma,
				PutGamma:  rec.PutGamma,
				NetGamma:  rec.NetGamma,
			})
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Strike != out[j].Strike {
				return out[i].Strike < out[j].Strike
			}
			return out[i].Label < out[j].Label
		})
		return out
	}

	byStrike := make(map[float64]*Aggregate)
	for _, rec := range filtered {
		agg, ok := byStrike[rec.Strike]
		if !ok {
			agg = &Aggregate{Strike: rec.Strike, Label: sel.label(rec.Expiry)}
			byStrike[rec.Strike] = agg
		}
		agg.CallGamma += rec.CallGamma
		agg.PutGamma += rec.PutGamma
		agg.NetGamma += rec.NetGamma
	}

	out := make([]Aggregate, 0, len(byStrike))
	for _, agg := range byStrike {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// weekStart returns midnight UTC of the Monday of t's calendar week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
