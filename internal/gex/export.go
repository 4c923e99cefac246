package gex

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader is the fixed export column order.
var CSVHeader = []string{"strike", "expiry", "call_gamma", "put_gamma", "net_gamma"}

// WriteCSV serializes aggregates in order with fixed two-decimal numeric
// formatting so repeated exports of the same data are byte-identical.
func WriteCSV(w io.Writer, aggs []Aggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, a := range aggs {
		row := []string{
			formatFixed(a.Strike),
			a.Label,
			formatFixed(a.CallGamma),
			formatFixed(a.PutGamma),
			formatFixed(a.NetGamma),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
