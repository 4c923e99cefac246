package gex

import (
	"bytes"
	"encoding/csv"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	aggs := []Aggregate{
		{Strike: 4900, Label: "2026-09-18", CallGamma: 1234.567, PutGamma: -890.123, NetGamma: 344.444},
		{Strike: 5000, Label: "2026-09-18", CallGamma: 10, PutGamma: -20, NetGamma: -10},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, aggs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	for i, col := range CSVHeader {
		if rows[0][i] != col {
			t.Errorf("header column %d: expected %q, got %q", i, col, rows[0][i])
		}
	}

	want := []string{"4900.00", "2026-09-18", "1234.57", "-890.12", "344.44"}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Errorf("row 1 column %d: expected %q, got %q", i, cell, rows[1][i])
		}
	}
}

func TestWriteCSVDeterministic(t *testing.T) {
	aggs := []Aggregate{
		{Strike: 100, Label: "2026-09-18", CallGamma: 1, PutGamma: -2, NetGamma: -1},
	}

	var a, b bytes.Buffer
	if err := WriteCSV(&a, aggs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteCSV(&b, aggs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("repeated exports of the same data differ")
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}
