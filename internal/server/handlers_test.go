package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/cache"
	"github.com/OUgly/GEXCalculator/internal/chain"
	"github.com/OUgly/GEXCalculator/internal/fetch"
	"github.com/OUgly/GEXCalculator/internal/gex"
	"github.com/OUgly/GEXCalculator/internal/store"
)

type stubFetcher struct {
	snap *chain.Snapshot
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, symbol string) (*chain.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func testRouter(t *testing.T, fetcher cache.Fetcher) (http.Handler, *cache.SymbolCache, *store.Store) {
	t.Helper()
	logger := zap.NewNop()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	symbolCache := cache.New(fetcher, cache.Config{TTL: 30 * time.Minute}, logger)
	srv := NewServer(symbolCache, gex.NewEngine(), st, logger)

	router, err := NewRouter(srv, nil, logger)
	if err != nil {
		t.Fatalf("failed to create router: %v", err)
	}
	return router, symbolCache, st
}

func seededSnapshot() *chain.Snapshot {
	expiry := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	return &chain.Snapshot{
		Symbol:          "SPX",
		FetchedAt:       time.Now().UTC(),
		UnderlyingPrice: 100,
		Contracts: []chain.Contract{
			{Strike: 100, Expiry: expiry, Type: chain.Call, OpenInterest: 10, Gamma: 0.01},
			{Strike: 105, Expiry: expiry, Type: chain.Put, OpenInterest: 10, Gamma: 0.01},
		},
	}
}

func TestGetGex(t *testing.T) {
	router, symbolCache, _ := testRouter(t, &stubFetcher{err: errors.New("should not fetch")})
	symbolCache.Put(seededSnapshot())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/SPX", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp gexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Symbol != "SPX" || resp.Spot != 100 {
		t.Errorf("wrong header fields: %+v", resp)
	}
	if !resp.FromCache {
		t.Error("seeded snapshot should report from_cache")
	}
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Records))
	}
	if resp.ZeroGamma == nil {
		t.Fatal("expected a zero gamma crossing")
	}
	// +exposure at 100, equal -exposure at 105 crosses at the midpoint.
	if math.Abs(*resp.ZeroGamma-102.5) > 1e-9 {
		t.Errorf("expected zero gamma 102.5, got %v", *resp.ZeroGamma)
	}
}

func TestGetGexNoCrossingOmitsZeroGamma(t *testing.T) {
	router, symbolCache, _ := testRouter(t, &stubFetcher{err: errors.New("down")})
	snap := seededSnapshot()
	snap.Contracts = snap.Contracts[:1] // calls only, all positive
	symbolCache.Put(snap)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/SPX", nil))

	var resp gexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.ZeroGamma != nil {
		t.Errorf("expected null zero_gamma, got %v", *resp.ZeroGamma)
	}
}

func TestGetGexSelectorConflict(t *testing.T) {
	router, symbolCache, _ := testRouter(t, &stubFetcher{err: errors.New("down")})
	symbolCache.Put(seededSnapshot())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/SPX?expiry=2026-09-18&week=2026-09-14", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for conflicting selectors, got %d", rec.Code)
	}
}

func TestGetGexFetchFailure(t *testing.T) {
	router, _, _ := testRouter(t, &stubFetcher{err: errors.New("provider down")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/SPX", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 with no cached entry, got %d", rec.Code)
	}
}

func TestGetGexUnknownSymbol(t *testing.T) {
	router, _, _ := testRouter(t, &stubFetcher{err: fetch.ErrNotFound})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/NOPE", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown symbol, got %d", rec.Code)
	}
}

func TestGetGexCSV(t *testing.T) {
	router, symbolCache, _ := testRouter(t, &stubFetcher{err: errors.New("down")})
	symbolCache.Put(seededSnapshot())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/SPX/csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "strike,expiry,call_gamma,put_gamma,net_gamma") {
		t.Errorf("unexpected CSV header: %q", rec.Body.String())
	}
}

func TestUploadChain(t *testing.T) {
	router, _, st := testRouter(t, &stubFetcher{err: errors.New("down")})

	doc := `{
		"symbol": "NDX",
		"underlyingPrice": 18000,
		"callExpDateMap": {
			"2026-09-18": {"18000.0": [{"openInterest": 5, "gamma": 0.002}]}
		}
	}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/chains/upload", bytes.NewBufferString(doc))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp gexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Symbol != "NDX" || len(resp.Records) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Upload serves subsequent reads from cache.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/gex/NDX", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected uploaded chain to be cached, got %d", rec.Code)
	}

	// And is persisted.
	snap, err := st.LoadSnapshot("NDX")
	if err != nil || snap == nil {
		t.Errorf("expected uploaded chain persisted, got %v, %v", snap, err)
	}
}

func TestUploadInvalidChain(t *testing.T) {
	router, _, _ := testRouter(t, &stubFetcher{err: errors.New("down")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/chains/upload", bytes.NewBufferString(`{"symbol": "X"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid document, got %d", rec.Code)
	}
}

func TestListSymbols(t *testing.T) {
	router, symbolCache, _ := testRouter(t, &stubFetcher{err: errors.New("down")})
	symbolCache.Put(seededSnapshot())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/symbols", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.Symbols) != 1 || resp.Symbols[0] != "SPX" {
		t.Errorf("expected [SPX], got %v", resp.Symbols)
	}
}

func TestNotesLifecycle(t *testing.T) {
	router, _, _ := testRouter(t, &stubFetcher{err: errors.New("down")})

	// Add
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/notes/SPX", bytes.NewBufferString(`{"text": "gamma flip near 5000"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created noteJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}

	// List
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/notes/SPX", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed struct {
		Notes []noteJSON `json:"notes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(listed.Notes) != 1 || listed.Notes[0].Text != "gamma flip near 5000" {
		t.Errorf("unexpected notes: %+v", listed.Notes)
	}

	// Delete
	idPath := "/notes/id/" + strconv.FormatInt(created.ID, 10)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", idPath, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	// Delete again
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", idPath, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router, _, _ := testRouter(t, &stubFetcher{err: errors.New("down")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
