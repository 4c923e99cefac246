package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/chain"
	"github.com/OUgly/GEXCalculator/internal/fetch"
	"github.com/OUgly/GEXCalculator/internal/gex"
	"github.com/OUgly/GEXCalculator/internal/store"
)

const maxUploadBytes = 16 << 20

type gexRow struct {
	Strike    float64 `json:"strike"`
	Label     string  `json:"label"`
	CallGamma float64 `json:"call_gamma"`
	PutGamma  float64 `json:"put_gamma"`
	NetGamma  float64 `json:"net_gamma"`
}

type gexResponse struct {
	Symbol           string    `json:"symbol"`
	Spot             float64   `json:"spot"`
	FetchedAt        time.Time `json:"fetched_at"`
	FromCache        bool      `json:"from_cache"`
	Stale            bool      `json:"stale"`
	Warning          string    `json:"warning,omitempty"`
	SkippedContracts int       `json:"skipped_contracts"`
	ZeroGamma        *float64  `json:"zero_gamma"`
	TotalCallGamma   float64   `json:"total_call_gamma"`
	TotalPutGamma    float64   `json:"total_put_gamma"`
	TotalNetGamma    float64   `json:"total_net_gamma"`
	Records          []gexRow  `json:"records"`
}

type noteJSON struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleGetGex(w http.ResponseWriter, r *http.Request) {
	snap, res, ok := s.resolveChain(w, r)
	if !ok {
		return
	}
	sel, err := parseSelector(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := s.buildResponse(snap, sel)
	resp.FromCache = res.FromCache
	resp.Stale = res.Stale
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGexCSV(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.resolveChain(w, r)
	if !ok {
		return
	}
	sel, err := parseSelector(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result := s.engine.Compute(snap)
	aggs := gex.FilterAndGroup(result.Records, sel)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_gex.csv", snap.Symbol))
	if err := gex.WriteCSV(w, aggs); err != nil {
		s.logger.Error("csv export failed", zap.String("symbol", snap.Symbol), zap.Error(err))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading body: %w", err))
		return
	}

	snap, err := chain.Parse(body, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if snap.Empty() {
		s.logger.Warn("uploaded chain has no contracts", zap.String("symbol", snap.Symbol))
	}

	s.cache.Put(snap)
	if s.store != nil {
		if err := s.store.SaveSnapshot(snap); err != nil {
			s.logger.Warn("persisting uploaded snapshot failed",
				zap.String("symbol", snap.Symbol), zap.Error(err))
		}
	}
	s.logger.Info("chain uploaded",
		zap.String("symbol", snap.Symbol),
		zap.Int("contracts", len(snap.Contracts)),
	)

	writeJSON(w, http.StatusOK, s.buildResponse(snap, gex.AllExpiries()))
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.cache.Symbols()})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.ListNotes(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]noteJSON, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteJSON{ID: n.ID, Symbol: n.Symbol, Text: n.Text, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": out})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}
	note, err := s.store.AddNote(chi.URLParam(r, "symbol"), req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, noteJSON{
		ID: note.ID, Symbol: note.Symbol, Text: note.Text, CreatedAt: note.CreatedAt,
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid note id"))
		return
	}
	if err := s.store.DeleteNote(id); err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"symbols": len(s.cache.Symbols()),
	})
}

// resolveChain runs the shared cache lookup for the GEX endpoints. It writes
// the error response itself and reports ok=false when the caller should stop.
func (s *Server) resolveChain(w http.ResponseWriter, r *http.Request) (*chain.Snapshot, cacheResult, bool) {
	symbol := chi.URLParam(r, "symbol")
	force := r.URL.Query().Get("refresh") == "true"

	var maxAge time.Duration
	if raw := r.URL.Query().Get("max_age"); raw != "" {
		sec, err := strconv.Atoi(raw)
		if err != nil || sec < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("max_age must be a positive integer"))
			return nil, cacheResult{}, false
		}
		maxAge = time.Duration(sec) * time.Second
	}

	res, err := s.cache.GetChain(r.Context(), symbol, force, maxAge)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetch.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return nil, cacheResult{}, false
	}
	return res.Snapshot, cacheResult{FromCache: res.FromCache, Stale: res.Stale, Warning: res.Warning}, true
}

type cacheResult struct {
	FromCache bool
	Stale     bool
	Warning   error
}

func (s *Server) buildResponse(snap *chain.Snapshot, sel gex.ExpirySelector) gexResponse {
	result := s.engine.Compute(snap)
	filtered := gex.FilterRecords(result.Records, sel)
	aggs := gex.FilterAndGroup(result.Records, sel)

	resp := gexResponse{
		Symbol:           result.Symbol,
		Spot:             result.Spot,
		FetchedAt:        snap.FetchedAt,
		SkippedContracts: result.Skipped,
		Records:          make([]gexRow, 0, len(aggs)),
	}
	for _, a := range aggs {
		resp.Records = append(resp.Records, gexRow{
			Strike:    a.Strike,
			Label:     a.Label,
			CallGamma: a.CallGamma,
			PutGamma:  a.PutGamma,
			NetGamma:  a.NetGamma,
		})
		resp.TotalCallGamma += a.CallGamma
		resp.TotalPutGamma += a.PutGamma
		resp.TotalNetGamma += a.NetGamma
	}
	if zero, ok := gex.ZeroGamma(filtered); ok {
		resp.ZeroGamma = &zero
	}
	return resp
}

// parseSelector maps the expiry/week/month query parameters onto an expiry
// selector. At most one of the three may be present.
func parseSelector(r *http.Request) (gex.ExpirySelector, error) {
	q := r.URL.Query()
	expiry, week, month := q.Get("expiry"), q.Get("week"), q.Get("month")

	set := 0
	for _, v := range []string{expiry, week, month} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return gex.ExpirySelector{}, fmt.Errorf("expiry, week, and month are mutually exclusive")
	}

	switch {
	case expiry != "":
		d, err := time.ParseInLocation("2006-01-02", expiry, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("expiry must be YYYY-MM-DD")
		}
		return gex.SingleExpiry(d), nil
	case week != "":
		d, err := time.ParseInLocation("2006-01-02", week, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("week must be YYYY-MM-DD")
		}
		return gex.WeekOf(d), nil
	case month != "":
		d, err := time.ParseInLocation("2006-01", month, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("month must be YYYY-MM")
		}
		return gex.MonthOf(d), nil
	default:
		return gex.AllExpiries(), nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
