package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"stockboard/db"
	"stockboard/llm"
	"stockboard/market"
)

// SeriesLoader runs the load pipeline for one symbol/interval pair.
type SeriesLoader interface {
	Load(ctx context.Context, symbol string, iv market.Interval) (*market.EnrichedSeries, error)
}

// Analyzer summarizes a snapshot of the latest enriched bars.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, snap market.Snapshot) (*llm.AnalysisResult, error)
}

var (
	loader   SeriesLoader
	analyzer Analyzer
)

// SetPipeline wires the load pipeline into the handlers.
func SetPipeline(l SeriesLoader) {
	loader = l
}

// SetAnalyzer wires the summarization backend into the handlers.
func SetAnalyzer(a Analyzer) {
	analyzer = a
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/series/{symbol}", handleSeries)
	mux.HandleFunc("GET /api/history/{symbol}", handleHistory)
	mux.HandleFunc("GET /api/analysis/{symbol}", handleAnalysis)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// requestInterval parses ?interval=, defaulting to daily.
func requestInterval(r *http.Request) (market.Interval, bool) {
	iv := market.Interval(r.URL.Query().Get("interval"))
	if iv == "" {
		iv = market.IntervalDaily
	}
	return iv, iv.Valid()
}

func handleSeries(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol is required"}`, http.StatusBadRequest)
		return
	}
	if loader == nil {
		http.Error(w, `{"error":"pipeline not configured"}`, http.StatusServiceUnavailable)
		return
	}

	iv, ok := requestInterval(r)
	if !ok {
		http.Error(w, `{"error":"unsupported interval"}`, http.StatusBadRequest)
		return
	}

	series, err := loader.Load(r.Context(), symbol, iv)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(series.Bars) {
			trimmed := *series
			trimmed.Bars = series.Bars[len(series.Bars)-limit:]
			series = &trimmed
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(series)
}

// handleHistory serves previously persisted bars without touching the feeds.
func handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol is required"}`, http.StatusBadRequest)
		return
	}

	iv, ok := requestInterval(r)
	if !ok {
		http.Error(w, `{"error":"unsupported interval"}`, http.StatusBadRequest)
		return
	}

	limit := 250
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	bars, err := db.QuerySeries(symbol, iv, limit)
	if err != nil {
		http.Error(w, `{"error":"storage unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market.EnrichedSeries{
		Symbol:   symbol,
		Interval: iv,
		Bars:     bars,
	})
}

func handleAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol is required"}`, http.StatusBadRequest)
		return
	}
	if loader == nil || analyzer == nil {
		http.Error(w, `{"error":"analysis not configured"}`, http.StatusServiceUnavailable)
		return
	}

	iv, ok := requestInterval(r)
	if !ok {
		http.Error(w, `{"error":"unsupported interval"}`, http.StatusBadRequest)
		return
	}

	series, err := loader.Load(r.Context(), symbol, iv)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	result, err := analyzer.Analyze(r.Context(), series.Symbol, series.Snapshot(0))
	if err != nil {
		http.Error(w, `{"error":"analysis failed"}`, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, market.ErrDataUnavailable) {
		http.Error(w, `{"error":"no data for symbol"}`, http.StatusBadGateway)
		return
	}
	http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
}
