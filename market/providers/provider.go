// Package providers contains the upstream feed clients. Everything here is a
// collaborator of the core pipeline: it produces normalized payloads and raw
// auxiliary rows, and owns retry/candidate-selection policy so the core does
// not have to.
package providers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stockboard/market"
)

// QuoteSource fetches one chart payload for an exact upstream symbol.
type QuoteSource interface {
	Name() string
	FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error)
}

// FlowSource fetches raw institutional-flow rows for a symbol.
type FlowSource interface {
	FetchFlows(ctx context.Context, symbol string, days int) ([]market.FlowEntry, error)
}

// DailyQuoteSource fetches corrected daily close/volume rows for a symbol.
type DailyQuoteSource interface {
	FetchDailyQuotes(ctx context.Context, symbol string, days int) ([]market.DailyQuote, error)
}

// Manager resolves a user-entered ticker against a QuoteSource by trying
// venue-suffix candidates in order until one yields data. Exhausting all
// candidates surfaces a single ErrDataUnavailable.
type Manager struct {
	source QuoteSource
	log    *zap.SugaredLogger
}

func NewManager(source QuoteSource) *Manager {
	return &Manager{source: source, log: zap.S()}
}

// Candidates expands a bare mainland ticker into its ordered exchange-suffix
// guesses. Symbols that already carry a suffix (or are not six digits) are
// passed through untouched.
func Candidates(symbol string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return nil
	}
	if strings.Contains(s, ".") || !isDigits(s) || len(s) != 6 {
		return []string{s}
	}
	// Shanghai listings start with 6; everything else tries Shenzhen first.
	if s[0] == '6' {
		return []string{s + ".SS", s + ".SZ"}
	}
	return []string{s + ".SZ", s + ".SS"}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FetchSeries tries each candidate in sequence and returns the first payload
// that yields data, with Symbol set to the candidate that resolved.
func (m *Manager) FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error) {
	candidates := Candidates(symbol)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty symbol", market.ErrDataUnavailable)
	}

	var lastErr error
	for _, candidate := range candidates {
		payload, err := m.source.FetchSeries(ctx, candidate, iv)
		if err == nil && len(payload.Timestamps) > 0 {
			return payload, nil
		}
		if err == nil {
			err = fmt.Errorf("empty payload")
		}
		lastErr = err
		m.log.Infow("candidate failed", "provider", m.source.Name(), "symbol", candidate, "err", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s (last: %v)", market.ErrDataUnavailable, symbol, lastErr)
}
