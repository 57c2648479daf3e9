package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockboard/market"
)

// YahooProvider reads the Yahoo Finance chart API, the primary price/volume
// feed. Its response carries nullable quote cells for incomplete buckets and
// an optional adjclose series, which maps directly onto SeriesPayload.
type YahooProvider struct {
	client  *http.Client
	baseURL string
}

func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://query1.finance.yahoo.com",
	}
}

func (yp *YahooProvider) Name() string {
	return "yahoo"
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (yp *YahooProvider) FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error) {
	apiInterval, apiRange := yahooParams(iv)
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&events=div%%2Csplit&includeAdjustedClose=true",
		yp.baseURL, symbol, apiInterval, apiRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := yp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: chart api returned status %d for %s", market.ErrDataUnavailable, resp.StatusCode, symbol)
	}

	var body yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode chart response: %v", market.ErrDataUnavailable, err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", market.ErrDataUnavailable, symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s returned no result", market.ErrDataUnavailable, symbol)
	}

	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	payload := &market.SeriesPayload{
		Symbol:      symbol,
		Timezone:    result.Meta.ExchangeTimezoneName,
		Interval:    iv,
		LocalLabels: needsLocalLabels(symbol),
		Timestamps:  result.Timestamp,
		Open:        quote.Open,
		High:        quote.High,
		Low:         quote.Low,
		Close:       quote.Close,
		Volume:      quote.Volume,
	}
	if len(result.Indicators.AdjClose) > 0 {
		payload.AdjClose = result.Indicators.AdjClose[0].AdjClose
	}
	return payload, nil
}

// needsLocalLabels marks venues whose bucket labels must be rendered in the
// exchange's local clock rather than UTC.
func needsLocalLabels(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, ".SS") || strings.HasSuffix(s, ".SZ") || strings.HasSuffix(s, ".HK")
}

func yahooParams(iv market.Interval) (interval, rng string) {
	switch iv.Native() {
	case market.Interval60Min:
		return "60m", "1mo"
	case market.Interval15Min:
		return "15m", "5d"
	default:
		return "1d", "2y"
	}
}
