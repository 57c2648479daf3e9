package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"stockboard/market"
)

// SinaDailyProvider reads the sina daily K-line endpoint, used as the
// higher-fidelity close/volume source: the primary feed's final intraday
// bucket and venue volume are known to be unreliable for mainland listings.
// The endpoint responds in GBK.
type SinaDailyProvider struct {
	client  *http.Client
	baseURL string
}

func NewSinaDailyProvider() *SinaDailyProvider {
	return &SinaDailyProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://money.finance.sina.com.cn",
	}
}

func (sp *SinaDailyProvider) Name() string {
	return "sina-daily"
}

type sinaDailyRow struct {
	Day    string `json:"day"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

func (sp *SinaDailyProvider) FetchDailyQuotes(ctx context.Context, symbol string, days int) ([]market.DailyQuote, error) {
	sinaSymbol, err := sinaCode(symbol)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/quotes_service/api/json_v2.php/CN_MarketData.getKLineData?symbol=%s&scale=240&ma=no&datalen=%d",
		sp.baseURL, sinaSymbol, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := sp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	utf8Reader := transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, err
	}

	var rows []sinaDailyRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode sina daily response: %w", err)
	}

	quotes := make([]market.DailyQuote, 0, len(rows))
	for _, r := range rows {
		close, _ := strconv.ParseFloat(r.Close, 64)
		volume, _ := strconv.ParseInt(r.Volume, 10, 64)
		date := r.Day
		if len(date) > 10 {
			date = date[:10]
		}
		if date == "" || close <= 0 {
			continue
		}
		quotes = append(quotes, market.DailyQuote{Date: date, Close: close, Volume: volume})
	}
	return quotes, nil
}

// sinaCode converts a suffixed ticker into sina's shNNNNNN/szNNNNNN form.
func sinaCode(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".SS"):
		return "sh" + strings.TrimSuffix(s, ".SS"), nil
	case strings.HasSuffix(s, ".SZ"):
		return "sz" + strings.TrimSuffix(s, ".SZ"), nil
	}
	return "", fmt.Errorf("no sina market code for %s", symbol)
}
