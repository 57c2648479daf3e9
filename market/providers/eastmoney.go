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

	"stockboard/market"
)

// EastmoneyFlowProvider reads the eastmoney daily fund-flow endpoint, the
// institutional-flow auxiliary feed. Each row carries per-day buy/sell volume
// for the institutional and retail participant classes.
type EastmoneyFlowProvider struct {
	client  *http.Client
	baseURL string
}

func NewEastmoneyFlowProvider() *EastmoneyFlowProvider {
	return &EastmoneyFlowProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://push2his.eastmoney.com",
	}
}

func (ep *EastmoneyFlowProvider) Name() string {
	return "eastmoney-flow"
}

func (ep *EastmoneyFlowProvider) FetchFlows(ctx context.Context, symbol string, days int) ([]market.FlowEntry, error) {
	secid, err := eastmoneySecID(symbol)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/qt/stock/fflow/daykline/get?secid=%s&klt=101&lmt=%d&fields1=f1,f2,f3,f7&fields2=f51,f52,f53,f54,f55",
		ep.baseURL, secid, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := ep.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	var entries []market.FlowEntry
	for _, line := range result.Data.Klines {
		// date, instBuy, instSell, retailBuy, retailSell
		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			continue
		}
		instBuy, _ := strconv.ParseFloat(parts[1], 64)
		instSell, _ := strconv.ParseFloat(parts[2], 64)
		retailBuy, _ := strconv.ParseFloat(parts[3], 64)
		retailSell, _ := strconv.ParseFloat(parts[4], 64)
		entries = append(entries,
			market.FlowEntry{Date: parts[0], Class: market.ParticipantInstitutional, Buy: instBuy, Sell: instSell},
			market.FlowEntry{Date: parts[0], Class: market.ParticipantRetail, Buy: retailBuy, Sell: retailSell},
		)
	}
	return entries, nil
}

// eastmoneySecID converts a suffixed ticker into eastmoney's market.code form.
func eastmoneySecID(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".SS"):
		return "1." + strings.TrimSuffix(s, ".SS"), nil
	case strings.HasSuffix(s, ".SZ"):
		return "0." + strings.TrimSuffix(s, ".SZ"), nil
	}
	return "", fmt.Errorf("no eastmoney market code for %s", symbol)
}
