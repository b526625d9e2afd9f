package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceSource 币安现货价汇率来源
type BinanceSource struct {
	baseURL string
	client  *http.Client
}

// NewBinanceSource 创建币安汇率来源
func NewBinanceSource(timeout time.Duration) *BinanceSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BinanceSource{
		baseURL: binanceBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name 来源标识
func (s *BinanceSource) Name() string {
	return "binance"
}

// Rate 查询现货价
func (s *BinanceSource) Rate(ctx context.Context, crypto, fiat string) (decimal.Decimal, error) {
	symbol := normalizeSymbol(crypto)
	quote := strings.ToUpper(strings.TrimSpace(fiat))
	// 币安没有法币对，USD 报价走 USDT 交易对
	if quote == "USD" {
		if symbol == "USDT" || symbol == "USDC" {
			return decimal.NewFromInt(1), nil
		}
		quote = "USDT"
	}

	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s%s", s.baseURL, symbol, quote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: http status %d", ErrRateUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	var payload struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	rate, err := decimal.NewFromString(payload.Price)
	if err != nil || rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: bad price %q", ErrRateUnavailable, payload.Price)
	}
	return rate, nil
}
