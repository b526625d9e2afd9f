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

const coinbaseBaseURL = "https://api.coinbase.com"

// CoinbaseSource Coinbase 现货价汇率来源
type CoinbaseSource struct {
	baseURL string
	client  *http.Client
}

// NewCoinbaseSource 创建 Coinbase 汇率来源
func NewCoinbaseSource(timeout time.Duration) *CoinbaseSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CoinbaseSource{
		baseURL: coinbaseBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name 来源标识
func (s *CoinbaseSource) Name() string {
	return "coinbase"
}

// Rate 查询现货价
func (s *CoinbaseSource) Rate(ctx context.Context, crypto, fiat string) (decimal.Decimal, error) {
	symbol := normalizeSymbol(crypto)
	fiat = strings.ToUpper(strings.TrimSpace(fiat))

	// 美元稳定币直接按 1:1 计
	if fiat == "USD" && (symbol == "USDT" || symbol == "USDC") {
		return decimal.NewFromInt(1), nil
	}

	endpoint := fmt.Sprintf("%s/v2/prices/%s-%s/spot", s.baseURL, symbol, fiat)
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
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	rate, err := decimal.NewFromString(payload.Data.Amount)
	if err != nil || rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: bad amount %q", ErrRateUnavailable, payload.Data.Amount)
	}
	return rate, nil
}

// normalizeSymbol 去掉链后缀，如 USDT-TRC20 -> USDT
func normalizeSymbol(crypto string) string {
	symbol := strings.ToUpper(strings.TrimSpace(crypto))
	if idx := strings.IndexAny(symbol, "-_"); idx > 0 {
		symbol = symbol[:idx]
	}
	return symbol
}
