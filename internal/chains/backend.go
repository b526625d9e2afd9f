package chains

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

// HTTPBackendConfig 链上守护进程 HTTP 接入配置
type HTTPBackendConfig struct {
	Crypto    string        // 币种标识
	BaseURL   string        // 守护进程地址，如 http://btc-daemon:5000
	Username  string        // basic auth 用户名
	Password  string        // basic auth 密码
	Timeout   time.Duration // 请求超时
	CanPayout bool          // 是否开放主动出金
}

// HTTPBackend 基于 HTTP 的链上后端实现
type HTTPBackend struct {
	cfg    HTTPBackendConfig
	client *http.Client
}

// PayingHTTPBackend 带出金能力的 HTTP 后端
type PayingHTTPBackend struct {
	*HTTPBackend
}

// NewHTTPBackend 创建链上后端客户端；开放出金时返回实现 Payer 的包装
func NewHTTPBackend(cfg HTTPBackendConfig) Adapter {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	backend := &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.CanPayout {
		return &PayingHTTPBackend{HTTPBackend: backend}
	}
	return backend
}

// Crypto 币种标识
func (b *HTTPBackend) Crypto() string {
	return b.cfg.Crypto
}

// ResolveTx 按交易哈希解析转账明细
func (b *HTTPBackend) ResolveTx(ctx context.Context, txid string) ([]ResolvedTx, error) {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return nil, fmt.Errorf("%w: empty txid", ErrResponseInvalid)
	}
	respBytes, err := b.getJSON(ctx, "/transaction/"+txid)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Transfers []struct {
			Address       string `json:"address"`
			Amount        string `json:"amount"`
			Confirmations uint   `json:"confirmations"`
			Category      string `json:"category"`
		} `json:"transfers"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	resolved := make([]ResolvedTx, 0, len(resp.Transfers))
	for _, t := range resp.Transfers {
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrResponseInvalid, t.Amount)
		}
		resolved = append(resolved, ResolvedTx{
			Address:       t.Address,
			Amount:        amount,
			Confirmations: t.Confirmations,
			Category:      t.Category,
		})
	}
	return resolved, nil
}

// GenerateAddress 生成收款地址
func (b *HTTPBackend) GenerateAddress(ctx context.Context) (string, error) {
	respBytes, err := b.postJSON(ctx, "/generate-address", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.Address == "" {
		return "", fmt.Errorf("%w: empty address", ErrResponseInvalid)
	}
	return resp.Address, nil
}

// Balance 查询钱包余额
func (b *HTTPBackend) Balance(ctx context.Context) (decimal.Decimal, error) {
	respBytes, err := b.getJSON(ctx, "/balance")
	if err != nil {
		return decimal.Zero, err
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad balance %q", ErrResponseInvalid, resp.Balance)
	}
	return balance, nil
}

// GetStatus 查询后端同步状态
func (b *HTTPBackend) GetStatus(ctx context.Context) (*Status, error) {
	respBytes, err := b.getJSON(ctx, "/status")
	if err != nil {
		return nil, err
	}
	var status Status
	if err := json.Unmarshal(respBytes, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &status, nil
}

// CreatePayout 发起链上出金
func (b *PayingHTTPBackend) CreatePayout(ctx context.Context, destination string, amount decimal.Decimal, fee string) (*PayoutResult, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: invalid payout params", ErrResponseInvalid)
	}
	params := map[string]interface{}{
		"destination":              destination,
		"amount":                   amount.String(),
		"subtract_fee_from_amount": true,
	}
	if fee != "" {
		params["fee"] = fee
	}
	respBytes, err := b.postJSON(ctx, "/payout", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result string   `json:"result"`
		TxIDs  []string `json:"txids"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.Result != "success" {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
		}
		return nil, fmt.Errorf("%w: payout rejected", ErrRequestFailed)
	}
	if len(resp.TxIDs) == 0 {
		return nil, fmt.Errorf("%w: payout returned no txids", ErrResponseInvalid)
	}
	return &PayoutResult{TxIDs: resp.TxIDs}, nil
}

func (b *HTTPBackend) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	return b.do(req)
}

func (b *HTTPBackend) postJSON(ctx context.Context, path string, params map[string]interface{}) ([]byte, error) {
	var body io.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *HTTPBackend) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if b.cfg.Username != "" {
		req.SetBasicAuth(b.cfg.Username, b.cfg.Password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *HTTPBackend) endpoint(path string) string {
	return b.cfg.BaseURL + "/wallet/" + strings.ToLower(strings.TrimSpace(b.cfg.Crypto)) + path
}
