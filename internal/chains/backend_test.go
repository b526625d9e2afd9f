package chains

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newBackendServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Adapter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	adapter := NewHTTPBackend(HTTPBackendConfig{
		Crypto:    "BTC",
		BaseURL:   server.URL + "/",
		Username:  "rpc",
		Password:  "rpcpass",
		CanPayout: true,
	})
	return server, adapter
}

func TestHTTPBackendResolveTx(t *testing.T) {
	var gotPath, gotUser string
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transfers":[{"address":"addr-1","amount":"0.002","confirmations":3,"category":"receive"}]}`))
	})

	transfers, err := adapter.ResolveTx(context.Background(), "tx-abc")
	if err != nil {
		t.Fatalf("ResolveTx error: %v", err)
	}
	if gotPath != "/wallet/btc/transaction/tx-abc" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotUser != "rpc" {
		t.Fatalf("expected basic auth user, got %q", gotUser)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	if transfers[0].Address != "addr-1" || transfers[0].Confirmations != 3 {
		t.Fatalf("unexpected transfer %+v", transfers[0])
	}
	if !transfers[0].Amount.Equal(decimal.NewFromFloat(0.002)) {
		t.Fatalf("unexpected amount %s", transfers[0].Amount.String())
	}
}

func TestHTTPBackendResolveTxEmptyTxid(t *testing.T) {
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("request must not be sent for empty txid")
	})
	if _, err := adapter.ResolveTx(context.Background(), "  "); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got %v", err)
	}
}

func TestHTTPBackendGenerateAddress(t *testing.T) {
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/wallet/btc/generate-address" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"address":"bc1-new"}`))
	})
	address, err := adapter.GenerateAddress(context.Background())
	if err != nil {
		t.Fatalf("GenerateAddress error: %v", err)
	}
	if address != "bc1-new" {
		t.Fatalf("unexpected address %s", address)
	}
}

func TestHTTPBackendErrorStatus(t *testing.T) {
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := adapter.Balance(context.Background()); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed, got %v", err)
	}
}

func TestHTTPBackendCreatePayout(t *testing.T) {
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/btc/payout" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"result":"success","txids":["tx-1","tx-2"]}`))
	})
	payer, ok := adapter.(Payer)
	if !ok {
		t.Fatalf("expected payout-capable backend")
	}
	result, err := payer.CreatePayout(context.Background(), "dest", decimal.NewFromFloat(0.01), "1000")
	if err != nil {
		t.Fatalf("CreatePayout error: %v", err)
	}
	if len(result.TxIDs) != 2 {
		t.Fatalf("unexpected txids %v", result.TxIDs)
	}
}

func TestHTTPBackendCreatePayoutRejected(t *testing.T) {
	_, adapter := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error":"insufficient funds"}`))
	})
	payer := adapter.(Payer)
	if _, err := payer.CreatePayout(context.Background(), "dest", decimal.NewFromFloat(0.01), ""); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed, got %v", err)
	}
}

func TestHTTPBackendWithoutPayout(t *testing.T) {
	adapter := NewHTTPBackend(HTTPBackendConfig{Crypto: "LTC", BaseURL: "http://localhost:5001"})
	if _, ok := adapter.(Payer); ok {
		t.Fatalf("read-only backend must not expose payout")
	}
}
