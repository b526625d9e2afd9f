package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shkeeper-next/internal/constants"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestAdminJWTAuthMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AdminJWTAuthMiddleware("", nil))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", resp.StatusCode)
	}
}

func TestBackendKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(backendKey string) (*gin.Engine, *int) {
		hits := 0
		r := gin.New()
		r.Use(BackendKeyMiddleware(backendKey))
		r.GET("/notify", func(c *gin.Context) {
			hits++
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r, &hits
	}

	statusCode := func(t *testing.T, body []byte) int {
		t.Helper()
		var resp struct {
			StatusCode int `json:"status_code"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal response failed: %v", err)
		}
		return resp.StatusCode
	}

	r, hits := newRouter("secret-key")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/notify", nil)
	req.Header.Set(constants.HeaderBackendKey, "wrong-key")
	r.ServeHTTP(w, req)
	if got := statusCode(t, w.Body.Bytes()); got != 403 {
		t.Fatalf("wrong key status_code want 403 got %d", got)
	}
	if *hits != 0 {
		t.Fatalf("handler should not run with wrong key")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/notify", nil)
	req.Header.Set(constants.HeaderBackendKey, "secret-key")
	r.ServeHTTP(w, req)
	if got := statusCode(t, w.Body.Bytes()); got != 0 {
		t.Fatalf("matching key status_code want 0 got %d", got)
	}
	if *hits != 1 {
		t.Fatalf("handler should run with matching key")
	}

	// 未配置密钥时一律拒绝
	r2, hits2 := newRouter("")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/notify", nil)
	r2.ServeHTTP(w, req)
	if got := statusCode(t, w.Body.Bytes()); got != 403 {
		t.Fatalf("empty key status_code want 403 got %d", got)
	}
	if *hits2 != 0 {
		t.Fatalf("handler should not run when key unset")
	}
}
