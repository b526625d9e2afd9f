package service

import (
	"errors"
	"testing"

	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/repository"

	"gorm.io/gorm"
)

func setupMerchantTest(t *testing.T, name string) (*gorm.DB, *MerchantService, *SettingService) {
	t.Helper()
	db := openGatewayTestDB(t, name)
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "test-jwt-secret"
	cfg.JWT.ExpireHours = 24
	settingSvc := NewSettingService(repository.NewSettingRepository(db))
	return db, NewMerchantService(cfg, repository.NewMerchantRepository(db), settingSvc), settingSvc
}

func TestMerchantRegisterAndLogin(t *testing.T) {
	_, svc, _ := setupMerchantTest(t, "merchant_register")

	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Acme Shop",
		Email:    "Acme@Example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if merchant.Email != "acme@example.com" {
		t.Fatalf("expected lowercased email, got %s", merchant.Email)
	}
	if merchant.APIKey == "" || merchant.WebhookSecret == "" {
		t.Fatalf("expected generated secrets")
	}
	if merchant.APIKey == merchant.WebhookSecret {
		t.Fatalf("api key and webhook secret must differ")
	}
	if merchant.Status != constants.MerchantStatusActive {
		t.Fatalf("expected active status, got %s", merchant.Status)
	}

	if _, err := svc.Register(MerchantRegisterInput{
		Name:     "Acme Shop",
		Email:    "another@example.com",
		Password: "pass123456",
	}); !errors.Is(err, ErrMerchantExists) {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}

	logged, token, expiresAt, err := svc.Login("acme@example.com", "pass123456")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if token == "" || expiresAt.IsZero() {
		t.Fatalf("expected token and expiry")
	}
	if logged.LastLoginAt == nil {
		t.Fatalf("expected last login timestamp")
	}

	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT error: %v", err)
	}
	if claims.MerchantID != merchant.ID || claims.Email != merchant.Email {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, _, _, err := svc.Login("acme@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, _, err := svc.Login("nobody@example.com", "pass123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestMerchantLoginSuspended(t *testing.T) {
	_, svc, _ := setupMerchantTest(t, "merchant_suspended")
	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Frozen Shop",
		Email:    "frozen@example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	suspended := constants.MerchantStatusSuspended
	if _, err := svc.AdminUpdate(merchant.ID, MerchantAdminUpdateInput{Status: &suspended}); err != nil {
		t.Fatalf("AdminUpdate error: %v", err)
	}
	if _, _, _, err := svc.Login("frozen@example.com", "pass123456"); !errors.Is(err, ErrMerchantSuspended) {
		t.Fatalf("expected suspended error, got %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(merchant.APIKey); !errors.Is(err, ErrMerchantSuspended) {
		t.Fatalf("expected suspended error via api key, got %v", err)
	}
}

func TestMerchantRegisterPendingApproval(t *testing.T) {
	_, svc, settingSvc := setupMerchantTest(t, "merchant_pending")

	settings, err := settingSvc.GetPlatformSettings()
	if err != nil {
		t.Fatalf("GetPlatformSettings error: %v", err)
	}
	settings.AutoApproveMerchants = false
	if _, err := settingSvc.UpdatePlatformSettings(*settings); err != nil {
		t.Fatalf("UpdatePlatformSettings error: %v", err)
	}

	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Waiting Shop",
		Email:    "waiting@example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if merchant.Status != constants.MerchantStatusPending {
		t.Fatalf("expected pending status, got %s", merchant.Status)
	}

	if _, _, _, err := svc.Login("waiting@example.com", "pass123456"); !errors.Is(err, ErrMerchantPending) {
		t.Fatalf("expected pending error, got %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(merchant.APIKey); !errors.Is(err, ErrMerchantPending) {
		t.Fatalf("expected pending error via api key, got %v", err)
	}

	// 管理员激活后恢复正常登录
	active := constants.MerchantStatusActive
	if _, err := svc.AdminUpdate(merchant.ID, MerchantAdminUpdateInput{Status: &active}); err != nil {
		t.Fatalf("AdminUpdate error: %v", err)
	}
	if _, _, _, err := svc.Login("waiting@example.com", "pass123456"); err != nil {
		t.Fatalf("Login after approval error: %v", err)
	}
}

func TestMerchantRotateSecrets(t *testing.T) {
	_, svc, _ := setupMerchantTest(t, "merchant_rotate")
	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Rotate Shop",
		Email:    "rotate@example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	oldKey := merchant.APIKey
	oldSecret := merchant.WebhookSecret

	rotated, err := svc.RotateAPIKey(merchant.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey error: %v", err)
	}
	if rotated.APIKey == oldKey {
		t.Fatalf("expected fresh api key")
	}
	if _, err := svc.AuthenticateAPIKey(oldKey); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old api key must stop working, got %v", err)
	}
	found, err := svc.AuthenticateAPIKey(rotated.APIKey)
	if err != nil {
		t.Fatalf("AuthenticateAPIKey error: %v", err)
	}
	if found.ID != merchant.ID {
		t.Fatalf("unexpected merchant %d", found.ID)
	}

	rotated, err = svc.RotateWebhookSecret(merchant.ID)
	if err != nil {
		t.Fatalf("RotateWebhookSecret error: %v", err)
	}
	if rotated.WebhookSecret == oldSecret {
		t.Fatalf("expected fresh webhook secret")
	}
}

func TestMerchantSecurityPhrase(t *testing.T) {
	_, svc, _ := setupMerchantTest(t, "merchant_phrase")
	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Phrase Shop",
		Email:    "phrase@example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if err := svc.VerifySecurityPhrase(merchant, ""); !errors.Is(err, ErrSecurityPhraseMismatch) {
		t.Fatalf("expected mismatch for empty phrase, got %v", err)
	}

	// 首次使用即落库
	if err := svc.VerifySecurityPhrase(merchant, "correct horse"); err != nil {
		t.Fatalf("first VerifySecurityPhrase error: %v", err)
	}
	if merchant.SecurityPhraseHash == "" {
		t.Fatalf("expected phrase hash persisted")
	}

	if err := svc.VerifySecurityPhrase(merchant, "correct horse"); err != nil {
		t.Fatalf("repeat VerifySecurityPhrase error: %v", err)
	}
	if err := svc.VerifySecurityPhrase(merchant, "battery staple"); !errors.Is(err, ErrSecurityPhraseMismatch) {
		t.Fatalf("expected mismatch for wrong phrase, got %v", err)
	}
}

func TestMerchantSetPayoutAddress(t *testing.T) {
	_, svc, _ := setupMerchantTest(t, "merchant_payout_addr")
	merchant, err := svc.Register(MerchantRegisterInput{
		Name:     "Addr Shop",
		Email:    "addr@example.com",
		Password: "pass123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := svc.SetPayoutAddress(merchant.ID, "BTC", ""); !errors.Is(err, ErrPayoutAddressMissing) {
		t.Fatalf("expected address missing, got %v", err)
	}
	updated, err := svc.SetPayoutAddress(merchant.ID, "btc", " bc1-example ")
	if err != nil {
		t.Fatalf("SetPayoutAddress error: %v", err)
	}
	if updated.PayoutAddress("BTC") != "bc1-example" {
		t.Fatalf("unexpected payout address %q", updated.PayoutAddress("BTC"))
	}
}
