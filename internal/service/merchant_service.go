package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// MerchantService 商户服务
type MerchantService struct {
	cfg          *config.Config
	merchantRepo repository.MerchantRepository
	settingSvc   *SettingService
}

// MerchantRegisterInput 商户注册输入
type MerchantRegisterInput struct {
	Name        string
	Email       string
	Password    string
	CallbackURL string
}

// MerchantJWTClaims 商户端 JWT 声明
type MerchantJWTClaims struct {
	MerchantID uint   `json:"merchant_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// NewMerchantService 创建商户服务
func NewMerchantService(cfg *config.Config, merchantRepo repository.MerchantRepository, settingSvc *SettingService) *MerchantService {
	return &MerchantService{
		cfg:          cfg,
		merchantRepo: merchantRepo,
		settingSvc:   settingSvc,
	}
}

// Register 商户注册，生成 API 密钥与回调签名密钥
func (s *MerchantService) Register(input MerchantRegisterInput) (*models.Merchant, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if existing, err := s.merchantRepo.GetByEmail(email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrMerchantExists
	}
	if existing, err := s.merchantRepo.GetByName(name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrMerchantExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// 平台关闭自动审批时，新商户先进入待审核状态
	status := constants.MerchantStatusActive
	settings, err := s.settingSvc.GetPlatformSettings()
	if err != nil {
		return nil, err
	}
	if !settings.AutoApproveMerchants {
		status = constants.MerchantStatusPending
	}

	now := time.Now()
	merchant := &models.Merchant{
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		APIKey:        randomSecret(),
		WebhookSecret: randomSecret(),
		CallbackURL:   strings.TrimSpace(input.CallbackURL),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.merchantRepo.Create(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// Login 商户登录
func (s *MerchantService) Login(email, password string) (*models.Merchant, string, time.Time, error) {
	merchant, err := s.merchantRepo.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if merchant == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(merchant.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	switch merchant.Status {
	case constants.MerchantStatusActive:
	case constants.MerchantStatusPending:
		return nil, "", time.Time{}, ErrMerchantPending
	default:
		return nil, "", time.Time{}, ErrMerchantSuspended
	}

	token, expiresAt, err := s.GenerateJWT(merchant)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	merchant.LastLoginAt = &now
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, "", time.Time{}, err
	}
	return merchant, token, expiresAt, nil
}

// GenerateJWT 生成商户端 JWT Token
func (s *MerchantService) GenerateJWT(merchant *models.Merchant) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)

	claims := MerchantJWTClaims{
		MerchantID: merchant.ID,
		Email:      merchant.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析商户端 JWT Token
func (s *MerchantService) ParseJWT(tokenString string) (*MerchantJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &MerchantJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*MerchantJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// AuthenticateAPIKey 按网关 API 密钥识别商户
func (s *MerchantService) AuthenticateAPIKey(apiKey string) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrInvalidCredentials
	}
	switch merchant.Status {
	case constants.MerchantStatusActive:
		return merchant, nil
	case constants.MerchantStatusPending:
		return nil, ErrMerchantPending
	default:
		return nil, ErrMerchantSuspended
	}
}

// GetByID 按ID获取商户
func (s *MerchantService) GetByID(id uint) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	return merchant, nil
}

// List 分页查询商户
func (s *MerchantService) List(filter repository.MerchantListFilter) ([]models.Merchant, int64, error) {
	return s.merchantRepo.List(filter)
}

// RotateAPIKey 轮换网关 API 密钥
func (s *MerchantService) RotateAPIKey(merchantID uint) (*models.Merchant, error) {
	merchant, err := s.GetByID(merchantID)
	if err != nil {
		return nil, err
	}
	merchant.APIKey = randomSecret()
	merchant.UpdatedAt = time.Now()
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// RotateWebhookSecret 轮换回调签名密钥
func (s *MerchantService) RotateWebhookSecret(merchantID uint) (*models.Merchant, error) {
	merchant, err := s.GetByID(merchantID)
	if err != nil {
		return nil, err
	}
	merchant.WebhookSecret = randomSecret()
	merchant.UpdatedAt = time.Now()
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// SetPayoutAddress 配置币种出金地址
func (s *MerchantService) SetPayoutAddress(merchantID uint, crypto, address string) (*models.Merchant, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	address = strings.TrimSpace(address)
	if crypto == "" || address == "" {
		return nil, ErrPayoutAddressMissing
	}
	merchant, err := s.GetByID(merchantID)
	if err != nil {
		return nil, err
	}
	if merchant.PayoutAddresses == nil {
		merchant.PayoutAddresses = models.JSON{}
	}
	merchant.PayoutAddresses[crypto] = address
	merchant.UpdatedAt = time.Now()
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// VerifySecurityPhrase 校验出金口令（未设置时首次使用即落库）
func (s *MerchantService) VerifySecurityPhrase(merchant *models.Merchant, phrase string) error {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return ErrSecurityPhraseMismatch
	}
	if merchant.SecurityPhraseHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(phrase), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		merchant.SecurityPhraseHash = string(hash)
		merchant.UpdatedAt = time.Now()
		return s.merchantRepo.Update(merchant)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(merchant.SecurityPhraseHash), []byte(phrase)); err != nil {
		return ErrSecurityPhraseMismatch
	}
	return nil
}

// MerchantAdminUpdateInput 管理端商户调整输入
type MerchantAdminUpdateInput struct {
	Status            *string
	CommissionPercent *models.Money
	CommissionFixed   *models.Money
	MinPayoutFiat     *models.Money
	CallbackURL       *string
}

// AdminUpdate 管理端调整商户状态与结算参数
func (s *MerchantService) AdminUpdate(merchantID uint, input MerchantAdminUpdateInput) (*models.Merchant, error) {
	merchant, err := s.GetByID(merchantID)
	if err != nil {
		return nil, err
	}
	if input.Status != nil {
		merchant.Status = *input.Status
	}
	if input.CommissionPercent != nil {
		merchant.CommissionPercent = input.CommissionPercent
	}
	if input.CommissionFixed != nil {
		merchant.CommissionFixed = input.CommissionFixed
	}
	if input.MinPayoutFiat != nil {
		merchant.MinPayoutFiat = input.MinPayoutFiat
	}
	if input.CallbackURL != nil {
		merchant.CallbackURL = strings.TrimSpace(*input.CallbackURL)
	}
	merchant.UpdatedAt = time.Now()
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败说明运行环境不可用，直接中止
		panic(err)
	}
	return hex.EncodeToString(buf)
}
