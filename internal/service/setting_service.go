package service

import (
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

// PlatformSettings 平台级结算参数
type PlatformSettings struct {
	CommissionPercent    models.Money `json:"commission_percent"`     // 默认佣金比例
	CommissionFixed      models.Money `json:"commission_fixed"`       // 默认固定佣金（法币）
	MinPayoutFiat        models.Money `json:"min_payout_fiat"`        // 默认最小出金额（法币）
	AutoApproveMerchants bool         `json:"auto_approve_merchants"` // 注册即激活商户
}

// SettingService 平台设置服务
type SettingService struct {
	settingRepo repository.SettingRepository
}

// NewSettingService 创建平台设置服务
func NewSettingService(settingRepo repository.SettingRepository) *SettingService {
	return &SettingService{settingRepo: settingRepo}
}

const settingKeyPlatform = "platform_settlement"

// GetPlatformSettings 读取平台结算参数（缺省回落默认值）
func (s *SettingService) GetPlatformSettings() (*PlatformSettings, error) {
	defaults := defaultPlatformSettings()

	setting, err := s.settingRepo.GetByKey(settingKeyPlatform)
	if err != nil {
		return nil, err
	}
	if setting == nil || setting.ValueJSON == nil {
		return defaults, nil
	}

	result := *defaults
	if v, ok := readDecimal(setting.ValueJSON, constants.SettingKeyCommissionPercent); ok {
		result.CommissionPercent = models.NewMoneyFromDecimal(v)
	}
	if v, ok := readDecimal(setting.ValueJSON, constants.SettingKeyCommissionFixed); ok {
		result.CommissionFixed = models.NewMoneyFromDecimal(v)
	}
	if v, ok := readDecimal(setting.ValueJSON, constants.SettingKeyMinPayoutFiat); ok {
		result.MinPayoutFiat = models.NewMoneyFromDecimal(v)
	}
	if v, ok := setting.ValueJSON[constants.SettingKeyAutoApprove].(bool); ok {
		result.AutoApproveMerchants = v
	}
	return &result, nil
}

// UpdatePlatformSettings 更新平台结算参数
func (s *SettingService) UpdatePlatformSettings(settings PlatformSettings) (*PlatformSettings, error) {
	value := models.JSON{
		constants.SettingKeyCommissionPercent: settings.CommissionPercent.String(),
		constants.SettingKeyCommissionFixed:   settings.CommissionFixed.String(),
		constants.SettingKeyMinPayoutFiat:     settings.MinPayoutFiat.String(),
		constants.SettingKeyAutoApprove:       settings.AutoApproveMerchants,
	}
	if _, err := s.settingRepo.Upsert(settingKeyPlatform, value); err != nil {
		return nil, err
	}
	return s.GetPlatformSettings()
}

func defaultPlatformSettings() *PlatformSettings {
	minPayout, _ := decimal.NewFromString(constants.MinPayoutFiatDefault)
	return &PlatformSettings{
		CommissionPercent:    models.NewMoneyFromDecimal(decimal.Zero),
		CommissionFixed:      models.NewMoneyFromDecimal(decimal.Zero),
		MinPayoutFiat:        models.NewMoneyFromDecimal(minPayout),
		AutoApproveMerchants: true,
	}
}

func readDecimal(raw models.JSON, key string) (decimal.Decimal, bool) {
	v, ok := raw[key]
	if !ok {
		return decimal.Zero, false
	}
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(val), true
	default:
		return decimal.Zero, false
	}
}
