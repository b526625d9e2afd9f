package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加默认钱包策略
	wallets := []models.Wallet{
		{
			Crypto:           "BTC",
			Enabled:          true,
			MinConfirmations: 1,
			LowerTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			UpperTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			PayoutFee:        "10000",
		},
		{
			Crypto:           "LTC",
			Enabled:          true,
			MinConfirmations: 3,
			LowerTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			UpperTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			PayoutFee:        "10000",
		},
		{
			Crypto:           "ETH-USDT",
			Enabled:          true,
			MinConfirmations: 12,
			LowerTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.05)),
			UpperTolerance:   models.NewMoneyFromDecimal(decimal.NewFromFloat(0.05)),
			PayoutFee:        "",
		},
	}

	for _, wallet := range wallets {
		var existing models.Wallet
		if err := models.DB.Where("crypto = ?", wallet.Crypto).First(&existing).Error; err != nil {
			if err := models.DB.Create(&wallet).Error; err != nil {
				stdLog.Printf("Failed to create wallet %s: %v", wallet.Crypto, err)
			} else {
				stdLog.Printf("Created wallet policy: %s", wallet.Crypto)
			}
		} else {
			stdLog.Printf("Wallet policy already exists: %s", wallet.Crypto)
		}
	}

	// 添加手工汇率
	rates := []models.ExchangeRate{
		{
			Crypto:       "BTC",
			FiatCurrency: "USD",
			Source:       "manual",
			Rate:         models.NewCoinAmountFromDecimal(decimal.NewFromInt(65000)),
			FeePolicy:    "percent",
			FeePercent:   models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
		},
		{
			Crypto:       "LTC",
			FiatCurrency: "USD",
			Source:       "manual",
			Rate:         models.NewCoinAmountFromDecimal(decimal.NewFromInt(85)),
			FeePolicy:    "percent",
			FeePercent:   models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
		},
		{
			Crypto:       "ETH-USDT",
			FiatCurrency: "USD",
			Source:       "manual",
			Rate:         models.NewCoinAmountFromDecimal(decimal.NewFromInt(1)),
			FeePolicy:    "fixed",
			FixedFee:     models.NewMoneyFromDecimal(decimal.NewFromFloat(0.5)),
		},
	}

	for _, rate := range rates {
		var existing models.ExchangeRate
		if err := models.DB.Where("crypto = ? AND fiat_currency = ?", rate.Crypto, rate.FiatCurrency).First(&existing).Error; err != nil {
			if err := models.DB.Create(&rate).Error; err != nil {
				stdLog.Printf("Failed to create exchange rate %s/%s: %v", rate.Crypto, rate.FiatCurrency, err)
			} else {
				stdLog.Printf("Created exchange rate: %s/%s", rate.Crypto, rate.FiatCurrency)
			}
		} else {
			stdLog.Printf("Exchange rate already exists: %s/%s", rate.Crypto, rate.FiatCurrency)
		}
	}

	// 添加演示商户
	var merchantCount int64
	models.DB.Model(&models.Merchant{}).Count(&merchantCount)
	if merchantCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("demo123456"), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Fatalf("Failed to hash demo password: %v", err)
		}
		merchant := models.Merchant{
			Name:          "demo",
			Email:         "demo@example.com",
			PasswordHash:  string(hash),
			APIKey:        randomHex(32),
			WebhookSecret: randomHex(32),
			CallbackURL:   "http://127.0.0.1:9000/callback",
			Status:        "active",
		}
		if err := models.DB.Create(&merchant).Error; err != nil {
			stdLog.Printf("Failed to create demo merchant: %v", err)
		} else {
			stdLog.Printf("Created demo merchant: %s (password: demo123456)", merchant.Email)
			stdLog.Printf("Demo merchant api key: %s", merchant.APIKey)
		}
	} else {
		stdLog.Println("Merchants already exist, skip demo merchant")
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Wallet policies (BTC / LTC / ETH-USDT)")
	fmt.Println("- 3 Manual exchange rates")
	fmt.Println("- 1 Demo merchant (when merchants table was empty)")
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("随机数生成失败: %w", err))
	}
	return hex.EncodeToString(buf)
}
