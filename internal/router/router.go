package router

import (
	"fmt"
	"strings"

	"github.com/shkeeper-next/internal/cache"
	"github.com/shkeeper-next/internal/config"
	adminhandlers "github.com/shkeeper-next/internal/http/handlers/admin"
	gatewayhandlers "github.com/shkeeper-next/internal/http/handlers/gateway"
	publichandlers "github.com/shkeeper-next/internal/http/handlers/public"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	gatewayHandler := gatewayhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sk"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   10,
		Message:       "登录尝试过于频繁",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled && c.Collector != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(c.Collector.Handler()))
	}

	apiV1 := r.Group("/api/v1")
	{
		// 商户认证接口
		auth := apiV1.Group("/merchant")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 商户控制台接口（JWT 鉴权）
		merchant := apiV1.Group("/merchant")
		merchant.Use(MerchantJWTAuthMiddleware(c.MerchantService))
		{
			merchant.GET("/me", publicHandler.Me)
			merchant.POST("/me/rotate-api-key", publicHandler.RotateAPIKey)
			merchant.POST("/me/rotate-webhook-secret", publicHandler.RotateWebhookSecret)
			merchant.POST("/me/payout-address", publicHandler.SetPayoutAddress)
			merchant.GET("/me/balances", publicHandler.Balances)
			merchant.POST("/payouts", publicHandler.RequestPayout)
			merchant.GET("/payouts", publicHandler.ListPayouts)
			merchant.GET("/payouts/:id", publicHandler.GetPayout)
		}

		// 收款 API（API 密钥鉴权，供商户系统对接）
		api := apiV1.Group("")
		api.Use(APIKeyAuthMiddleware(c.MerchantService))
		{
			api.POST("/invoices", publicHandler.CreateInvoice)
			api.POST("/invoices/quote", publicHandler.QuoteInvoice)
			api.GET("/invoices", publicHandler.ListInvoices)
			api.GET("/invoices/:external_id", publicHandler.GetInvoice)
			api.GET("/invoices/:external_id/transactions", publicHandler.ListInvoiceTransactions)
		}

		// 链上守护进程回调（后端密钥鉴权）
		backend := apiV1.Group("/backend")
		backend.Use(BackendKeyMiddleware(cfg.Gateway.BackendKey))
		{
			backend.GET("/walletnotify/:crypto/:txid", gatewayHandler.WalletNotify)
			backend.POST("/walletnotify/:crypto/:txid", gatewayHandler.WalletNotify)
			backend.POST("/payoutnotify/:crypto", gatewayHandler.PayoutNotify)
		}

		// 管理端接口
		apiV1.POST("/admin/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)
		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
		{
			admin.PUT("/password", adminHandler.AdminChangePassword)

			admin.GET("/merchants", adminHandler.GetAdminMerchants)
			admin.GET("/merchants/:id", adminHandler.GetAdminMerchant)
			admin.PUT("/merchants/:id", adminHandler.UpdateAdminMerchant)

			admin.GET("/invoices", adminHandler.GetAdminInvoices)
			admin.GET("/commissions", adminHandler.GetAdminCommissions)

			admin.GET("/payouts", adminHandler.GetAdminPayouts)
			admin.POST("/payouts/:id/approve", adminHandler.ApproveAdminPayout)
			admin.POST("/payouts/:id/reject", adminHandler.RejectAdminPayout)
			admin.POST("/payouts/:id/process", adminHandler.ProcessAdminPayout)
			admin.POST("/payouts/:id/retry", adminHandler.RetryAdminPayout)

			admin.GET("/wallets", adminHandler.GetAdminWallets)
			admin.GET("/wallets/:crypto", adminHandler.GetAdminWalletStatus)
			admin.PUT("/wallets/:crypto", adminHandler.UpdateAdminWallet)

			admin.GET("/rates", adminHandler.GetAdminRates)
			admin.PUT("/rates", adminHandler.UpsertAdminRate)

			admin.GET("/settings", adminHandler.GetAdminSettings)
			admin.PUT("/settings", adminHandler.UpdateAdminSettings)
		}
	}

	return r
}
