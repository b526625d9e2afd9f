package provider

import (
	"strings"
	"time"

	"github.com/shkeeper-next/internal/cache"
	"github.com/shkeeper-next/internal/chains"
	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/rates"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Registry    *chains.Registry
	Resolver    *rates.Resolver
	Collector   *metrics.Collector

	// Repositories
	AdminRepo       repository.AdminRepository
	MerchantRepo    repository.MerchantRepository
	InvoiceRepo     repository.InvoiceRepository
	TransactionRepo repository.TransactionRepository
	BalanceRepo     repository.BalanceRepository
	PayoutRepo      repository.PayoutRepository
	CommissionRepo  repository.CommissionRepository
	WalletRepo      repository.WalletRepository
	RateRepo        repository.RateRepository
	SettingRepo     repository.SettingRepository

	// Services
	AuthService       *service.AuthService
	MerchantService   *service.MerchantService
	SettingService    *service.SettingService
	InvoiceService    *service.InvoiceService
	ReconcilerService *service.ReconcilerService
	DispatcherService *service.DispatcherService
	PayoutService     *service.PayoutService
	WalletService     *service.WalletService
	RateService       *service.RateService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRegistry()
	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRegistry() {
	cfg := c.Config.Gateway
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	payoutDisabled := make(map[string]bool, len(cfg.PayoutDisabled))
	for _, crypto := range cfg.PayoutDisabled {
		payoutDisabled[strings.ToUpper(strings.TrimSpace(crypto))] = true
	}

	registry := chains.NewRegistry()
	for crypto, baseURL := range cfg.Backends {
		crypto = strings.ToUpper(strings.TrimSpace(crypto))
		if crypto == "" || baseURL == "" {
			continue
		}
		adapter := chains.NewHTTPBackend(chains.HTTPBackendConfig{
			Crypto:    crypto,
			BaseURL:   baseURL,
			Username:  cfg.BackendUser,
			Password:  cfg.BackendPassword,
			Timeout:   timeout,
			CanPayout: !payoutDisabled[crypto],
		})
		registry.Register(adapter)
		logger.Infow("chain_backend_registered",
			"crypto", crypto, "base_url", baseURL, "payout_enabled", !payoutDisabled[crypto])
	}
	c.Registry = registry
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.MerchantRepo = repository.NewMerchantRepository(db)
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
	c.TransactionRepo = repository.NewTransactionRepository(db)
	c.BalanceRepo = repository.NewBalanceRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.RateRepo = repository.NewRateRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

	if cfg.Metrics.Enabled {
		c.Collector = metrics.NewCollector()
	}

	ratesTimeout := time.Duration(cfg.Rates.TimeoutMS) * time.Millisecond
	cacheTTL := time.Duration(cfg.Rates.CacheTTLSeconds) * time.Second
	c.Resolver = rates.NewResolver(c.RateRepo, cacheTTL,
		rates.NewCoinbaseSource(ratesTimeout),
		rates.NewBinanceSource(ratesTimeout),
	)

	c.AuthService = service.NewAuthService(cfg, c.AdminRepo)
	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.MerchantService = service.NewMerchantService(cfg, c.MerchantRepo, c.SettingService)
	c.WalletService = service.NewWalletService(c.WalletRepo, c.Registry)
	c.RateService = service.NewRateService(c.RateRepo)

	c.InvoiceService = service.NewInvoiceService(
		c.InvoiceRepo,
		c.TransactionRepo,
		c.WalletRepo,
		c.Registry,
		c.Resolver,
		c.Collector,
	)
	c.ReconcilerService = service.NewReconcilerService(
		c.InvoiceRepo,
		c.TransactionRepo,
		c.WalletRepo,
		c.MerchantRepo,
		c.BalanceRepo,
		c.CommissionRepo,
		c.SettingService,
		c.Registry,
		c.QueueClient,
		c.Collector,
		cfg.Callback.UnconfirmedNotify,
		time.Duration(cfg.Callback.DelaySeconds)*time.Second,
		time.Duration(cfg.Invoice.ExpireHours)*time.Hour,
	)
	c.DispatcherService = service.NewDispatcherService(
		c.InvoiceRepo,
		c.TransactionRepo,
		c.MerchantRepo,
		c.SettingService,
		c.QueueClient,
		c.Collector,
		time.Duration(cfg.Callback.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Callback.DelaySeconds)*time.Second,
		cfg.Callback.UnconfirmedNotify,
	)
	c.PayoutService = service.NewPayoutService(
		c.PayoutRepo,
		c.BalanceRepo,
		c.MerchantRepo,
		c.WalletRepo,
		c.TransactionRepo,
		c.MerchantService,
		c.SettingService,
		c.Registry,
		c.Resolver,
		c.QueueClient,
		c.Collector,
	)
}
