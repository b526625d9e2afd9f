package worker

import (
	"context"
	"errors"
	"time"

	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	sweepInterval := time.Duration(cfg.Callback.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	go s.runSweepLoop(ctx)
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runSweepLoop 周期性补发回调、复核确认数并推进已审核出金
func (s *Service) runSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil {
		return
	}
	runOnce := func() {
		if s.consumer.DispatcherService != nil {
			if err := s.consumer.DispatcherService.SweepUnnotified(ctx); err != nil {
				logger.Warnw("worker_callback_sweep_failed", "error", err)
			}
		}
		if s.consumer.ReconcilerService != nil {
			if err := s.consumer.ReconcilerService.UpdateConfirmations(ctx); err != nil {
				logger.Warnw("worker_confirmation_sweep_failed", "error", err)
			}
		}
		if s.consumer.PayoutService != nil {
			if err := s.consumer.PayoutService.ProcessApproved(ctx); err != nil {
				logger.Warnw("worker_payout_process_failed", "error", err)
			}
		}
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
