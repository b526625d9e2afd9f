package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/provider"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(constants.TaskCallbackDeliver, c.handleCallbackDeliver)
	mux.HandleFunc(constants.TaskCallbackSweep, c.handleCallbackSweep)
	mux.HandleFunc(constants.TaskConfirmationSweep, c.handleConfirmationSweep)
	mux.HandleFunc(constants.TaskPayoutProcessApproved, c.handlePayoutProcessApproved)
}

func (c *Consumer) handleCallbackDeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_callback_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CallbackDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_callback_deliver_unmarshal_failed", "error", err)
		return err
	}
	if payload.InvoiceID == 0 {
		logger.Debugw("worker_callback_deliver_skip_invalid_payload", "invoice_id", payload.InvoiceID)
		return nil
	}
	if c.DispatcherService == nil {
		logger.Warnw("worker_callback_deliver_skip_dispatcher_nil", "invoice_id", payload.InvoiceID)
		return nil
	}
	err := c.DispatcherService.Deliver(ctx, payload.InvoiceID, payload.TransactionID, payload.Trigger)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			logger.Debugw("worker_callback_deliver_skip_invoice_not_found", "invoice_id", payload.InvoiceID)
			return nil
		}
		return err
	}
	return nil
}

func (c *Consumer) handleCallbackSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.DispatcherService == nil {
		logger.Debugw("worker_callback_sweep_skip_nil")
		return nil
	}
	return c.DispatcherService.SweepUnnotified(ctx)
}

func (c *Consumer) handleConfirmationSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.ReconcilerService == nil {
		logger.Debugw("worker_confirmation_sweep_skip_nil")
		return nil
	}
	return c.ReconcilerService.UpdateConfirmations(ctx)
}

func (c *Consumer) handlePayoutProcessApproved(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.PayoutService == nil {
		logger.Debugw("worker_payout_process_skip_nil")
		return nil
	}
	return c.PayoutService.ProcessApproved(ctx)
}
