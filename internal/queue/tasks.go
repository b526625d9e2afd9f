package queue

import (
	"encoding/json"

	"github.com/shkeeper-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCallbackDeliver 商户回调投递任务
	TaskCallbackDeliver = constants.TaskCallbackDeliver
	// TaskCallbackSweep 回调兜底扫描任务
	TaskCallbackSweep = constants.TaskCallbackSweep
	// TaskConfirmationSweep 确认数扫描任务
	TaskConfirmationSweep = constants.TaskConfirmationSweep
	// TaskPayoutProcessApproved 已审批出金执行任务
	TaskPayoutProcessApproved = constants.TaskPayoutProcessApproved
)

// CallbackDeliverPayload 回调投递任务载荷。
// Trigger 为 unconfirmed 时 TransactionID 指零确认记录，否则指已确认交易。
type CallbackDeliverPayload struct {
	InvoiceID     uint   `json:"invoice_id"`
	TransactionID uint   `json:"transaction_id"`
	Trigger       string `json:"trigger"`
}

// NewCallbackDeliverTask 创建回调投递任务
func NewCallbackDeliverTask(payload CallbackDeliverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallbackDeliver, body), nil
}

// NewCallbackSweepTask 创建回调兜底扫描任务
func NewCallbackSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCallbackSweep, nil)
}

// NewConfirmationSweepTask 创建确认数扫描任务
func NewConfirmationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskConfirmationSweep, nil)
}

// NewPayoutProcessApprovedTask 创建已审批出金执行任务
func NewPayoutProcessApprovedTask() *asynq.Task {
	return asynq.NewTask(TaskPayoutProcessApproved, nil)
}
