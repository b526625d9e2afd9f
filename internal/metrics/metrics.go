package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 业务指标收集器（构造后注入到各服务，nil 接收者为空实现）
type Collector struct {
	registry *prometheus.Registry

	invoicesCreated    *prometheus.CounterVec
	txProcessed        *prometheus.CounterVec
	callbacksDelivered *prometheus.CounterVec
	callbackDuration   prometheus.Histogram
	payoutTransitions  *prometheus.CounterVec
	commissionFiat     *prometheus.CounterVec
}

// NewCollector 创建并注册业务指标
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{registry: registry}

	c.invoicesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shkeeper_invoices_created_total",
		Help: "Invoices created, labeled by crypto.",
	}, []string{"crypto"})

	c.txProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shkeeper_transactions_processed_total",
		Help: "Wallet notifications processed, labeled by crypto and outcome.",
	}, []string{"crypto", "outcome"})

	c.callbacksDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shkeeper_callbacks_delivered_total",
		Help: "Merchant callback deliveries, labeled by outcome.",
	}, []string{"outcome"})

	c.callbackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shkeeper_callback_duration_seconds",
		Help:    "Merchant callback delivery duration.",
		Buckets: prometheus.DefBuckets,
	})

	c.payoutTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shkeeper_payout_transitions_total",
		Help: "Payout state transitions, labeled by target status.",
	}, []string{"status"})

	c.commissionFiat = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shkeeper_commission_fiat_total",
		Help: "Commission charged in fiat, labeled by fiat currency.",
	}, []string{"fiat"})

	registry.MustRegister(
		c.invoicesCreated,
		c.txProcessed,
		c.callbacksDelivered,
		c.callbackDuration,
		c.payoutTransitions,
		c.commissionFiat,
	)
	return c
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InvoiceCreated 记录账单创建
func (c *Collector) InvoiceCreated(crypto string) {
	if c == nil {
		return
	}
	c.invoicesCreated.WithLabelValues(crypto).Inc()
}

// TxProcessed 记录链上通知处理结果
func (c *Collector) TxProcessed(crypto, outcome string) {
	if c == nil {
		return
	}
	c.txProcessed.WithLabelValues(crypto, outcome).Inc()
}

// CallbackDelivered 记录回调投递结果
func (c *Collector) CallbackDelivered(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.callbacksDelivered.WithLabelValues(outcome).Inc()
	c.callbackDuration.Observe(elapsed.Seconds())
}

// PayoutTransition 记录出金状态流转
func (c *Collector) PayoutTransition(status string) {
	if c == nil {
		return
	}
	c.payoutTransitions.WithLabelValues(status).Inc()
}

// CommissionCharged 记录佣金计提
func (c *Collector) CommissionCharged(fiat string, amount float64) {
	if c == nil {
		return
	}
	c.commissionFiat.WithLabelValues(fiat).Add(amount)
}
