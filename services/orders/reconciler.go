package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	zlog "github.com/rs/zerolog/log"
)

const sweepLockKey = "delivery-sweep"

// OrderDeliverer executa a transição guardada CONFIRMED -> DELIVERED
type OrderDeliverer interface {
	DeliverIfConfirmed(ctx context.Context, orderID, source string) (bool, error)
}

type reconcilerMetrics struct {
	sweeps    *prometheus.CounterVec
	delivered prometheus.Counter
	failures  prometheus.Counter
	duration  prometheus.Histogram
}

func newReconcilerMetrics(reg prometheus.Registerer) *reconcilerMetrics {
	factory := promauto.With(reg)
	return &reconcilerMetrics{
		sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_delivery_sweeps_total",
			Help: "Delivery reconciliation sweeps by result.",
		}, []string{"result"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_delivery_sweep_delivered_total",
			Help: "Orders moved to delivered by the reconciliation sweep.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_delivery_sweep_failures_total",
			Help: "Per-order failures during the reconciliation sweep.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orders_delivery_sweep_duration_seconds",
			Help:    "Duration of a reconciliation sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// DeliveryReconciler é a varredura periódica que entrega pedidos cujo timer se perdeu
type DeliveryReconciler struct {
	repository    Repository
	deliverer     OrderDeliverer
	locker        SweepLocker
	deliveryDelay time.Duration
	interval      time.Duration
	now           func() time.Time
	metrics       *reconcilerMetrics
}

// NewDeliveryReconciler cria uma nova instância de DeliveryReconciler
func NewDeliveryReconciler(
	repository Repository,
	deliverer OrderDeliverer,
	locker SweepLocker,
	deliveryDelay, interval time.Duration,
	reg prometheus.Registerer,
) *DeliveryReconciler {
	if locker == nil {
		locker = NoopSweepLocker{}
	}
	return &DeliveryReconciler{
		repository:    repository,
		deliverer:     deliverer,
		locker:        locker,
		deliveryDelay: deliveryDelay,
		interval:      interval,
		now:           time.Now,
		metrics:       newReconcilerMetrics(reg),
	}
}

// Run executa Sweep a cada intervalo até o contexto ser cancelado
func (r *DeliveryReconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	zlog.Info().Dur("interval", r.interval).Dur("delivery_delay", r.deliveryDelay).Msg("⏱️  Delivery reconciler started")

	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("Delivery reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				zlog.Error().Err(err).Msg("❌ Error in auto-delivery sweep")
			}
		}
	}
}

// Sweep entrega todos os pedidos CONFIRMED com updatedAt anterior a now - deliveryDelay.
// Falhas de um pedido não interrompem os demais; rodar duas vezes não gera transições extras.
func (r *DeliveryReconciler) Sweep(ctx context.Context) (int, error) {
	start := r.now()
	defer func() { r.metrics.duration.Observe(time.Since(start).Seconds()) }()

	release, acquired, err := r.locker.Acquire(ctx, sweepLockKey, r.lockTTL())
	if err != nil {
		r.metrics.sweeps.WithLabelValues("error").Inc()
		return 0, err
	}
	if !acquired {
		r.metrics.sweeps.WithLabelValues("skipped").Inc()
		zlog.Debug().Msg("Delivery sweep skipped, lock held by another replica")
		return 0, nil
	}
	defer release(context.WithoutCancel(ctx))

	cutoff := start.Add(-r.deliveryDelay)
	orders, err := r.repository.ListConfirmedBefore(ctx, cutoff)
	if err != nil {
		r.metrics.sweeps.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to query confirmed orders: %w", err)
	}

	delivered := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.deliverer.DeliverIfConfirmed(ctx, order.ID, deliverySourceSweep)
		if err != nil {
			r.metrics.failures.Inc()
			zlog.Error().Err(err).Str("order_id", order.ID).Msg("❌ Failed to auto-deliver order via sweep")
			continue
		}
		if ok {
			delivered++
		}
	}

	r.metrics.sweeps.WithLabelValues("ok").Inc()
	r.metrics.delivered.Add(float64(delivered))
	if delivered > 0 {
		zlog.Info().Int("count", delivered).Time("cutoff", cutoff).Msg("🚚 Auto-delivered orders via sweep")
	}
	return delivered, nil
}

// lockTTL cobre uma varredura lenta sem bloquear a próxima réplica por mais de um intervalo
func (r *DeliveryReconciler) lockTTL() time.Duration {
	if r.interval > 0 {
		return r.interval
	}
	return time.Minute
}
