package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PromotionsAppliedTotal counts cart lines priced with a promotion, by kind.
	PromotionsAppliedTotal *prometheus.CounterVec
	// PromotionFallbackTotal counts selected promotions ignored for being inconsistent.
	PromotionFallbackTotal prometheus.Counter
	// CartLinesHealedTotal counts cart lines dropped because their product vanished.
	CartLinesHealedTotal prometheus.Counter
	// CheckoutTotal counts checkout steps by stage and result.
	CheckoutTotal *prometheus.CounterVec
	// PaymentCommitTotal counts payment gateway commits by provider and result.
	PaymentCommitTotal *prometheus.CounterVec
	// NotificationTotal counts confirmation email deliveries by audience and result.
	NotificationTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromotionsAppliedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_applied_total",
			Help:      "Count of cart lines priced with a promotion.",
		}, []string{"kind"}))
		PromotionFallbackTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_fallback_total",
			Help:      "Count of inconsistent promotions priced as no promotion.",
		}))
		CartLinesHealedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_lines_healed_total",
			Help:      "Count of cart lines removed because their product no longer exists.",
		}))
		CheckoutTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout steps by outcome.",
		}, []string{"stage", "result"}))
		PaymentCommitTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_commit_total",
			Help:      "Count of payment commits by outcome.",
		}, []string{"provider", "result"}))
		NotificationTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_total",
			Help:      "Count of order confirmation emails by outcome.",
		}, []string{"audience", "result"}))
	})
}
