package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReservationMetrics counts inventory ledger outcomes, lifecycle transitions
// and impact credits. A nil receiver is a no-op.
type ReservationMetrics struct {
	inventory   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	credits     *prometheus.CounterVec
}

// NewReservationMetrics registers the reservation metrics on reg.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	inventory := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_operations_total",
		Help:      "Rescue bag reserve/release attempts by outcome.",
	}, []string{"operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_transitions_total",
		Help:      "Reservation state transitions by target status and outcome.",
	}, []string{"to", "outcome"})
	credits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "impact_credits_total",
		Help:      "Impact credit attempts, split into applied and duplicate.",
	}, []string{"result"})
	reg.MustRegister(inventory, transitions, credits)
	return &ReservationMetrics{
		inventory:   inventory,
		transitions: transitions,
		credits:     credits,
	}
}

// ObserveInventory records a reserve or release outcome.
func (m *ReservationMetrics) ObserveInventory(operation, outcome string) {
	if m == nil || m.inventory == nil {
		return
	}
	m.inventory.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObserveTransition records an attempted transition into status to.
func (m *ReservationMetrics) ObserveTransition(to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to), normalizeLabel(outcome)).Inc()
}

// ObserveCredit records whether a credit was applied or skipped as duplicate.
func (m *ReservationMetrics) ObserveCredit(applied bool) {
	if m == nil || m.credits == nil {
		return
	}
	result := "duplicate"
	if applied {
		result = "applied"
	}
	m.credits.WithLabelValues(result).Inc()
}
