// Package metrics exposes the service counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DebitCounter counts committed gil debits per user. Replayed duplicates are
// not counted.
type DebitCounter struct {
	debits *prometheus.CounterVec
}

// NewDebitCounter registers the counter on reg under the service namespace.
func NewDebitCounter(reg prometheus.Registerer, serviceName string) (*DebitCounter, error) {
	debits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: sanitize(serviceName),
		Name:      "gil_debited_total",
		Help:      "Number of gil debits committed, by user.",
	}, []string{"user_id"})

	if err := reg.Register(debits); err != nil {
		return nil, err
	}
	return &DebitCounter{debits: debits}, nil
}

func (c *DebitCounter) RecordDebit(userID string) {
	c.debits.WithLabelValues(userID).Inc()
}

// sanitize turns a service name like "play-identity" into a valid metric
// namespace.
func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
