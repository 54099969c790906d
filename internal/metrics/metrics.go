// Package metrics holds the Prometheus counters for key lifecycle and
// payload operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devicekeys"

// Result label values.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Op label values.
const (
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

// Metrics groups every collector the services report to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	IdentityGenerated   prometheus.Counter
	IdentityCleared     prometheus.Counter
	PrekeyVerifications *prometheus.CounterVec
	PayloadOperations   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		IdentityGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_generated_total",
			Help:      "Number of device key bundles generated",
		}),
		IdentityCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_cleared_total",
			Help:      "Number of device key bundles cleared",
		}),
		PrekeyVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prekey_verifications_total",
			Help:      "Number of signed prekey verifications by result",
		}, []string{"result"}),
		PayloadOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_operations_total",
			Help:      "Number of payload encryptions and decryptions by result",
		}, []string{"op", "result"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.IdentityGenerated,
		m.IdentityCleared,
		m.PrekeyVerifications,
		m.PayloadOperations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Generated counts a successful bundle generation.
func (m *Metrics) Generated() {
	if m != nil {
		m.IdentityGenerated.Inc()
	}
}

// Cleared counts a successful clear.
func (m *Metrics) Cleared() {
	if m != nil {
		m.IdentityCleared.Inc()
	}
}

// Verified counts a prekey verification outcome.
func (m *Metrics) Verified(ok bool) {
	if m == nil {
		return
	}
	result := ResultInvalid
	if ok {
		result = ResultOK
	}
	m.PrekeyVerifications.WithLabelValues(result).Inc()
}

// Payload counts an encrypt or decrypt outcome.
func (m *Metrics) Payload(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.PayloadOperations.WithLabelValues(op, result).Inc()
}

// WriteTextfile writes every metric gathered by g to path in the node
// exporter textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
