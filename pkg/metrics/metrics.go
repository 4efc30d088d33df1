package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emma-cli/emma/pkg/emma/auth"
)

const (
	OutcomeAuthenticated         = "authenticated"
	OutcomeTicketRequestFailed   = "ticket_request_failed"
	OutcomeVerificationTimeout   = "verification_timeout"
	OutcomeVerificationChannel   = "verification_channel_error"
	OutcomeCredentialPersistence = "credential_persistence_failed"
	OutcomeFailed                = "failed"
)

// Recorder holds handshake collectors on its own registry so several
// recorders never clash on registration.
type Recorder struct {
	registry *prometheus.Registry

	handshakes  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    prometheus.Histogram

	mu      sync.Mutex
	started time.Time
	now     func() time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emma_handshakes_total",
			Help: "Total number of finished login handshakes by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emma_handshake_transitions_total",
			Help: "Total number of handshake state transitions by target state",
		}, []string{"state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "emma_handshake_duration_seconds",
			Help:    "Time from ticket request to a terminal handshake state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		now: time.Now,
	}
	r.registry.MustRegister(r.handshakes, r.transitions, r.duration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe is meant to be registered as a handshake state listener.
func (r *Recorder) Observe(t auth.Transition) {
	r.transitions.WithLabelValues(string(t.To)).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.To == auth.StateRequesting {
		r.started = r.now()
		return
	}
	if !t.To.Terminal() {
		return
	}
	r.handshakes.WithLabelValues(Outcome(t)).Inc()
	if !r.started.IsZero() {
		r.duration.Observe(r.now().Sub(r.started).Seconds())
		r.started = time.Time{}
	}
}

// Outcome classifies a terminal transition for the outcome label.
func Outcome(t auth.Transition) string {
	if t.To == auth.StateAuthenticated {
		return OutcomeAuthenticated
	}
	switch {
	case errors.Is(t.Err, auth.ErrTicketRequestFailed):
		return OutcomeTicketRequestFailed
	case errors.Is(t.Err, auth.ErrVerificationTimeout):
		return OutcomeVerificationTimeout
	case errors.Is(t.Err, auth.ErrVerificationChannel):
		return OutcomeVerificationChannel
	case errors.Is(t.Err, auth.ErrCredentialPersistence):
		return OutcomeCredentialPersistence
	default:
		return OutcomeFailed
	}
}

// WriteTextfile writes the current state of the registry to path in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
