package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"devicekeys/internal/metrics"
	"devicekeys/internal/relay"
	"devicekeys/internal/services/identity"
	"devicekeys/internal/services/message"
	"devicekeys/internal/services/prekey"
	"devicekeys/internal/store"
	"devicekeys/internal/util/keymutex"
)

// ErrPassphraseRequired is returned when Store.Encrypt is set without a
// passphrase.
var ErrPassphraseRequired = errors.New("store encryption is enabled but no passphrase was given")

// New builds the dependency graph from cfg. cfg must already have been
// through FixupAndValidate. A non-empty passphrase seals private records
// even when Store.Encrypt is off.
func New(cfg *Config, passphrase string) (*App, error) {
	if cfg.Store.Encrypt && passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	log, logCloser, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("app: logger: %w", err)
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
		closers:  []func() error{logCloser.Close},
	}
	if a.Metrics, err = metrics.New(a.Registry); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	a.Store, err = store.Open(cfg.Store.Path, store.Options{
		Passphrase: passphrase,
		Timeout:    cfg.StoreTimeout(),
		ScryptLogN: cfg.Store.ScryptLogN,
		Logger:     log,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	// Identity and payload operations on one user must not interleave.
	locks := keymutex.New()
	a.Identity = identity.New(a.Store,
		identity.WithLocks(locks),
		identity.WithLogger(log),
		identity.WithMetrics(a.Metrics),
	)
	a.Payload = message.New(a.Store,
		message.WithLocks(locks),
		message.WithLogger(log),
		message.WithMetrics(a.Metrics),
	)
	a.Verifier = prekey.New(log, a.Metrics)

	if cfg.Directory.URL != "" {
		a.directory = relay.NewHTTP(cfg.Directory.URL, relay.Options{
			Timeout:           cfg.DirectoryTimeout(),
			RequestsPerSecond: cfg.Directory.RequestsPerSecond,
			Burst:             cfg.Directory.Burst,
			MaxRetries:        cfg.Directory.MaxRetries,
			Logger:            log,
		})
	}
	return a, nil
}
