package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"devicekeys/internal/domain"
	"devicekeys/internal/metrics"
	"devicekeys/internal/services/identity"
	"devicekeys/internal/services/message"
	"devicekeys/internal/services/prekey"
	"devicekeys/internal/store"
)

// ErrNoDirectory is returned by Directory when no directory URL is set.
var ErrNoDirectory = errors.New("no directory URL configured")

// App holds the wired services for one process.
type App struct {
	Config   *Config
	Log      zerolog.Logger
	Store    *store.BoltKeyStore
	Identity *identity.Service
	Verifier *prekey.Verifier
	Payload  *message.Service
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	directory domain.DirectoryClient
	closers   []func() error
}

// Directory returns the bundle directory client.
func (a *App) Directory() (domain.DirectoryClient, error) {
	if a.directory == nil {
		return nil, ErrNoDirectory
	}
	return a.directory, nil
}

// Close writes the metrics textfile if configured, then releases the
// store and the log file.
func (a *App) Close() error {
	var errs []error
	if p := a.Config.Metrics.Textfile; p != "" {
		if err := metrics.WriteTextfile(a.Registry, p); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
