package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	maxBodySize       = 64 << 10
)

// Options tunes the directory client. Zero values select defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        uint64
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// HTTP talks to a bundle directory over JSON/HTTP.
type HTTP struct {
	base       string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	log        zerolog.Logger
	codec      crypto.Codec
}

// NewHTTP returns a client for the directory at base.
func NewHTTP(base string, opts Options) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	log := opts.Logger.With().Str("component", "directory").Logger()
	return &HTTP{
		base:       strings.TrimRight(base, "/"),
		http:       hc,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		log:        log,
		codec:      crypto.NewCodec(log),
	}
}

// PublishBundle uploads the public bundle for user.
func (c *HTTP) PublishBundle(ctx context.Context, user domain.UserID, b domain.PublicBundle) error {
	if !user.Valid() {
		return domain.ErrInvalidUserID
	}
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodPost, bundlePath(user), body, nil)
	if err == nil {
		c.log.Info().Str("user", user.String()).Uint32("signed_prekey_id", b.SignedPrekeyID).Msg("Published bundle")
	}
	return err
}

// FetchBundle downloads the public bundle for user. Key fields are decoded
// leniently and re-encoded as standard base64; a garbled field comes back
// empty and fails verification downstream.
func (c *HTTP) FetchBundle(ctx context.Context, user domain.UserID) (domain.PublicBundle, error) {
	if !user.Valid() {
		return domain.PublicBundle{}, domain.ErrInvalidUserID
	}
	var w wireBundle
	if err := c.do(ctx, http.MethodGet, bundlePath(user), nil, &w); err != nil {
		return domain.PublicBundle{}, err
	}
	return domain.PublicBundle{
		IdentityKeyPub:  crypto.Encode(c.codec.DecodeField(w.IdentityKeyPub)),
		SignedPrekeyPub: crypto.Encode(c.codec.DecodeField(w.SignedPrekeyPub)),
		SignedPrekeySig: crypto.Encode(c.codec.DecodeField(w.SignedPrekeySig)),
		SignedPrekeyID:  w.SignedPrekeyID,
		RegistrationID:  w.RegistrationID,
	}, nil
}

// wireBundle accepts whatever JSON types a directory sends for key fields.
type wireBundle struct {
	IdentityKeyPub  any    `json:"identity_key_pub"`
	SignedPrekeyPub any    `json:"signed_prekey_pub"`
	SignedPrekeySig any    `json:"signed_prekey_sig"`
	SignedPrekeyID  uint32 `json:"signed_prekey_id"`
	RegistrationID  uint16 `json:"registration_id"`
}

func bundlePath(user domain.UserID) string {
	return "/bundle/" + url.PathEscape(user.String())
}

// do sends one request, retrying network errors and 5xx responses.
func (c *HTTP) do(ctx context.Context, method, path string, body []byte, out any) error {
	u := c.base + path
	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
			return backoff.Permanent(domain.ErrBundleNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("directory %s %s: %s", method, u, resp.Status)
		case resp.StatusCode/100 != 2:
			return backoff.Permanent(fmt.Errorf("directory %s %s: %s", method, u, resp.Status))
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("directory %s %s: decode: %w", method, u, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("Directory request failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx), notify)
}

var _ domain.DirectoryClient = (*HTTP)(nil)
