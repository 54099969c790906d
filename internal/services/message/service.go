package message

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/metrics"
	"devicekeys/internal/util/keymutex"
	"devicekeys/internal/util/memzero"
)

// Service is the payload cipher for one key store.
type Service struct {
	store   domain.KeyStore
	locks   *keymutex.KeyMutex
	rand    io.Reader
	log     zerolog.Logger
	codec   crypto.Codec
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the IV source. Defaults to crypto/rand.
func WithRand(r io.Reader) Option { return func(s *Service) { s.rand = r } }

// WithLocks shares the per-user lock table with the identity service so a
// payload operation never observes a bundle mid-regeneration.
func WithLocks(m *keymutex.KeyMutex) Option { return func(s *Service) { s.locks = m } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// New constructs a payload cipher reading signed prekeys from ks.
func New(ks domain.KeyStore, opts ...Option) *Service {
	s := &Service{store: ks, rand: rand.Reader, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = keymutex.New()
	}
	s.log = s.log.With().Str("component", "payload").Logger()
	s.codec = crypto.NewCodec(s.log)
	return s
}

// Encrypt seals plaintext for the holder of recipientSignedPrekeyPub. The
// returned message carries user's own signed prekey so the recipient can
// derive the same key.
func (s *Service) Encrypt(
	ctx context.Context,
	user domain.UserID,
	recipientSignedPrekeyPub string,
	plaintext []byte,
) (msg domain.IncomingMessage, err error) {
	defer func() { s.metrics.Payload(metrics.OpEncrypt, err) }()

	recipient, err := s.decodePub(recipientSignedPrekeyPub)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	own, err := s.loadPrekey(ctx, user)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	defer memzero.Zero(own.Priv[:])

	iv := make([]byte, crypto.PayloadIVSize)
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return domain.IncomingMessage{}, fmt.Errorf("%w: iv: %w", domain.ErrKeyGen, err)
	}

	shared, err := crypto.DH(own.Priv, recipient)
	if err != nil {
		return domain.IncomingMessage{}, fmt.Errorf("%w: recipient prekey: %w", domain.ErrMalformedMessage, err)
	}
	defer memzero.Zero(shared[:])

	ct, err := crypto.SealPayload(shared, iv, plaintext, associatedData(own.Pub, recipient))
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	return domain.IncomingMessage{
		Ciphertext:            crypto.Encode(ct),
		IV:                    crypto.Encode(iv),
		SenderSignedPrekeyPub: crypto.Encode(own.Pub[:]),
	}, nil
}

// Decrypt opens msg with user's signed prekey.
func (s *Service) Decrypt(ctx context.Context, user domain.UserID, msg domain.IncomingMessage) (pt []byte, err error) {
	defer func() { s.metrics.Payload(metrics.OpDecrypt, err) }()

	sender, err := s.decodePub(msg.SenderSignedPrekeyPub)
	if err != nil {
		return nil, err
	}
	iv := s.codec.Decode(msg.IV)
	if len(iv) != crypto.PayloadIVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", domain.ErrMalformedMessage, len(iv))
	}
	ct := s.codec.Decode(msg.Ciphertext)
	if len(ct) < chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", domain.ErrMalformedMessage, len(ct))
	}

	own, err := s.loadPrekey(ctx, user)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(own.Priv[:])

	shared, err := crypto.DH(own.Priv, sender)
	if err != nil {
		return nil, fmt.Errorf("%w: sender prekey: %w", domain.ErrMalformedMessage, err)
	}
	defer memzero.Zero(shared[:])

	pt, err = crypto.OpenPayload(shared, iv, ct, associatedData(sender, own.Pub))
	if err != nil {
		s.log.Debug().Str("user", user.String()).Msg("Payload failed authentication")
		return nil, domain.ErrDecryptFailed
	}
	return pt, nil
}

func (s *Service) loadPrekey(ctx context.Context, user domain.UserID) (domain.AgreementPrivateKey, error) {
	if !user.Valid() {
		return domain.AgreementPrivateKey{}, domain.ErrInvalidUserID
	}
	unlock, err := s.locks.RLock(ctx, user.String())
	if err != nil {
		return domain.AgreementPrivateKey{}, err
	}
	defer unlock()

	k, err := s.store.Get(ctx, domain.RecordName(domain.PurposeSignedPrekeyPrivate, user), domain.KindAgreementPrivate)
	if err != nil {
		return domain.AgreementPrivateKey{}, err
	}
	if k == nil {
		return domain.AgreementPrivateKey{}, domain.ErrNoAgreementKey
	}
	return k.(domain.AgreementPrivateKey), nil
}

func (s *Service) decodePub(v string) (domain.X25519Public, error) {
	var pub domain.X25519Public
	b := s.codec.Decode(v)
	if len(b) != len(pub) {
		return pub, fmt.Errorf("%w: signed prekey is %d bytes", domain.ErrMalformedMessage, len(b))
	}
	copy(pub[:], b)
	return pub, nil
}

// associatedData binds sender and recipient prekeys, in that order.
func associatedData(sender, recipient domain.X25519Public) []byte {
	ad := make([]byte, 0, 64)
	ad = append(ad, sender[:]...)
	return append(ad, recipient[:]...)
}

var _ domain.PayloadCipher = (*Service)(nil)
