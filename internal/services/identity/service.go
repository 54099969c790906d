package identity

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/rs/zerolog"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/metrics"
	"devicekeys/internal/util/keymutex"
	"devicekeys/internal/util/memzero"
)

// maxIDDraws bounds how often a zero id is redrawn before the entropy
// source is considered broken.
const maxIDDraws = 8

// Service generates, loads and clears device key bundles.
type Service struct {
	store   domain.KeyStore
	locks   *keymutex.KeyMutex
	rand    io.Reader
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the entropy source. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithLocks shares a per-user lock table with other services.
func WithLocks(m *keymutex.KeyMutex) Option {
	return func(s *Service) { s.locks = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns an identity service backed by ks.
func New(ks domain.KeyStore, opts ...Option) *Service {
	s := &Service{
		store: ks,
		rand:  rand.Reader,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = keymutex.New()
	}
	s.log = s.log.With().Str("component", "identity").Logger()
	return s
}

// Generate creates a fresh bundle for user, replacing any existing one, and
// returns its public half. Nothing is written unless the prekey signature
// verifies.
func (s *Service) Generate(ctx context.Context, user domain.UserID) (domain.PublicBundle, error) {
	if !user.Valid() {
		return domain.PublicBundle{}, domain.ErrInvalidUserID
	}
	unlock, err := s.locks.Lock(ctx, user.String())
	if err != nil {
		return domain.PublicBundle{}, err
	}
	defer unlock()

	b, err := s.newBundle()
	if err != nil {
		return domain.PublicBundle{}, err
	}
	defer b.wipe()

	if !crypto.VerifyEd25519(b.identity.Public().Pub, b.prekey.Pub[:], b.sig) {
		return domain.PublicBundle{}, fmt.Errorf("%w: signed prekey does not verify", domain.ErrKeyGen)
	}

	if err := ctx.Err(); err != nil {
		return domain.PublicBundle{}, err
	}
	err = s.store.Update(ctx, func(tx domain.KeyStoreTx) error {
		puts := []struct {
			p domain.Purpose
			k domain.Key
		}{
			{domain.PurposeIdentityPrivate, b.identity},
			{domain.PurposeIdentityPublic, b.identity.Public()},
			{domain.PurposeSignedPrekeyPrivate, b.prekey},
			{domain.PurposeSignedPrekeyPublic, b.prekey.Public()},
		}
		for _, p := range puts {
			if err := tx.Put(domain.RecordName(p.p, user), p.k); err != nil {
				return err
			}
		}
		metas := []struct {
			p domain.Purpose
			v domain.MetaValue
		}{
			{domain.PurposeSignedPrekeySig, domain.BytesValue(b.sig)},
			{domain.PurposeSignedPrekeyID, domain.UintValue(uint64(b.prekeyID))},
			{domain.PurposeRegistrationID, domain.UintValue(uint64(b.registrationID))},
		}
		for _, m := range metas {
			if err := tx.PutMeta(domain.RecordName(m.p, user), m.v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.PublicBundle{}, err
	}

	pub := b.identity.Public()
	s.metrics.Generated()
	s.log.Info().
		Str("user", user.String()).
		Str("fingerprint", crypto.Fingerprint(pub.Pub[:])).
		Uint32("signed_prekey_id", b.prekeyID).
		Msg("Generated device keys")

	return domain.PublicBundle{
		IdentityKeyPub:  crypto.Encode(pub.Pub[:]),
		SignedPrekeyPub: crypto.Encode(b.prekey.Pub[:]),
		SignedPrekeySig: crypto.Encode(b.sig),
		SignedPrekeyID:  b.prekeyID,
		RegistrationID:  b.registrationID,
	}, nil
}

// Load reads the bundle for user. Records that are not stored come back as
// nil fields; an empty bundle is not an error.
func (s *Service) Load(ctx context.Context, user domain.UserID) (domain.LoadedBundle, error) {
	if !user.Valid() {
		return domain.LoadedBundle{}, domain.ErrInvalidUserID
	}
	unlock, err := s.locks.RLock(ctx, user.String())
	if err != nil {
		return domain.LoadedBundle{}, err
	}
	defer unlock()

	out := domain.LoadedBundle{UserID: user}

	k, err := s.store.Get(ctx, domain.RecordName(domain.PurposeIdentityPrivate, user), domain.KindSigningPrivate)
	if err != nil {
		return domain.LoadedBundle{}, err
	}
	if k != nil {
		v := k.(domain.SigningPrivateKey)
		out.IdentityPrivate = &v
	}
	if k, err = s.store.Get(ctx, domain.RecordName(domain.PurposeIdentityPublic, user), domain.KindSigningPublic); err != nil {
		return domain.LoadedBundle{}, err
	}
	if k != nil {
		v := k.(domain.SigningPublicKey)
		out.IdentityPublic = &v
		out.IdentityKeyPub = crypto.Encode(v.Pub[:])
	}
	if k, err = s.store.Get(ctx, domain.RecordName(domain.PurposeSignedPrekeyPrivate, user), domain.KindAgreementPrivate); err != nil {
		return domain.LoadedBundle{}, err
	}
	if k != nil {
		v := k.(domain.AgreementPrivateKey)
		out.SignedPrekeyPrivate = &v
	}
	if k, err = s.store.Get(ctx, domain.RecordName(domain.PurposeSignedPrekeyPublic, user), domain.KindAgreementPublic); err != nil {
		return domain.LoadedBundle{}, err
	}
	if k != nil {
		v := k.(domain.AgreementPublicKey)
		out.SignedPrekeyPublic = &v
		out.SignedPrekeyPub = crypto.Encode(v.Pub[:])
	}

	sigName := domain.RecordName(domain.PurposeSignedPrekeySig, user)
	m, err := s.store.GetMeta(ctx, sigName)
	if err != nil {
		return domain.LoadedBundle{}, err
	}
	if m != nil {
		if m.Kind != domain.MetaBytes {
			return domain.LoadedBundle{}, fmt.Errorf("%w: %q is not a byte value", domain.ErrKeyImport, sigName)
		}
		out.SignedPrekeySig = append([]byte{}, m.Bytes...)
		out.SignedPrekeySigB64 = crypto.Encode(m.Bytes)
	}

	spkID, err := s.loadUint(ctx, domain.RecordName(domain.PurposeSignedPrekeyID, user), math.MaxUint32)
	if err != nil {
		return domain.LoadedBundle{}, err
	}
	if spkID != nil {
		v := uint32(*spkID)
		out.SignedPrekeyID = &v
	}
	regID, err := s.loadUint(ctx, domain.RecordName(domain.PurposeRegistrationID, user), math.MaxUint16)
	if err != nil {
		return domain.LoadedBundle{}, err
	}
	if regID != nil {
		v := uint16(*regID)
		out.RegistrationID = &v
	}

	if !out.Complete() && !out.Empty() {
		s.log.Warn().Str("user", user.String()).Msg("Device key bundle is incomplete")
	}
	return out, nil
}

// Clear deletes every record of the bundle for user in one transaction.
func (s *Service) Clear(ctx context.Context, user domain.UserID) error {
	if !user.Valid() {
		return domain.ErrInvalidUserID
	}
	unlock, err := s.locks.Lock(ctx, user.String())
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, domain.RecordNames(user)); err != nil {
		return err
	}
	s.metrics.Cleared()
	s.log.Info().Str("user", user.String()).Msg("Cleared device keys")
	return nil
}

// Fingerprint returns a short fingerprint of the identity public key for
// out-of-band comparison.
func (s *Service) Fingerprint(ctx context.Context, user domain.UserID) (domain.Fingerprint, error) {
	if !user.Valid() {
		return "", domain.ErrInvalidUserID
	}
	unlock, err := s.locks.RLock(ctx, user.String())
	if err != nil {
		return "", err
	}
	defer unlock()

	k, err := s.store.Get(ctx, domain.RecordName(domain.PurposeIdentityPublic, user), domain.KindSigningPublic)
	if err != nil {
		return "", err
	}
	if k == nil {
		return "", domain.ErrNoIdentity
	}
	pub := k.(domain.SigningPublicKey)
	return domain.Fingerprint(crypto.Fingerprint(pub.Pub[:])), nil
}

func (s *Service) loadUint(ctx context.Context, name string, limit uint64) (*uint64, error) {
	m, err := s.store.GetMeta(ctx, name)
	if err != nil || m == nil {
		return nil, err
	}
	if m.Kind != domain.MetaUint || m.Uint > limit {
		return nil, fmt.Errorf("%w: %q is not an id", domain.ErrKeyImport, name)
	}
	v := m.Uint
	return &v, nil
}

type bundle struct {
	identity       domain.SigningPrivateKey
	prekey         domain.AgreementPrivateKey
	sig            []byte
	prekeyID       uint32
	registrationID uint16
}

func (b *bundle) wipe() {
	memzero.Zero(b.identity.Priv[:], b.prekey.Priv[:])
}

func (s *Service) newBundle() (*bundle, error) {
	edPriv, _, err := crypto.GenerateEd25519(s.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", domain.ErrKeyGen, err)
	}
	xPriv, xPub, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: signed prekey: %w", domain.ErrKeyGen, err)
	}
	b := &bundle{
		identity: domain.SigningPrivateKey{Priv: edPriv},
		prekey:   domain.AgreementPrivateKey{Priv: xPriv, Pub: xPub},
	}
	b.sig = crypto.SignEd25519(edPriv, xPub[:])
	memzero.Zero(edPriv[:], xPriv[:])

	spkID, err := s.randomID(4)
	if err != nil {
		b.wipe()
		return nil, err
	}
	regID, err := s.randomID(2)
	if err != nil {
		b.wipe()
		return nil, err
	}
	b.prekeyID = uint32(spkID)
	b.registrationID = uint16(regID)
	return b, nil
}

// randomID draws a non-zero big-endian integer of size bytes.
func (s *Service) randomID(size int) (uint64, error) {
	var buf [8]byte
	for range maxIDDraws {
		if _, err := io.ReadFull(s.rand, buf[8-size:]); err != nil {
			return 0, fmt.Errorf("%w: id: %w", domain.ErrKeyGen, err)
		}
		if v := binary.BigEndian.Uint64(buf[:]); v != 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: entropy source keeps returning zero", domain.ErrKeyGen)
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
