package prekey

import (
	"crypto/ed25519"

	"github.com/rs/zerolog"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/metrics"
)

// Verifier checks that a signed prekey was signed by the identity key
// published next to it.
type Verifier struct {
	log     zerolog.Logger
	codec   crypto.Codec
	metrics *metrics.Metrics
}

// New returns a Verifier. m may be nil.
func New(log zerolog.Logger, m *metrics.Metrics) *Verifier {
	log = log.With().Str("component", "prekey").Logger()
	return &Verifier{
		log:     log,
		codec:   crypto.NewCodec(log),
		metrics: m,
	}
}

// Verify reports whether signature is a valid Ed25519 signature by
// identityKeyPub over the raw bytes of signedPrekeyPub. All arguments are
// base64, standard or URL-safe.
func (v *Verifier) Verify(identityKeyPub, signedPrekeyPub, signature string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error().Interface("panic", r).Msg("Recovered from panic during prekey verification")
			ok = false
		}
		v.metrics.Verified(ok)
	}()

	idPub := v.codec.Decode(identityKeyPub)
	spk := v.codec.Decode(signedPrekeyPub)
	sig := v.codec.Decode(signature)
	if len(idPub) != ed25519.PublicKeySize || len(spk) != 32 || len(sig) != ed25519.SignatureSize {
		v.log.Debug().
			Int("identity_len", len(idPub)).
			Int("prekey_len", len(spk)).
			Int("sig_len", len(sig)).
			Msg("Rejecting signed prekey with bad field sizes")
		return false
	}

	var pub domain.Ed25519Public
	copy(pub[:], idPub)
	ok = crypto.VerifyEd25519(pub, spk, sig)
	if !ok {
		v.log.Debug().Str("fingerprint", crypto.Fingerprint(idPub)).Msg("Signed prekey signature does not verify")
	}
	return ok
}

// VerifyBundle verifies the signed prekey of a published bundle.
func (v *Verifier) VerifyBundle(b domain.PublicBundle) bool {
	return v.Verify(b.IdentityKeyPub, b.SignedPrekeyPub, b.SignedPrekeySig)
}

var _ domain.PrekeyVerifier = (*Verifier)(nil)
