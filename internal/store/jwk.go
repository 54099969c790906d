package store

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"slices"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
)

// jwk is the RFC 8037 OKP rendering of a key. Fields are unpadded
// URL-safe base64. Name and DSealed are local extensions: the record name
// the key was written under, and d sealed under the store passphrase.
type jwk struct {
	Name   string   `json:"name,omitempty"`
	Kty    string   `json:"kty"`
	Crv    string   `json:"crv"`
	X      string   `json:"x"`
	D      string   `json:"d,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	Ext    bool     `json:"ext"`

	DSealed json.RawMessage `json:"d_sealed,omitempty"`
}

// exportJWK serialises key. Every concrete domain.Key is handled here; a
// new kind that is not added fails loudly with ErrKeyExport.
func exportJWK(key domain.Key) (jwk, error) {
	switch k := key.(type) {
	case domain.SigningPrivateKey:
		pub := k.Public()
		return jwk{
			Kty:    "OKP",
			Crv:    domain.KindSigningPrivate.Curve(),
			X:      crypto.EncodeURL(pub.Pub[:]),
			D:      crypto.EncodeURL(k.Priv[:ed25519.SeedSize]),
			KeyOps: domain.KindSigningPrivate.Usages(),
			Ext:    true,
		}, nil
	case domain.SigningPublicKey:
		return jwk{
			Kty:    "OKP",
			Crv:    domain.KindSigningPublic.Curve(),
			X:      crypto.EncodeURL(k.Pub[:]),
			KeyOps: domain.KindSigningPublic.Usages(),
			Ext:    true,
		}, nil
	case domain.AgreementPrivateKey:
		return jwk{
			Kty:    "OKP",
			Crv:    domain.KindAgreementPrivate.Curve(),
			X:      crypto.EncodeURL(k.Pub[:]),
			D:      crypto.EncodeURL(k.Priv[:]),
			KeyOps: domain.KindAgreementPrivate.Usages(),
			Ext:    true,
		}, nil
	case domain.AgreementPublicKey:
		return jwk{
			Kty:    "OKP",
			Crv:    domain.KindAgreementPublic.Curve(),
			X:      crypto.EncodeURL(k.Pub[:]),
			KeyOps: domain.KindAgreementPublic.Usages(),
			Ext:    true,
		}, nil
	default:
		return jwk{}, fmt.Errorf("%w: unsupported key type %T", domain.ErrKeyExport, key)
	}
}

// importJWK rebuilds a key of the requested kind from j. key_ops must be
// exactly the usages of kind, and public kinds must carry no private
// material. The public half is recomputed from private material and must
// match x.
func importJWK(j jwk, kind domain.KeyKind) (domain.Key, error) {
	if j.Kty != "OKP" {
		return nil, fmt.Errorf("%w: kty %q", domain.ErrKeyImport, j.Kty)
	}
	if want := kind.Curve(); want == "" || j.Crv != want {
		return nil, fmt.Errorf("%w: crv %q does not match %s", domain.ErrKeyImport, j.Crv, kind)
	}
	if !sameOps(j.KeyOps, kind.Usages()) {
		return nil, fmt.Errorf("%w: key_ops %v not allowed for %s", domain.ErrKeyImport, j.KeyOps, kind)
	}
	if !kind.Private() && (j.D != "" || len(j.DSealed) > 0) {
		return nil, fmt.Errorf("%w: private material in %s record", domain.ErrKeyImport, kind)
	}
	x, err := decodeField(j.X, 32, "x")
	if err != nil {
		return nil, err
	}
	var d []byte
	if kind.Private() {
		if d, err = decodeField(j.D, 32, "d"); err != nil {
			return nil, err
		}
	}

	switch kind {
	case domain.KindSigningPrivate:
		priv := ed25519.NewKeyFromSeed(d)
		if !bytes.Equal(priv[ed25519.SeedSize:], x) {
			return nil, fmt.Errorf("%w: ed25519 public half does not match seed", domain.ErrKeyImport)
		}
		var out domain.SigningPrivateKey
		copy(out.Priv[:], priv)
		return out, nil
	case domain.KindSigningPublic:
		var out domain.SigningPublicKey
		copy(out.Pub[:], x)
		return out, nil
	case domain.KindAgreementPrivate:
		var out domain.AgreementPrivateKey
		copy(out.Priv[:], d)
		pub, err := crypto.X25519PublicFromPrivate(out.Priv)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrKeyImport, err)
		}
		if !bytes.Equal(pub[:], x) {
			return nil, fmt.Errorf("%w: x25519 public half does not match private", domain.ErrKeyImport)
		}
		out.Pub = pub
		return out, nil
	case domain.KindAgreementPublic:
		var out domain.AgreementPublicKey
		copy(out.Pub[:], x)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", domain.ErrKeyImport, kind)
	}
}

func sameOps(got, want []string) bool {
	got, want = slices.Clone(got), slices.Clone(want)
	slices.Sort(got)
	slices.Sort(want)
	return slices.Equal(got, want)
}

func decodeField(s string, size int, field string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %q", domain.ErrKeyImport, field)
	}
	b, err := crypto.DecodeStrict(s)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", domain.ErrKeyImport, field, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: field %q is %d bytes, want %d", domain.ErrKeyImport, field, len(b), size)
	}
	return b, nil
}
