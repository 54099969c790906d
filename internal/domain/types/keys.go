package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key (seed || public).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// KeyKind is the fixed set of algorithm and usage combinations the store
// knows how to import and export.
type KeyKind uint8

const (
	KindUnknown KeyKind = iota
	KindSigningPrivate
	KindSigningPublic
	KindAgreementPrivate
	KindAgreementPublic
)

// String returns a readable name for k.
func (k KeyKind) String() string {
	switch k {
	case KindSigningPrivate:
		return "signing-private"
	case KindSigningPublic:
		return "signing-public"
	case KindAgreementPrivate:
		return "agreement-private"
	case KindAgreementPublic:
		return "agreement-public"
	default:
		return "unknown"
	}
}

// Curve returns the JWK "crv" value for k.
func (k KeyKind) Curve() string {
	switch k {
	case KindSigningPrivate, KindSigningPublic:
		return "Ed25519"
	case KindAgreementPrivate, KindAgreementPublic:
		return "X25519"
	default:
		return ""
	}
}

// Private reports whether k carries secret material.
func (k KeyKind) Private() bool {
	return k == KindSigningPrivate || k == KindAgreementPrivate
}

// Usages returns the JWK "key_ops" permitted for k.
func (k KeyKind) Usages() []string {
	switch k {
	case KindSigningPrivate:
		return []string{"sign"}
	case KindSigningPublic:
		return []string{"verify"}
	case KindAgreementPrivate:
		return []string{"deriveBits"}
	default:
		return nil
	}
}

// Key is one of SigningPrivateKey, SigningPublicKey, AgreementPrivateKey or
// AgreementPublicKey.
type Key interface {
	Kind() KeyKind
	isKey()
}

// SigningPrivateKey is the private half of an identity key pair.
type SigningPrivateKey struct {
	Priv Ed25519Private
}

// SigningPublicKey is the public half of an identity key pair.
type SigningPublicKey struct {
	Pub Ed25519Public
}

// AgreementPrivateKey is the private half of a signed prekey pair. The
// public half travels with it so the record can be exported whole.
type AgreementPrivateKey struct {
	Priv X25519Private
	Pub  X25519Public
}

// AgreementPublicKey is the public half of a signed prekey pair.
type AgreementPublicKey struct {
	Pub X25519Public
}

func (SigningPrivateKey) Kind() KeyKind   { return KindSigningPrivate }
func (SigningPublicKey) Kind() KeyKind    { return KindSigningPublic }
func (AgreementPrivateKey) Kind() KeyKind { return KindAgreementPrivate }
func (AgreementPublicKey) Kind() KeyKind  { return KindAgreementPublic }

func (SigningPrivateKey) isKey()   {}
func (SigningPublicKey) isKey()    {}
func (AgreementPrivateKey) isKey() {}
func (AgreementPublicKey) isKey()  {}

// Public returns the verification key embedded in k.
func (k SigningPrivateKey) Public() SigningPublicKey {
	var out SigningPublicKey
	copy(out.Pub[:], k.Priv[32:])
	return out
}

// Public returns the agreement public key paired with k.
func (k AgreementPrivateKey) Public() AgreementPublicKey {
	return AgreementPublicKey{Pub: k.Pub}
}
