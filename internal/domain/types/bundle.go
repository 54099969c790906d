package types

// PublicBundle is the public-facing half of a device key bundle, published
// to a directory so peers can start key agreement. Binary fields are
// standard base64.
type PublicBundle struct {
	IdentityKeyPub  string `json:"identity_key_pub"`
	SignedPrekeyPub string `json:"signed_prekey_pub"`
	SignedPrekeySig string `json:"signed_prekey_sig"`
	SignedPrekeyID  uint32 `json:"signed_prekey_id"`
	RegistrationID  uint16 `json:"registration_id"`
}

// LoadedBundle is what a load returns. Any field may be nil when the
// matching record is absent; callers check Complete before using it for
// key agreement.
type LoadedBundle struct {
	UserID UserID

	IdentityPrivate     *SigningPrivateKey
	IdentityPublic      *SigningPublicKey
	SignedPrekeyPrivate *AgreementPrivateKey
	SignedPrekeyPublic  *AgreementPublicKey
	SignedPrekeySig     []byte
	SignedPrekeyID      *uint32
	RegistrationID      *uint16

	// Base64 renderings of the public material, empty when absent.
	IdentityKeyPub     string
	SignedPrekeyPub    string
	SignedPrekeySigB64 string
}

// Complete reports whether every record was present.
func (b LoadedBundle) Complete() bool {
	return b.IdentityPrivate != nil &&
		b.IdentityPublic != nil &&
		b.SignedPrekeyPrivate != nil &&
		b.SignedPrekeyPublic != nil &&
		b.SignedPrekeySig != nil &&
		b.SignedPrekeyID != nil &&
		b.RegistrationID != nil
}

// Empty reports whether no record was present.
func (b LoadedBundle) Empty() bool {
	return b.IdentityPrivate == nil &&
		b.IdentityPublic == nil &&
		b.SignedPrekeyPrivate == nil &&
		b.SignedPrekeyPublic == nil &&
		b.SignedPrekeySig == nil &&
		b.SignedPrekeyID == nil &&
		b.RegistrationID == nil
}

// Public returns the publishable bundle, or false if any public field is
// missing.
func (b LoadedBundle) Public() (PublicBundle, bool) {
	if b.IdentityPublic == nil || b.SignedPrekeyPublic == nil || b.SignedPrekeySig == nil ||
		b.SignedPrekeyID == nil || b.RegistrationID == nil {
		return PublicBundle{}, false
	}
	return PublicBundle{
		IdentityKeyPub:  b.IdentityKeyPub,
		SignedPrekeyPub: b.SignedPrekeyPub,
		SignedPrekeySig: b.SignedPrekeySigB64,
		SignedPrekeyID:  *b.SignedPrekeyID,
		RegistrationID:  *b.RegistrationID,
	}, true
}
