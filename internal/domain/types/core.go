package types

import "strings"

// UserID identifies the local account whose device keys are managed.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// Valid reports whether u can be used to namespace records.
func (u UserID) Valid() bool { return strings.TrimSpace(string(u)) != "" }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Purpose names what a stored record holds. Record names are
// "<purpose>:<userId>".
type Purpose string

// Key record purposes.
const (
	PurposeIdentityPrivate     Purpose = "identity_private"
	PurposeIdentityPublic      Purpose = "identity_public"
	PurposeSignedPrekeyPrivate Purpose = "signed_prekey_private"
	PurposeSignedPrekeyPublic  Purpose = "signed_prekey_public"
)

// Meta record purposes.
const (
	PurposeSignedPrekeySig Purpose = "signed_prekey_sig"
	PurposeSignedPrekeyID  Purpose = "signed_prekey_id"
	PurposeRegistrationID  Purpose = "registration_id"
)

// RecordName returns the namespaced store name for purpose p and user u.
func RecordName(p Purpose, u UserID) string {
	return string(p) + ":" + string(u)
}

// RecordNames returns every record name a device bundle for u occupies.
func RecordNames(u UserID) []string {
	return []string{
		RecordName(PurposeIdentityPrivate, u),
		RecordName(PurposeIdentityPublic, u),
		RecordName(PurposeSignedPrekeyPrivate, u),
		RecordName(PurposeSignedPrekeyPublic, u),
		RecordName(PurposeSignedPrekeySig, u),
		RecordName(PurposeSignedPrekeyID, u),
		RecordName(PurposeRegistrationID, u),
	}
}
