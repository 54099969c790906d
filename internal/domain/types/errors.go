package types

import "errors"

var (
	// ErrStorageUnavailable is returned when the embedded store cannot be
	// opened or has been closed.
	ErrStorageUnavailable = errors.New("key storage unavailable")
	// ErrKeyImport is returned when stored key material is corrupt or does
	// not match the requested key kind.
	ErrKeyImport = errors.New("key import failed")
	// ErrKeyExport is returned when a key cannot be serialised for storage.
	ErrKeyExport = errors.New("key export failed")
	// ErrKeyGen is returned when key material cannot be generated.
	ErrKeyGen = errors.New("key generation failed")
	// ErrWrongPassphrase is returned when a sealed record does not open.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted record")
	// ErrInvalidUserID is returned for empty user ids.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrNoIdentity is returned when an operation needs the identity key
	// and none is stored.
	ErrNoIdentity = errors.New("no identity key stored for user")

	// ErrMalformedMessage is returned when an incoming payload is missing
	// fields or carries fields of the wrong size.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrNoAgreementKey is returned when no signed prekey is stored for the
	// local user.
	ErrNoAgreementKey = errors.New("no signed prekey stored for user")
	// ErrDecryptFailed is returned when the payload does not authenticate.
	ErrDecryptFailed = errors.New("payload decryption failed")

	// ErrBundleNotFound is returned by the directory for unknown users.
	ErrBundleNotFound = errors.New("bundle not found")
)
