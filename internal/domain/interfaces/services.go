package interfaces

import (
	"context"

	domaintypes "devicekeys/internal/domain/types"
)

// IdentityService owns the lifecycle of a device key bundle.
type IdentityService interface {
	Generate(ctx context.Context, user domaintypes.UserID) (domaintypes.PublicBundle, error)
	Load(ctx context.Context, user domaintypes.UserID) (domaintypes.LoadedBundle, error)
	Clear(ctx context.Context, user domaintypes.UserID) error
	Fingerprint(ctx context.Context, user domaintypes.UserID) (domaintypes.Fingerprint, error)
}

// PrekeyVerifier checks signed prekey bundles received from the network.
// It never returns errors: anything that does not verify is untrusted.
type PrekeyVerifier interface {
	Verify(identityKeyPub, signedPrekeyPub, signature string) bool
	VerifyBundle(bundle domaintypes.PublicBundle) bool
}

// PayloadCipher encrypts and decrypts message payloads with the local
// signed prekey.
type PayloadCipher interface {
	Encrypt(
		ctx context.Context,
		user domaintypes.UserID,
		recipientSignedPrekeyPub string,
		plaintext []byte,
	) (domaintypes.IncomingMessage, error)
	Decrypt(
		ctx context.Context,
		user domaintypes.UserID,
		msg domaintypes.IncomingMessage,
	) ([]byte, error)
}
