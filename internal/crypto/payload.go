package crypto

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"devicekeys/internal/util/memzero"
)

const (
	// PayloadIVSize is the per-message IV length; it doubles as the AEAD nonce.
	PayloadIVSize = chacha20poly1305.NonceSize

	payloadInfo = "devicekeys/payload/v1"
)

var errBadIV = errors.New("payload iv must be 12 bytes")

// DerivePayloadKey expands an X25519 shared secret into a per-message AEAD
// key. The IV is used as the HKDF salt, so every message gets its own key.
func DerivePayloadKey(shared [32]byte, iv []byte) ([]byte, error) {
	if len(iv) != PayloadIVSize {
		return nil, errBadIV
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, shared[:], iv, []byte(payloadInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SealPayload encrypts plaintext under the key derived from shared and iv.
func SealPayload(shared [32]byte, iv, plaintext, ad []byte) ([]byte, error) {
	key, err := DerivePayloadKey(shared, iv)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, iv, plaintext, ad), nil
}

// OpenPayload is the inverse of SealPayload.
func OpenPayload(shared [32]byte, iv, ciphertext, ad []byte) ([]byte, error) {
	key, err := DerivePayloadKey(shared, iv)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, iv, ciphertext, ad)
}
