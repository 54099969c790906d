// Package message encrypts and decrypts message payloads with the local
// signed prekey.
//
// The scheme is X25519 between the two signed prekeys, HKDF-SHA256 with the
// per-message IV as salt, and ChaCha20-Poly1305 with both public keys bound
// as associated data.
package message
