// Package crypto exposes the minimal primitives used by devicekeys.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Payload key derivation and AEAD sealing (DerivePayloadKey,
//     SealPayload, OpenPayload)
//   - Base64 codec, lenient and strict (Encode, Decode, DecodeStrict)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key material uses the fixed-size array types defined in internal/domain
// to avoid accidental reallocations. Decode is lenient and must only be
// used on optional or untrusted network fields; stored records go
// through DecodeStrict.
package crypto
