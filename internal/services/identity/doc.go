// Package identity manages the device key bundle of a local user.
//
// A bundle is an Ed25519 identity key pair, an X25519 signed prekey pair,
// the identity signature over the prekey, and two random ids. Generate
// writes all of it in one store transaction; Load reads it back with any
// missing record left nil; Clear removes it on logout.
package identity
