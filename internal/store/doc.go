// Package store persists device key material in an embedded bbolt file.
//
// Keys are written as OKP JWKs in the "keys" bucket and small opaque values
// in the "meta" bucket, both under "<purpose>:<userId>" names. A
// "metadata" bucket carries the schema version. When a passphrase is
// configured the private half of each key is sealed with scrypt and
// ChaCha20-Poly1305, bound to the record name.
package store
