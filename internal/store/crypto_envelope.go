package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"devicekeys/internal/domain"
	"devicekeys/internal/util/memzero"
)

const (
	// The current supported version of the sealed record format.
	envelopeFormatVersion = 1

	defaultScryptLogN = 15

	// Upper bound on the scrypt cost, both when sealing and when opening a
	// stored record.
	maxScryptLogN = 22
	maxScryptN    = 1 << maxScryptLogN
	scryptR    = 8
	scryptP    = 1
)

var errEnvelopeParams = errors.New("sealed record has unsupported scrypt parameters")

// blob is the JSON structure holding a sealed record and its KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from passphrase and seals raw into a JSON blob. The
// record name is bound as associated data so sealed values cannot be moved
// between names.
func seal(passphrase string, raw []byte, name string, logN int) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	N, r, p := 1<<logN, scryptR, scryptP
	key, err := scrypt.Key([]byte(passphrase), salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte // zero nonce; salt-bound key guarantees uniqueness
	ct := aead.Seal(nil, nonce[:], raw, envelopeAD(salt[:], name))

	return json.Marshal(blob{
		V:      envelopeFormatVersion,
		Salt:   salt[:],
		N:      N,
		R:      r,
		P:      p,
		Cipher: ct,
	})
}

// open reverses seal using a key derived from passphrase.
func open(passphrase string, b []byte, name string) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > envelopeFormatVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", bl.V)
	}
	if bl.N < 2 || bl.N > maxScryptN || bl.N&(bl.N-1) != 0 || bl.R != scryptR || bl.P != scryptP {
		return nil, fmt.Errorf("%w: N=%d r=%d p=%d", errEnvelopeParams, bl.N, bl.R, bl.P)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, envelopeAD(bl.Salt, name))
	if err != nil {
		return nil, domain.ErrWrongPassphrase
	}
	return pt, nil
}

func envelopeAD(salt []byte, name string) []byte {
	ad := make([]byte, 0, len(salt)+len(name))
	ad = append(ad, salt...)
	return append(ad, name...)
}
