package domain

import (
	interfaces "devicekeys/internal/domain/interfaces"
	types "devicekeys/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID              = types.UserID
	Fingerprint         = types.Fingerprint
	Purpose             = types.Purpose
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	KeyKind             = types.KeyKind
	Key                 = types.Key
	SigningPrivateKey   = types.SigningPrivateKey
	SigningPublicKey    = types.SigningPublicKey
	AgreementPrivateKey = types.AgreementPrivateKey
	AgreementPublicKey  = types.AgreementPublicKey
	MetaKind            = types.MetaKind
	MetaValue           = types.MetaValue
	PublicBundle        = types.PublicBundle
	LoadedBundle        = types.LoadedBundle
	IncomingMessage     = types.IncomingMessage
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyStore        = interfaces.KeyStore
	KeyStoreTx      = interfaces.KeyStoreTx
	IdentityService = interfaces.IdentityService
	PrekeyVerifier  = interfaces.PrekeyVerifier
	PayloadCipher   = interfaces.PayloadCipher
	DirectoryClient = interfaces.DirectoryClient
)

const (
	KindUnknown          = types.KindUnknown
	KindSigningPrivate   = types.KindSigningPrivate
	KindSigningPublic    = types.KindSigningPublic
	KindAgreementPrivate = types.KindAgreementPrivate
	KindAgreementPublic  = types.KindAgreementPublic

	MetaBytes = types.MetaBytes
	MetaUint  = types.MetaUint

	PurposeIdentityPrivate     = types.PurposeIdentityPrivate
	PurposeIdentityPublic      = types.PurposeIdentityPublic
	PurposeSignedPrekeyPrivate = types.PurposeSignedPrekeyPrivate
	PurposeSignedPrekeyPublic  = types.PurposeSignedPrekeyPublic
	PurposeSignedPrekeySig     = types.PurposeSignedPrekeySig
	PurposeSignedPrekeyID      = types.PurposeSignedPrekeyID
	PurposeRegistrationID      = types.PurposeRegistrationID
)

// Sentinel errors, see types/errors.go.
var (
	ErrStorageUnavailable = types.ErrStorageUnavailable
	ErrKeyImport          = types.ErrKeyImport
	ErrKeyExport          = types.ErrKeyExport
	ErrKeyGen             = types.ErrKeyGen
	ErrWrongPassphrase    = types.ErrWrongPassphrase
	ErrInvalidUserID      = types.ErrInvalidUserID
	ErrNoIdentity         = types.ErrNoIdentity
	ErrMalformedMessage   = types.ErrMalformedMessage
	ErrNoAgreementKey     = types.ErrNoAgreementKey
	ErrDecryptFailed      = types.ErrDecryptFailed
	ErrBundleNotFound     = types.ErrBundleNotFound
)

// Helpers re-exported from the types subpackage.
var (
	RecordName  = types.RecordName
	RecordNames = types.RecordNames
	BytesValue  = types.BytesValue
	UintValue   = types.UintValue
)
