package interfaces

import (
	"context"

	domaintypes "devicekeys/internal/domain/types"
)

// KeyStoreTx writes records inside a single atomic store transaction.
type KeyStoreTx interface {
	Put(name string, key domaintypes.Key) error
	PutMeta(name string, value domaintypes.MetaValue) error
}

// KeyStore persists namespaced key material and small metadata values.
//
// Get and GetMeta return a nil result with a nil error when the record is
// absent.
type KeyStore interface {
	Put(ctx context.Context, name string, key domaintypes.Key) error
	Get(ctx context.Context, name string, kind domaintypes.KeyKind) (domaintypes.Key, error)
	Delete(ctx context.Context, names []string) error

	PutMeta(ctx context.Context, name string, value domaintypes.MetaValue) error
	GetMeta(ctx context.Context, name string) (*domaintypes.MetaValue, error)

	Update(ctx context.Context, fn func(tx KeyStoreTx) error) error
	Close() error
}
