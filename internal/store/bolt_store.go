package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/util/memzero"
)

const (
	keysBucket     = "keys"
	metaBucket     = "meta"
	metadataBucket = "metadata"
	versionKey     = "version"

	schemaVersion = 1

	// DefaultOpenTimeout bounds how long Open waits for the file lock.
	DefaultOpenTimeout = 2 * time.Second
)

// Options configures a BoltKeyStore.
type Options struct {
	// Passphrase, when set, seals the private half of every key record.
	Passphrase string
	// Timeout is the longest Open waits for another process to release
	// the database. Zero means DefaultOpenTimeout.
	Timeout time.Duration
	// ScryptLogN is log2 of the scrypt cost used when sealing. Zero means
	// the default.
	ScryptLogN int
	Logger     zerolog.Logger
}

// BoltKeyStore is a domain.KeyStore backed by a single bbolt file.
type BoltKeyStore struct {
	db         *bolt.DB
	passphrase string
	logN       int
	log        zerolog.Logger
	closed     atomic.Bool
}

var _ domain.KeyStore = (*BoltKeyStore)(nil)

// Open creates or loads the store at path.
func Open(path string, opts Options) (*BoltKeyStore, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOpenTimeout
	}
	if opts.ScryptLogN == 0 {
		opts.ScryptLogN = defaultScryptLogN
	}
	if opts.ScryptLogN < 1 || opts.ScryptLogN > maxScryptLogN {
		return nil, fmt.Errorf("store: scrypt log2(N) %d out of range", opts.ScryptLogN)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrStorageUnavailable, path, err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		for _, name := range []string{keysBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}

		if b := bkt.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != schemaVersion {
				return fmt.Errorf("store: incompatible version: %v", b)
			}
			return nil
		}
		return bkt.Put([]byte(versionKey), []byte{schemaVersion})
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	s := &BoltKeyStore{
		db:         db,
		passphrase: opts.Passphrase,
		logN:       opts.ScryptLogN,
		log:        opts.Logger.With().Str("component", "keystore").Logger(),
	}
	s.log.Debug().Str("path", path).Bool("sealed", s.passphrase != "").Msg("Opened key store")
	return s, nil
}

// Close flushes and releases the database. Later calls fail with
// ErrStorageUnavailable.
func (s *BoltKeyStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Sync(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to sync key store before close")
	}
	return s.db.Close()
}

// Put exports key and upserts it under name.
func (s *BoltKeyStore) Put(ctx context.Context, name string, key domain.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	raw, err := s.encodeKey(name, key)
	if err != nil {
		return err
	}
	err = s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(keysBucket)).Put([]byte(name), raw)
	})
	if err == nil {
		s.logger(ctx).Debug().Str("record", name).Stringer("kind", key.Kind()).Msg("Stored key")
	}
	return err
}

// Get returns the key stored under name, or nil if there is none.
func (s *BoltKeyStore) Get(ctx context.Context, name string, kind domain.KeyKind) (domain.Key, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.view(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(keysBucket)).Get([]byte(name)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return s.decodeKey(name, raw, kind)
}

// Delete removes every named record from both buckets in one transaction.
// Missing names are ignored.
func (s *BoltKeyStore) Delete(ctx context.Context, names []string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	err := s.update(func(tx *bolt.Tx) error {
		keys, meta := tx.Bucket([]byte(keysBucket)), tx.Bucket([]byte(metaBucket))
		for _, n := range names {
			if err := keys.Delete([]byte(n)); err != nil {
				return err
			}
			if err := meta.Delete([]byte(n)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.logger(ctx).Debug().Int("records", len(names)).Msg("Deleted records")
	}
	return err
}

// PutMeta upserts an opaque value under name.
func (s *BoltKeyStore) PutMeta(ctx context.Context, name string, value domain.MetaValue) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	raw, err := encodeMeta(name, value)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Put([]byte(name), raw)
	})
}

// GetMeta returns the value stored under name, or nil if there is none.
func (s *BoltKeyStore) GetMeta(ctx context.Context, name string) (*domain.MetaValue, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.view(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(metaBucket)).Get([]byte(name)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeMeta(name, raw)
}

// Update runs fn inside one write transaction. If fn returns an error
// nothing it wrote is kept.
func (s *BoltKeyStore) Update(ctx context.Context, fn func(tx domain.KeyStoreTx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&boltTx{s: s, tx: tx})
	})
}

type boltTx struct {
	s  *BoltKeyStore
	tx *bolt.Tx
}

func (t *boltTx) Put(name string, key domain.Key) error {
	raw, err := t.s.encodeKey(name, key)
	if err != nil {
		return err
	}
	return t.tx.Bucket([]byte(keysBucket)).Put([]byte(name), raw)
}

func (t *boltTx) PutMeta(name string, value domain.MetaValue) error {
	raw, err := encodeMeta(name, value)
	if err != nil {
		return err
	}
	return t.tx.Bucket([]byte(metaBucket)).Put([]byte(name), raw)
}

func (s *BoltKeyStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return fmt.Errorf("%w: store is closed", domain.ErrStorageUnavailable)
	}
	return nil
}

func (s *BoltKeyStore) view(fn func(tx *bolt.Tx) error) error {
	if err := s.db.View(fn); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// update returns errors from fn unchanged. Failures in bbolt itself, such as
// a failed commit, are storage failures.
func (s *BoltKeyStore) update(fn func(tx *bolt.Tx) error) error {
	var inner error
	err := s.db.Update(func(tx *bolt.Tx) error {
		inner = fn(tx)
		return inner
	})
	if err == nil {
		return nil
	}
	if inner != nil && err == inner {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func (s *BoltKeyStore) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

func (s *BoltKeyStore) encodeKey(name string, key domain.Key) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key for %q", domain.ErrKeyExport, name)
	}
	j, err := exportJWK(key)
	if err != nil {
		return nil, err
	}
	j.Name = name

	if s.passphrase != "" && j.D != "" {
		d, err := decodeField(j.D, 32, "d")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrKeyExport, err)
		}
		sealed, err := seal(s.passphrase, d, name, s.logN)
		memzero.Zero(d)
		if err != nil {
			return nil, fmt.Errorf("%w: seal %q: %w", domain.ErrKeyExport, name, err)
		}
		j.D, j.DSealed = "", sealed
	}

	raw, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyExport, err)
	}
	return raw, nil
}

func (s *BoltKeyStore) decodeKey(name string, raw []byte, kind domain.KeyKind) (domain.Key, error) {
	var j jwk
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: record %q: %w", domain.ErrKeyImport, name, err)
	}
	if j.Name != "" && j.Name != name {
		return nil, fmt.Errorf("%w: record %q claims name %q", domain.ErrKeyImport, name, j.Name)
	}

	// A sealed record read as a public kind is rejected by importJWK
	// without being opened.
	if len(j.DSealed) > 0 && kind.Private() {
		if s.passphrase == "" {
			return nil, fmt.Errorf("%w: record %q is sealed: %w", domain.ErrKeyImport, name, domain.ErrWrongPassphrase)
		}
		d, err := open(s.passphrase, j.DSealed, name)
		if err != nil {
			return nil, fmt.Errorf("%w: record %q: %w", domain.ErrKeyImport, name, err)
		}
		j.D = crypto.EncodeURL(d)
		memzero.Zero(d)
	}

	return importJWK(j, kind)
}
