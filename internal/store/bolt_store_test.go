package store_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/store"
)

func openStore(t *testing.T, path, pass string) *store.BoltKeyStore {
	t.Helper()
	s, err := store.Open(path, store.Options{Passphrase: pass, ScryptLogN: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newKeys(t *testing.T) (domain.SigningPrivateKey, domain.AgreementPrivateKey) {
	t.Helper()
	edPriv, _, err := crypto.GenerateEd25519(rand.Reader)
	require.NoError(t, err)
	xPriv, xPub, err := crypto.GenerateX25519(rand.Reader)
	require.NoError(t, err)
	return domain.SigningPrivateKey{Priv: edPriv}, domain.AgreementPrivateKey{Priv: xPriv, Pub: xPub}
}

func TestKeys_PutGet_OK(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	sig, agr := newKeys(t)

	cases := []struct {
		name string
		key  domain.Key
	}{
		{"identity_private:alice", sig},
		{"identity_public:alice", sig.Public()},
		{"signed_prekey_private:alice", agr},
		{"signed_prekey_public:alice", agr.Public()},
	}
	for _, c := range cases {
		require.NoError(t, s.Put(ctx, c.name, c.key))
	}
	for _, c := range cases {
		got, err := s.Get(ctx, c.name, c.key.Kind())
		require.NoError(t, err, c.name)
		assert.Equal(t, c.key, got, c.name)
	}
}

func TestKeys_GetMissing_ReturnsNil(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")

	k, err := s.Get(context.Background(), "identity_private:nobody", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.Nil(t, k)

	m, err := s.GetMeta(context.Background(), "registration_id:nobody")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestKeys_WrongKind_ImportFails(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	sig, _ := newKeys(t)
	require.NoError(t, s.Put(ctx, "identity_public:alice", sig.Public()))

	_, err := s.Get(ctx, "identity_public:alice", domain.KindAgreementPublic)
	require.ErrorIs(t, err, domain.ErrKeyImport)

	// Private kind requested for a public record: no "d".
	_, err = s.Get(ctx, "identity_public:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, domain.ErrKeyImport)
}

// rewriteRecord edits the raw JSON of a key record in a closed store.
func rewriteRecord(t *testing.T, path, name string, edit func(rec map[string]any)) {
	t.Helper()
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("keys"))
		var rec map[string]any
		if err := json.Unmarshal(b.Get([]byte(name)), &rec); err != nil {
			return err
		}
		edit(rec)
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), raw)
	}))
}

func TestKeys_PrivateRecordAsPublicKind_Fails(t *testing.T) {
	ctx := context.Background()
	sig, agr := newKeys(t)

	for _, pass := range []string{"", "correct"} {
		s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), pass)
		require.NoError(t, s.Put(ctx, "signed_prekey_private:alice", agr))
		require.NoError(t, s.Put(ctx, "identity_private:alice", sig))

		_, err := s.Get(ctx, "signed_prekey_private:alice", domain.KindAgreementPublic)
		require.ErrorIs(t, err, domain.ErrKeyImport, "passphrase %q", pass)
		_, err = s.Get(ctx, "identity_private:alice", domain.KindSigningPublic)
		require.ErrorIs(t, err, domain.ErrKeyImport, "passphrase %q", pass)
	}
}

func TestKeys_KeyOpsMismatch_Fails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	sig, agr := newKeys(t)

	s, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Put(ctx, "signed_prekey_public:alice", agr.Public()))
	require.NoError(t, s.Close())

	rewriteRecord(t, path, "identity_private:alice", func(rec map[string]any) {
		rec["key_ops"] = []string{"sign", "verify"}
	})
	rewriteRecord(t, path, "signed_prekey_public:alice", func(rec map[string]any) {
		rec["key_ops"] = []string{"deriveBits"}
	})

	s = openStore(t, path, "")
	_, err = s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, domain.ErrKeyImport)
	_, err = s.Get(ctx, "signed_prekey_public:alice", domain.KindAgreementPublic)
	require.ErrorIs(t, err, domain.ErrKeyImport)
}

func TestMeta_PutGet_OK(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")

	require.NoError(t, s.PutMeta(ctx, "signed_prekey_sig:alice", domain.BytesValue([]byte{1, 2, 3})))
	require.NoError(t, s.PutMeta(ctx, "signed_prekey_id:alice", domain.UintValue(4242)))
	require.NoError(t, s.PutMeta(ctx, "empty:alice", domain.BytesValue(nil)))

	v, err := s.GetMeta(ctx, "signed_prekey_sig:alice")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, domain.MetaBytes, v.Kind)
	assert.Equal(t, []byte{1, 2, 3}, v.Bytes)

	v, err = s.GetMeta(ctx, "signed_prekey_id:alice")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, domain.MetaUint, v.Kind)
	assert.Equal(t, uint64(4242), v.Uint)

	v, err = s.GetMeta(ctx, "empty:alice")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Empty(t, v.Bytes)

	err = s.PutMeta(ctx, "bad:alice", domain.MetaValue{})
	require.ErrorIs(t, err, domain.ErrKeyExport)
}

func TestDelete_RemovesBothBuckets(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	sig, _ := newKeys(t)

	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.PutMeta(ctx, "registration_id:alice", domain.UintValue(7)))
	require.NoError(t, s.Put(ctx, "identity_private:bob", sig))

	require.NoError(t, s.Delete(ctx, []string{"identity_private:alice", "registration_id:alice", "missing:alice"}))

	k, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.Nil(t, k)
	m, err := s.GetMeta(ctx, "registration_id:alice")
	require.NoError(t, err)
	assert.Nil(t, m)

	k, err = s.Get(ctx, "identity_private:bob", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.NotNil(t, k)
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	sig, _ := newKeys(t)

	err := s.Update(ctx, func(tx domain.KeyStoreTx) error {
		require.NoError(t, tx.Put("identity_private:alice", sig))
		require.NoError(t, tx.PutMeta("registration_id:alice", domain.UintValue(1)))
		return domain.ErrKeyGen
	})
	require.ErrorIs(t, err, domain.ErrKeyGen)

	k, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.Nil(t, k)
	m, err := s.GetMeta(ctx, "registration_id:alice")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "keys.db")
	sig, _ := newKeys(t)

	s, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	s = openStore(t, path, "")
	got, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestOpen_LockedFile_TimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	openStore(t, path, "")

	_, err := store.Open(path, store.Options{Timeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestSealed_PutGet_OK(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	sig, agr := newKeys(t)

	s := openStore(t, path, "correct horse")
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Put(ctx, "signed_prekey_private:alice", agr))
	require.NoError(t, s.Put(ctx, "signed_prekey_public:alice", agr.Public()))

	got, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	got, err = s.Get(ctx, "signed_prekey_private:alice", domain.KindAgreementPrivate)
	require.NoError(t, err)
	assert.Equal(t, agr, got)
}

func TestSealed_WrongPassphrase_Fails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	sig, agr := newKeys(t)

	s, err := store.Open(path, store.Options{Passphrase: "correct", ScryptLogN: 10})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Put(ctx, "signed_prekey_public:alice", agr.Public()))
	require.NoError(t, s.Close())

	s = openStore(t, path, "wrong")
	_, err = s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, domain.ErrKeyImport)
	require.ErrorIs(t, err, domain.ErrWrongPassphrase)

	// Public records are never sealed.
	pub, err := s.Get(ctx, "signed_prekey_public:alice", domain.KindAgreementPublic)
	require.NoError(t, err)
	assert.Equal(t, agr.Public(), pub)
}

func TestSealed_NoPassphrase_Fails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	sig, _ := newKeys(t)

	s, err := store.Open(path, store.Options{Passphrase: "correct", ScryptLogN: 10})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Close())

	s = openStore(t, path, "")
	_, err = s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, domain.ErrWrongPassphrase)
}

func TestStore_CancelledContext(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	sig, _ := newKeys(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Put(ctx, "identity_private:alice", sig), context.Canceled)
	_, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.Delete(ctx, []string{"identity_private:alice"}), context.Canceled)
}

func TestSealed_ExpensiveParams_RejectedUpFront(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	sig, _ := newKeys(t)

	s, err := store.Open(path, store.Options{Passphrase: "correct", ScryptLogN: 10})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "identity_private:alice", sig))
	require.NoError(t, s.Close())

	cases := []struct {
		name    string
		n, r, p float64
	}{
		{"huge N", 1 << 30, 8, 1},
		{"large r", 1 << 20, 16, 1},
		{"large p", 1 << 10, 8, 64},
		{"N not a power of two", 1000, 8, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rewriteRecord(t, path, "identity_private:alice", func(rec map[string]any) {
				sealed := rec["d_sealed"].(map[string]any)
				sealed["scrypt_N"], sealed["scrypt_r"], sealed["scrypt_p"] = c.n, c.r, c.p
			})

			s := openStore(t, path, "correct")
			start := time.Now()
			_, err := s.Get(ctx, "identity_private:alice", domain.KindSigningPrivate)
			require.ErrorIs(t, err, domain.ErrKeyImport)
			assert.NotErrorIs(t, err, domain.ErrWrongPassphrase)
			assert.Less(t, time.Since(start), 500*time.Millisecond)
			require.NoError(t, s.Close())
		})
	}
}
