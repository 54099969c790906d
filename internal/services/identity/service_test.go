package identity_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
	"devicekeys/internal/metrics"
	"devicekeys/internal/services/identity"
	"devicekeys/internal/store"
)

func openStore(t *testing.T, path, pass string) *store.BoltKeyStore {
	t.Helper()
	s, err := store.Open(path, store.Options{Passphrase: pass, ScryptLogN: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newService(t *testing.T, opts ...identity.Option) (*identity.Service, *store.BoltKeyStore) {
	t.Helper()
	ks := openStore(t, filepath.Join(t.TempDir(), "keys.db"), "")
	return identity.New(ks, opts...), ks
}

func requireSignatureValid(t *testing.T, pb domain.PublicBundle) {
	t.Helper()
	idPub, err := crypto.DecodeStrict(pb.IdentityKeyPub)
	require.NoError(t, err)
	require.Len(t, idPub, 32)
	spk, err := crypto.DecodeStrict(pb.SignedPrekeyPub)
	require.NoError(t, err)
	require.Len(t, spk, 32)
	sig, err := crypto.DecodeStrict(pb.SignedPrekeySig)
	require.NoError(t, err)

	var pub domain.Ed25519Public
	copy(pub[:], idPub)
	require.True(t, crypto.VerifyEd25519(pub, spk, sig))
}

func TestGenerate_BundleIntegrity(t *testing.T) {
	svc, _ := newService(t)

	pb, err := svc.Generate(context.Background(), "alice")
	require.NoError(t, err)
	requireSignatureValid(t, pb)
	assert.NotZero(t, pb.SignedPrekeyID)
	assert.NotZero(t, pb.RegistrationID)
}

func TestGenerate_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")

	ks, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	pb, err := identity.New(ks).Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ks.Close())

	loaded, err := identity.New(openStore(t, path, "")).Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, loaded.Complete())

	got, ok := loaded.Public()
	require.True(t, ok)
	assert.Equal(t, pb, got)
	assert.Equal(t, loaded.IdentityPrivate.Public(), *loaded.IdentityPublic)
	assert.Equal(t, loaded.SignedPrekeyPrivate.Public(), *loaded.SignedPrekeyPublic)
}

func TestGenerate_ReplacesBothKeys(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.IdentityKeyPub, second.IdentityKeyPub)
	assert.NotEqual(t, first.SignedPrekeyPub, second.SignedPrekeyPub)

	loaded, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	got, ok := loaded.Public()
	require.True(t, ok)
	assert.Equal(t, second, got)
	requireSignatureValid(t, got)
}

func TestLoad_Uninitialized_Empty(t *testing.T) {
	svc, _ := newService(t)

	loaded, err := svc.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, loaded.Empty())
	assert.False(t, loaded.Complete())
	_, ok := loaded.Public()
	assert.False(t, ok)
}

func TestLoad_PartialBundle(t *testing.T) {
	ctx := context.Background()
	svc, ks := newService(t)

	_, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ks.Delete(ctx, []string{domain.RecordName(domain.PurposeSignedPrekeySig, "alice")}))

	loaded, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, loaded.Complete())
	assert.False(t, loaded.Empty())
	assert.Nil(t, loaded.SignedPrekeySig)
	assert.Empty(t, loaded.SignedPrekeySigB64)
	assert.NotNil(t, loaded.IdentityPrivate)
}

func TestLoad_WrongMetaKind_Fails(t *testing.T) {
	ctx := context.Background()
	svc, ks := newService(t)

	_, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ks.PutMeta(ctx, domain.RecordName(domain.PurposeRegistrationID, "alice"), domain.UintValue(1<<20)))

	_, err = svc.Load(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrKeyImport)
}

func TestClear_RemovesEveryRecord(t *testing.T) {
	ctx := context.Background()
	svc, ks := newService(t)

	_, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "alice"))

	for _, name := range domain.RecordNames("alice") {
		k, err := ks.Get(ctx, name, domain.KindSigningPublic)
		require.NoError(t, err)
		assert.Nil(t, k, name)
		m, err := ks.GetMeta(ctx, name)
		require.NoError(t, err)
		assert.Nil(t, m, name)
	}

	loaded, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, loaded.Empty())

	_, err = svc.Fingerprint(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrNoIdentity)

	// Clearing an uninitialized user is fine.
	require.NoError(t, svc.Clear(ctx, "alice"))
}

func TestClear_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)
	bob, err := svc.Generate(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "alice"))

	loaded, err := svc.Load(ctx, "bob")
	require.NoError(t, err)
	require.True(t, loaded.Complete())
	got, _ := loaded.Public()
	assert.Equal(t, bob, got)
}

func TestGenerate_Concurrent_OneConsistentBundle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.Generate(ctx, "alice")
			return err
		})
		g.Go(func() error {
			loaded, err := svc.Load(ctx, "alice")
			if err != nil {
				return err
			}
			if !loaded.Empty() && !loaded.Complete() {
				return errors.New("observed a half-written bundle")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	loaded, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	pb, ok := loaded.Public()
	require.True(t, ok)
	requireSignatureValid(t, pb)
}

func TestGenerate_EntropyFailure(t *testing.T) {
	svc, ks := newService(t, identity.WithRand(iotest.ErrReader(errors.New("no entropy"))))

	_, err := svc.Generate(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrKeyGen)

	loaded, err := identity.New(ks).Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, loaded.Empty())
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestGenerate_ZeroEntropy_NoZeroIDs(t *testing.T) {
	svc, _ := newService(t, identity.WithRand(zeroReader{}))

	_, err := svc.Generate(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrKeyGen)
}

func TestInvalidUserID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Generate(ctx, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidUserID)
	_, err = svc.Load(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidUserID)
	require.ErrorIs(t, svc.Clear(ctx, ""), domain.ErrInvalidUserID)
	_, err = svc.Fingerprint(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestFingerprint_MatchesIdentityKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	pb, err := svc.Generate(ctx, "alice")
	require.NoError(t, err)

	fp, err := svc.Fingerprint(ctx, "alice")
	require.NoError(t, err)
	raw, err := crypto.DecodeStrict(pb.IdentityKeyPub)
	require.NoError(t, err)
	assert.Equal(t, crypto.Fingerprint(raw), fp.String())
	assert.Len(t, fp.String(), 20)
}

func TestSealedStore_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")

	ks, err := store.Open(path, store.Options{Passphrase: "correct", ScryptLogN: 10})
	require.NoError(t, err)
	_, err = identity.New(ks).Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, ks.Close())

	_, err = identity.New(openStore(t, path, "wrong")).Load(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrKeyImport)
	require.ErrorIs(t, err, domain.ErrWrongPassphrase)
}

func TestMetrics_GenerateAndClear(t *testing.T) {
	ctx := context.Background()
	m, err := metrics.New(nil)
	require.NoError(t, err)
	svc, _ := newService(t, identity.WithMetrics(m))

	_, err = svc.Generate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "alice"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityGenerated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityCleared))
}

func TestCancelledContext(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
	_, err = svc.Load(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
}
