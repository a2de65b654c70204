package token_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attendance/internal/capability"
	"attendance/internal/token"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	records   []token.Record
	insertErr error
}

func (f *fakeRepo) InsertToken(_ context.Context, rec token.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepo) CountTokens(context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func newKeyPair(t *testing.T) *token.KeyPair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &token.KeyPair{Private: priv, Public: &priv.PublicKey}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	repo := &fakeRepo{}
	svc := token.NewService(repo, newKeyPair(t))

	rec, signed, err := svc.Issue(context.Background(), "front desk tablet", capability.Viewer, nil, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.Len(t, repo.records, 1)
	require.Equal(t, rec.UUID, repo.records[0].UUID)
	require.Equal(t, capability.Viewer, repo.records[0].Cap)
	require.Equal(t, "front desk tablet", repo.records[0].Description)
	require.Nil(t, repo.records[0].NotBefore)

	cap, err := svc.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, capability.Viewer, cap)
}

func TestVerifyExpired(t *testing.T) {
	svc := token.NewService(&fakeRepo{}, newKeyPair(t))

	_, signed, err := svc.Issue(context.Background(), "stale", capability.Collector, nil, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	require.ErrorIs(t, err, token.ErrExpired)
}

func TestVerifyNotYetValid(t *testing.T) {
	svc := token.NewService(&fakeRepo{}, newKeyPair(t))

	nbf := time.Now().Add(time.Hour)
	_, signed, err := svc.Issue(context.Background(), "future", capability.Collector, &nbf, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	require.ErrorIs(t, err, token.ErrNotYetValid)
}

func TestVerifyWrongKey(t *testing.T) {
	issuer := token.NewService(&fakeRepo{}, newKeyPair(t))
	verifier := token.NewService(&fakeRepo{}, newKeyPair(t))

	_, signed, err := issuer.Issue(context.Background(), "other key", capability.Administrator, nil, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	require.ErrorIs(t, err, token.ErrSignature)
}

func TestVerifyGarbage(t *testing.T) {
	svc := token.NewService(&fakeRepo{}, newKeyPair(t))
	_, err := svc.Verify("not.a.token")
	require.ErrorIs(t, err, token.ErrSignature)
}

func TestIssuePersistFailure(t *testing.T) {
	repo := &fakeRepo{insertErr: errors.New("db down")}
	svc := token.NewService(repo, newKeyPair(t))

	_, signed, err := svc.Issue(context.Background(), "x", capability.Viewer, nil, time.Now().Add(time.Hour))
	require.Error(t, err)
	require.Empty(t, signed, "no signed token may exist without its record")
}

func TestIssueSignFailureLeavesNoRecord(t *testing.T) {
	repo := &fakeRepo{}
	// A P-384 key cannot produce an ES256 signature.
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	svc := token.NewService(repo, &token.KeyPair{Private: priv, Public: &priv.PublicKey})

	_, signed, issueErr := svc.Issue(context.Background(), "x", capability.Viewer, nil, time.Now().Add(time.Hour))
	require.Error(t, issueErr)
	require.Empty(t, signed)
	require.Empty(t, repo.records, "an unsignable token must not count toward the stored total")
}

func TestLoadKeyPair(t *testing.T) {
	dir := t.TempDir()
	privFile := filepath.Join(dir, "private.pem")
	pubFile := filepath.Join(dir, "public.pem")

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(privFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}), 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubFile, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644))

	keys, err := token.LoadKeyPair(privFile, pubFile)
	require.NoError(t, err)
	require.NotNil(t, keys.Private)
	require.NotNil(t, keys.Public)
}

func TestLoadKeyPairRejectsBadMaterial(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a key"), 0o600))

	_, err := token.LoadKeyPair(bad, bad)
	require.Error(t, err)

	_, err = token.LoadKeyPair(filepath.Join(dir, "missing.pem"), bad)
	require.Error(t, err)
}
