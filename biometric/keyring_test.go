package biometric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/visecure/securecore/internal/shared"
	"github.com/zalando/go-keyring"
)

func TestKeyringAuthenticator_RoundTrip(t *testing.T) {
	keyring.MockInit()
	a := NewKeyringAuthenticator()
	ctx := context.Background()

	require.True(t, a.Available(ctx))

	challenge := shared.GenerateRandByteArray(challengeSize)
	id, err := a.Create(ctx, CreateRequest{
		Challenge:               challenge,
		UserHandle:              shared.GenerateRandByteArray(userHandleSize),
		RequireUserVerification: true,
	})
	require.NoError(t, err)
	require.Len(t, id, 16)

	got, err := a.Assert(ctx, AssertRequest{
		Challenge:            shared.GenerateRandByteArray(challengeSize),
		AllowedCredentialIDs: [][]byte{id},
	})
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestKeyringAuthenticator_AssertUnknownCredential(t *testing.T) {
	keyring.MockInit()
	a := NewKeyringAuthenticator()
	ctx := context.Background()

	_, err := a.Assert(ctx, AssertRequest{
		Challenge:            shared.GenerateRandByteArray(challengeSize),
		AllowedCredentialIDs: [][]byte{[]byte("never-registered")},
	})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestKeyringAuthenticator_Drop(t *testing.T) {
	keyring.MockInit()
	a := NewKeyringAuthenticator()
	ctx := context.Background()

	id, err := a.Create(ctx, CreateRequest{Challenge: shared.GenerateRandByteArray(challengeSize)})
	require.NoError(t, err)

	require.NoError(t, a.Drop(id))

	_, err = a.Assert(ctx, AssertRequest{
		Challenge:            shared.GenerateRandByteArray(challengeSize),
		AllowedCredentialIDs: [][]byte{id},
	})
	require.ErrorIs(t, err, ErrNotConfigured)

	// Dropping again is not an error.
	require.NoError(t, a.Drop(id))
}

func TestKeyringAuthenticator_CancelledContext(t *testing.T) {
	keyring.MockInit()
	a := NewKeyringAuthenticator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Create(ctx, CreateRequest{Challenge: shared.GenerateRandByteArray(challengeSize)})
	require.ErrorIs(t, err, ErrAborted)

	_, err = a.Assert(ctx, AssertRequest{Challenge: shared.GenerateRandByteArray(challengeSize)})
	require.ErrorIs(t, err, ErrAborted)

	require.False(t, a.Available(ctx))
}
