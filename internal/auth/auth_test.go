package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = KeyParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestOwnerKeyRoundTrip(t *testing.T) {
	hash, err := HashOwnerKey("hunter2", cheapParams)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := CheckOwnerKey("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckOwnerKey("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashOwnerKey("hunter2", cheapParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")
}

func TestCheckOwnerKeyBadHash(t *testing.T) {
	_, err := CheckOwnerKey("x", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = CheckOwnerKey("x", "$argon2id$v=1$m=1,t=1,p=1$AAAA$AAAA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestSeatToken(t *testing.T) {
	signer, err := NewSigner(time.Minute)
	require.NoError(t, err)

	tok, err := signer.IssueSeat("table1", "alice")
	require.NoError(t, err)

	room, player, err := signer.VerifySeat(tok)
	require.NoError(t, err)
	assert.Equal(t, "table1", room)
	assert.Equal(t, "alice", player)

	other, err := NewSigner(time.Minute)
	require.NoError(t, err)
	_, _, err = other.VerifySeat(tok)
	assert.Error(t, err, "signed by another key")

	_, _, err = signer.VerifySeat(tok + "x")
	assert.Error(t, err)
}

func TestSeatTokenExpiry(t *testing.T) {
	signer, err := NewSigner(time.Minute)
	require.NoError(t, err)
	issued := time.Now()
	signer.now = func() time.Time { return issued }

	tok, err := signer.IssueSeat("table1", "alice")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, _, err = signer.VerifySeat(tok)
	assert.Error(t, err)

	forever, err := NewSigner(0)
	require.NoError(t, err)
	tok, err = forever.IssueSeat("table1", "bob")
	require.NoError(t, err)
	_, player, err := forever.VerifySeat(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", player)
}
