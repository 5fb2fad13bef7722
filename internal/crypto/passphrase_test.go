package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	vaulterrors "github.com/vaultik/vaultik/internal/errors"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	identity, err := GenerateIdentity()
	require.NoError(t, err)

	blob, err := WrapIdentity(identity, "correct horse battery staple")
	require.NoError(t, err)
	// The blob is armored text, safe to store and inspect.
	require.Contains(t, string(blob), "BEGIN AGE ENCRYPTED FILE")
	// The private half never appears in cleartext.
	require.NotContains(t, string(blob), identity.String())

	got, err := UnwrapIdentity(blob, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, identity.String(), got.String())
	require.Equal(t, identity.Recipient().String(), got.Recipient().String())
}

func TestUnwrapWrongPassphrase(t *testing.T) {
	identity, err := GenerateIdentity()
	require.NoError(t, err)

	blob, err := WrapIdentity(identity, "right")
	require.NoError(t, err)

	_, err = UnwrapIdentity(blob, "wrong")
	require.ErrorIs(t, err, vaulterrors.ErrWrongPassphrase)
}

func TestUnwrapGarbage(t *testing.T) {
	_, err := UnwrapIdentity([]byte("not an age file at all"), "any")
	require.Error(t, err)
	require.NotErrorIs(t, err, vaulterrors.ErrWrongPassphrase)
}
