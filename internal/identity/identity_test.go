package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	for _, raw := range []string{"abcd1234", "ABCD1234", "00000000", "zzzzzzzz"} {
		id, err := Parse(raw)
		require.NoError(t, err, raw)
		require.Len(t, id.String(), 8)
		require.Regexp(t, `^[a-z0-9]{8}$`, id.String())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"abc",
		"abcd12345",
		"abcd-123",
		"abcd 123",
		"abcd123é",
		" abcd1234",
		"abcd1234\n",
	} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrInvalidIdentity, raw)
	}
}

func TestProfileURL(t *testing.T) {
	id, err := Parse("AbCd1234")
	require.NoError(t, err)
	require.Equal(t, "https://tracker.ftgames.com/?id=abcd1234", id.ProfileURL("https://tracker.ftgames.com"))
	require.Equal(t, "https://tracker.ftgames.com/?id=abcd1234", id.ProfileURL("https://tracker.ftgames.com/"))
}
