package devkit_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
	"github.com/grasp-labs/ds-devkit-go-sdk/internal/fakes"
)

func newBox(t *testing.T) (*devkit.CipherBox, []byte) {
	t.Helper()
	raw, enc := fakes.NewKey(t)
	box, err := devkit.NewCipherBox(enc)
	require.NoError(t, err)
	return box, raw
}

func TestCipherBox_RoundTrip(t *testing.T) {
	t.Parallel()
	box, _ := newBox(t)

	for _, p := range []string{"", "a", "p@ssw0rd", strings.Repeat("x", 4096), "ünïcødé ✓"} {
		enc, err := box.Encrypt(p)
		require.NoError(t, err)
		assert.True(t, devkit.LooksEncrypted(enc))

		got, err := box.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestCipherBox_DecryptsServicePayload(t *testing.T) {
	t.Parallel()
	box, raw := newBox(t)

	got, err := box.Decrypt(fakes.MustSeal(t, raw, "from-the-server"))
	require.NoError(t, err)
	assert.Equal(t, "from-the-server", got)
}

func TestCipherBox_TamperDetection(t *testing.T) {
	t.Parallel()
	box, _ := newBox(t)

	enc, err := box.Encrypt("tamper me")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)

	for i := range raw {
		mut := append([]byte(nil), raw...)
		mut[i] ^= 0x01
		_, err := box.Decrypt(base64.StdEncoding.EncodeToString(mut))
		require.Error(t, err, "byte %d", i)
		assert.ErrorIs(t, err, devkit.ErrDecryption)
	}
}

func TestCipherBox_WrongKey(t *testing.T) {
	t.Parallel()
	a, _ := newBox(t)
	b, _ := newBox(t)

	enc, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	var de *devkit.DecryptionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, len(enc), de.EncodedLen)
	assert.NotContains(t, err.Error(), "secret")
}

func TestCipherBox_MalformedInput(t *testing.T) {
	t.Parallel()
	box, _ := newBox(t)

	_, err := box.Decrypt("not base64!!")
	var de *devkit.DecryptionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, -1, de.DecodedLen)

	short := base64.StdEncoding.EncodeToString(make([]byte, 27))
	_, err = box.Decrypt(short)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 27, de.DecodedLen)
}

func TestCipherBox_UniqueIVs(t *testing.T) {
	t.Parallel()
	box, _ := newBox(t)

	const n = 10_000
	seen := make(map[string]struct{}, n)
	for range n {
		enc, err := box.Encrypt("same plaintext")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(enc)
		require.NoError(t, err)
		seen[string(raw[:devkit.IVSize])] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestCipherBox_Fingerprint(t *testing.T) {
	t.Parallel()
	_, enc := fakes.NewKey(t)
	a, err := devkit.NewCipherBox(enc)
	require.NoError(t, err)
	b, err := devkit.NewCipherBox("  " + enc + "\n")
	require.NoError(t, err)
	c, _ := newBox(t)

	assert.Equal(t, a.KeyFingerprint(), b.KeyFingerprint())
	assert.NotEqual(t, a.KeyFingerprint(), c.KeyFingerprint())
	assert.NotContains(t, a.KeyFingerprint(), enc)
}

func TestNewCipherBox_RejectsBadKeys(t *testing.T) {
	t.Parallel()
	for _, k := range []string{"", "%%%", base64.StdEncoding.EncodeToString(make([]byte, 16))} {
		_, err := devkit.NewCipherBox(k)
		assert.ErrorIs(t, err, devkit.ErrConfiguration, "key %q", k)
	}
}

func TestLooksEncrypted(t *testing.T) {
	t.Parallel()
	box, _ := newBox(t)
	enc, err := box.Encrypt("x")
	require.NoError(t, err)

	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"42", false},
		{"true", false},
		{"hello world", false},
		{`{"a":1}`, false},
		{base64.StdEncoding.EncodeToString(make([]byte, 27)), false},
		{base64.StdEncoding.EncodeToString(make([]byte, 28)), true},
		{enc, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, devkit.LooksEncrypted(tc.in), "input %q", tc.in)
	}
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()
	k1, err := devkit.GenerateKey()
	require.NoError(t, err)
	k2, err := devkit.GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	raw, err := base64.StdEncoding.DecodeString(k1)
	require.NoError(t, err)
	assert.Len(t, raw, devkit.KeySize)

	_, err = devkit.NewCipherBox(k1)
	assert.NoError(t, err)
}
