package vault

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("not-hex")
	assert.Error(t, err)

	_, err = New("abcd")
	assert.Error(t, err)

	_, err = New(testKey)
	assert.NoError(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0x42}, 1<<16),
		[]byte{0x00, 0xff, 0x00, 0xff},
	}

	for _, p := range payloads {
		ciphertext, iv, tag, err := v.Seal(p)
		require.NoError(t, err)
		assert.Len(t, iv, nonceSize*2)
		assert.Len(t, tag, tagSize*2)
		if len(p) > 0 {
			assert.NotEqual(t, p, ciphertext)
		}

		plain, err := v.Open(ciphertext, iv, tag)
		require.NoError(t, err)
		assert.Equal(t, p, plain)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	_, iv1, _, err := v.Seal([]byte("same input"))
	require.NoError(t, err)
	_, iv2, _, err := v.Seal([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, iv1, iv2)
}

func TestOpenDetectsTampering(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ciphertext, iv, tag, err := v.Seal([]byte("inspection report v3"))
	require.NoError(t, err)

	flipped := append([]byte(nil), ciphertext...)
	flipped[0] ^= 0x01
	_, err = v.Open(flipped, iv, tag)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	badTag := strings.Replace(tag, tag[:1], flipHexDigit(tag[:1]), 1)
	_, err = v.Open(ciphertext, iv, badTag)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsMalformedMetadata(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ciphertext, iv, tag, err := v.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = v.Open(ciphertext, "zz", tag)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = v.Open(ciphertext, iv, "abcd")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = v.Open(ciphertext, "", tag)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func flipHexDigit(s string) string {
	if s == "0" {
		return "1"
	}
	return "0"
}
