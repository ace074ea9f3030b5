package wsserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextUTF8(t *testing.T) {
	out, err := decodeText([]byte("héllo"), EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "héllo", string(out))
}

func TestDecodeTextUTF8RejectsInvalid(t *testing.T) {
	_, err := decodeText([]byte{0xff, 0xfe}, EncodingUTF8)
	assert.Error(t, err)
}

func TestDecodeTextBase64(t *testing.T) {
	out, err := decodeText([]byte("hi"), EncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, "aGk=", string(out))
}

func TestDecodeTextHex(t *testing.T) {
	out, err := decodeText([]byte{0xde, 0xad}, EncodingHex)
	require.NoError(t, err)
	assert.Equal(t, "dead", string(out))
}

func TestDecodeTextUTF16LE(t *testing.T) {
	// "hi" as UTF-16LE code units.
	out, err := decodeText([]byte{'h', 0, 'i', 0}, EncodingUTF16LE)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
}

func TestDecodeTextUTF16LERejectsOddLength(t *testing.T) {
	_, err := decodeText([]byte{'h'}, EncodingUTF16LE)
	assert.Error(t, err)
}

func TestValidEncoding(t *testing.T) {
	for _, e := range []string{EncodingUTF8, EncodingASCII, EncodingBase64, EncodingHex, EncodingBinary, EncodingUTF16LE, EncodingUCS2} {
		assert.True(t, validEncoding(e))
	}
	assert.False(t, validEncoding("shift-jis"))
}
