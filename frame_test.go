package wsserver

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskPayload(payload []byte, key [4]byte) []byte {
	out := make([]byte, len(payload))
	for i, b := range payload {
		out[i] = b ^ key[i%4]
	}
	return out
}

// clientFrame builds a masked client-to-server frame, the inverse of
// encodeFrame (which only ever produces unmasked server frames), so tests
// can exercise decodeFrame with RFC-legal input.
func clientFrame(opcode byte, payload []byte, fin bool) []byte {
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	masked := maskPayload(payload, key)

	first := opcode & 0x0f
	if fin {
		first |= 0x80
	}

	var header []byte
	n := len(payload)
	switch {
	case n <= 125:
		header = []byte{first, 0x80 | byte(n)}
	case n <= 0xFFFF:
		header = []byte{first, 0x80 | 126, byte(n >> 8), byte(n)}
	default:
		header = []byte{first, 0x80 | 127, 0, 0, 0, 0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}

	out := append(header, key[:]...)
	out = append(out, masked...)
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// decode(encode(p, op)) == (fin=1, opcode=op, payload=p) modulo the
	// test-only masking wrapper spec section 8 calls for, since encode
	// always produces unmasked frames and decode requires MASK=1.
	payloads := [][]byte{
		[]byte(""),
		[]byte("Hello"),
		make([]byte, 200),
		make([]byte, 70000),
	}

	for _, p := range payloads {
		encoded := encodeFrame(p, OpBinary)
		// strip the server's unmasked header and re-wrap masked for decode.
		header := 2
		switch encoded[1] & 0x7f {
		case 126:
			header = 4
		case 127:
			header = 10
		}
		masked := clientFrame(encoded[0]&0x0f, encoded[header:], encoded[0]&0x80 != 0)
		f := decodeFrame(masked)
		require.False(t, f.Waiting)
		require.False(t, f.Invalid)
		assert.True(t, f.Fin)
		assert.Equal(t, byte(OpBinary), f.Opcode)
		assert.Equal(t, uint64(len(p)), f.PayloadLength)
		assert.Equal(t, p, f.Payload)

		// encode's own header framing is independently checked: opcode and
		// final bit land in byte 0 regardless of payload size.
		assert.Equal(t, byte(0x80|OpBinary), encoded[0])
	}
}

func TestDecodeFrameRejectsUnmasked(t *testing.T) {
	unmasked := encodeFrame([]byte("hi"), OpText)
	f := decodeFrame(unmasked)
	assert.True(t, f.Invalid)
}

func TestDecodeFrameWaitingOnShortInput(t *testing.T) {
	full := clientFrame(OpText, []byte("Hello"), true)
	for n := 0; n < len(full); n++ {
		f := decodeFrame(full[:n])
		assert.True(t, f.Waiting, "expected waiting at %d bytes", n)
		assert.Equal(t, full[:n], f.Remainder)
	}
}

func TestDecodeFrameRejectsOversizedLengthField(t *testing.T) {
	// 64-bit length form with a non-zero high word must be rejected: the
	// module's non-goals exclude payloads >= 2^32 bytes.
	frame := []byte{0x80 | OpBinary, 0x80 | 127, 0, 0, 0, 1, 0, 0, 0, 0}
	frame = append(frame, []byte{0x37, 0xfa, 0x21, 0x3d}...) // mask key
	f := decodeFrame(frame)
	assert.True(t, f.Invalid)
}

func TestReSegmentationIsOrderIndependent(t *testing.T) {
	var stream []byte
	var want []Frame
	for i := 0; i < 5; i++ {
		payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
		stream = append(stream, clientFrame(OpBinary, payload, true)...)
		want = append(want, Frame{Fin: true, Opcode: OpBinary, PayloadLength: uint64(len(payload)), Payload: payload})
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		k := 1 + rng.Intn(len(stream))
		chunks := splitInto(stream, k, rng)

		var got []Frame
		var buf []byte
		for _, chunk := range chunks {
			buf = append(buf, chunk...)
			frames, remainder, invalid := decodeFrames(buf)
			require.False(t, invalid)
			got = append(got, frames...)
			buf = remainder
		}

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Opcode, got[i].Opcode)
			assert.Equal(t, want[i].Payload, got[i].Payload)
			assert.True(t, got[i].Fin)
		}
	}
}

func splitInto(b []byte, k int, rng *rand.Rand) [][]byte {
	if k > len(b) {
		k = len(b)
	}
	if k <= 1 {
		return [][]byte{b}
	}
	cuts := make(map[int]bool)
	for len(cuts) < k-1 {
		cuts[1+rng.Intn(len(b)-1)] = true
	}
	points := []int{0}
	for c := range cuts {
		points = append(points, c)
	}
	points = append(points, len(b))
	sortInts(points)

	var chunks [][]byte
	for i := 1; i < len(points); i++ {
		chunks = append(chunks, b[points[i-1]:points[i]])
	}
	return chunks
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
