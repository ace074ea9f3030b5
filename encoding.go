package wsserver

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// supported text encodings for opcode-1 (Text) payloads, per spec section 6.
const (
	EncodingUTF8    = "utf8"
	EncodingASCII   = "ascii"
	EncodingBase64  = "base64"
	EncodingHex     = "hex"
	EncodingBinary  = "binary"
	EncodingUTF16LE = "utf16le"
	EncodingUCS2    = "ucs2"
)

func validEncoding(e string) bool {
	switch e {
	case EncodingUTF8, EncodingASCII, EncodingBase64, EncodingHex, EncodingBinary, EncodingUTF16LE, EncodingUCS2:
		return true
	default:
		return false
	}
}

// decodeText reinterprets a raw text-frame payload under the configured
// encoding. "binary" passes bytes through unmodified, matching Node's
// Buffer semantics this module's wire format was modeled on.
func decodeText(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingUTF8, "":
		if !utf8.Valid(payload) {
			return nil, fmt.Errorf("wsserver: invalid utf8 text payload")
		}
		return payload, nil

	case EncodingASCII, EncodingBinary:
		return payload, nil

	case EncodingBase64:
		out := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
		base64.StdEncoding.Encode(out, payload)
		return out, nil

	case EncodingHex:
		out := make([]byte, hex.EncodedLen(len(payload)))
		hex.Encode(out, payload)
		return out, nil

	case EncodingUTF16LE, EncodingUCS2:
		if len(payload)%2 != 0 {
			return nil, fmt.Errorf("wsserver: odd-length %s payload", encoding)
		}
		units := make([]uint16, len(payload)/2)
		for i := range units {
			units[i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
		}
		return []byte(string(utf16.Decode(units))), nil

	default:
		return nil, fmt.Errorf("wsserver: unsupported encoding %q", encoding)
	}
}
