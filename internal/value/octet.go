package value

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// Encoding selects how an Octet renders at the JSON boundary.
type Encoding string

const (
	// EncodingBase64 renders as unpadded URL-safe base64 (the default).
	EncodingBase64 Encoding = "base64"

	// EncodingBase58 renders as Bitcoin-alphabet base58. Key material
	// uses this encoding.
	EncodingBase58 Encoding = "base58"

	// EncodingHex renders as lowercase hexadecimal.
	EncodingHex Encoding = "hex"

	// EncodingString renders the raw bytes as a UTF-8 string.
	EncodingString Encoding = "string"
)

// ValidEncoding reports whether enc is one of the supported encodings.
func ValidEncoding(enc Encoding) bool {
	switch enc {
	case EncodingBase64, EncodingBase58, EncodingHex, EncodingString:
		return true
	}
	return false
}

// rawURL is the base64 codec for octets: URL-safe alphabet, no padding.
var rawURL = base64.RawURLEncoding

// Octet is an opaque byte sequence with an explicit length, the universal
// currency for cryptographic values. The encoding hint is carried with the
// buffer so the JSON encoder knows how to render it; it never changes the
// bytes themselves.
type Octet struct {
	buf []byte
	enc Encoding
}

func (*Octet) value() {}

// NewOctet wraps bytes in an Octet with the default base64 rendering.
// The buffer is copied; callers keep ownership of b.
func NewOctet(b []byte) *Octet {
	buf := make([]byte, len(b))
	copy(buf, b)
	return &Octet{buf: buf, enc: EncodingBase64}
}

// NewOctetWithEncoding wraps bytes in an Octet rendering as enc.
func NewOctetWithEncoding(b []byte, enc Encoding) *Octet {
	o := NewOctet(b)
	o.enc = enc
	return o
}

// OctetFromEncoded decodes an encoded string into an Octet that remembers
// its source encoding.
func OctetFromEncoded(s string, enc Encoding) (*Octet, error) {
	var b []byte
	var err error
	switch enc {
	case EncodingBase64:
		b, err = rawURL.DecodeString(s)
	case EncodingBase58:
		b, err = base58.Decode(s)
	case EncodingHex:
		b, err = hex.DecodeString(s)
	case EncodingString:
		b = []byte(s)
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s octet: %w", enc, err)
	}
	return &Octet{buf: b, enc: enc}, nil
}

// Bytes returns the raw buffer. The caller must not mutate it.
func (o *Octet) Bytes() []byte { return o.buf }

// Len returns the explicit length of the buffer.
func (o *Octet) Len() int { return len(o.buf) }

// Encoding returns the rendering hint.
func (o *Octet) Encoding() Encoding { return o.enc }

// WithEncoding returns a copy of the octet rendering as enc.
func (o *Octet) WithEncoding(enc Encoding) *Octet {
	c := o.Clone().(*Octet)
	c.enc = enc
	return c
}

// EncodedString renders the buffer according to the encoding hint.
func (o *Octet) EncodedString() string {
	switch o.enc {
	case EncodingBase58:
		return base58.Encode(o.buf)
	case EncodingHex:
		return hex.EncodeToString(o.buf)
	case EncodingString:
		return string(o.buf)
	default:
		return rawURL.EncodeToString(o.buf)
	}
}

// String implements fmt.Stringer with the encoded form.
func (o *Octet) String() string { return o.EncodedString() }

// Clone returns a deep copy of the octet.
func (o *Octet) Clone() Value {
	buf := make([]byte, len(o.buf))
	copy(buf, o.buf)
	return &Octet{buf: buf, enc: o.enc}
}

// Wipe zeroes the buffer. Handlers that allocate temporary octets release
// them through this on every return path.
func (o *Octet) Wipe() {
	for i := range o.buf {
		o.buf[i] = 0
	}
	o.buf = o.buf[:0]
}
