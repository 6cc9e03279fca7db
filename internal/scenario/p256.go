package scenario

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/schema"
	"github.com/roach88/zendsl/internal/value"
)

func init() {
	register("zencode_p256", loadP256)
}

const (
	p256SecretSize = 32
	p256PubSize    = 64
	p256SigSize    = 64
)

// loadP256 populates the registries with the NIST P-256 ECDSA steps.
// Public keys travel raw (64 bytes, X||Y); compressed and prefixed forms
// are accepted on input.
func loadP256(reg *engine.Registry, schemas *schema.Registry) error {
	schemas.Register("keyring", keyringSchema())
	schemas.Register("p256_public_key", schema.Octet(value.EncodingBase58, p256PubSize, p256PubSize+1, 33))
	schemas.Register("p256_signature", schema.Octet(value.EncodingBase58, p256SigSize))

	reg.When("i create the p256 key", p256Keygen)
	reg.When("i create the p256 public key", p256Pubgen)
	reg.When("i create the p256 signature of ''", p256Sign)
	reg.When("i verify the '' has a p256 signature in '' by ''", p256Verify)
	reg.When("i verify the '' is a valid p256 public key", p256Pubcheck)
	reg.When("i create the compressed p256 public key", p256Compress)
	reg.When("i create the coordinates of the p256 public key", p256Coordinates)

	return nil
}

// p256Keygen generates a fresh scalar into the identity's keyring.
func p256Keygen(w *engine.WhenScope, args ...string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate p256 key: %w", err)
	}
	secret := make([]byte, p256SecretSize)
	defer wipe(secret)
	priv.D.FillBytes(secret)
	return storeKeypair(w, "p256", secret)
}

// p256Pubgen derives the raw public key from the keyring scalar.
func p256Pubgen(w *engine.WhenScope, args ...string) error {
	priv, err := p256Private(w)
	if err != nil {
		return err
	}
	raw := rawFromPoint(priv.PublicKey.X, priv.PublicKey.Y)

	mine, err := mineObject(w)
	if err != nil {
		return err
	}
	mine["p256_public_key"] = value.NewOctetWithEncoding(raw, value.EncodingBase58)
	return nil
}

// p256Sign signs the SHA-256 digest of an acknowledged message. The
// signature is 64 bytes, R||S.
func p256Sign(w *engine.WhenScope, args ...string) error {
	name := args[0]
	priv, err := p256Private(w)
	if err != nil {
		return err
	}

	v, ok := w.Ack()[name]
	if !ok {
		return engine.NewNotFound(name)
	}
	msg, err := messageBytes(v)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return fmt.Errorf("p256 sign: %w", err)
	}
	sig := make([]byte, p256SigSize)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	w.Ack()["p256_signature"] = value.NewOctetWithEncoding(sig, value.EncodingBase58)
	return nil
}

// p256Verify checks a signature by a named signer whose public key has
// been acknowledged. Verification failure aborts the run.
func p256Verify(w *engine.WhenScope, args ...string) error {
	msgName, sigName, signer := args[0], args[1], args[2]

	v, ok := w.Ack()[msgName]
	if !ok {
		return engine.NewNotFound(msgName)
	}
	msg, err := messageBytes(v)
	if err != nil {
		return err
	}

	sigOct, ok := w.Ack()[sigName].(*value.Octet)
	if !ok {
		return engine.NewNotFound(sigName)
	}
	if sigOct.Len() != p256SigSize {
		return fmt.Errorf("p256 signature has wrong length %d", sigOct.Len())
	}

	pubOct, err := peerPublicKey(w.Ack(), signer, "p256_public_key")
	if err != nil {
		return err
	}
	x, y, err := p256Point(pubOct)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(sigOct.Bytes()[:32])
	s := new(big.Int).SetBytes(sigOct.Bytes()[32:])
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return fmt.Errorf("p256 signature by %q does not verify on %q", signer, msgName)
	}
	w.Tracef("p256 signature by %q verified on %q", signer, msgName)
	return nil
}

// p256Pubcheck validates that an acknowledged octet is a point on the
// curve.
func p256Pubcheck(w *engine.WhenScope, args ...string) error {
	name := args[0]
	o, ok := w.Ack()[name].(*value.Octet)
	if !ok {
		return engine.NewNotFound(name)
	}
	if _, _, err := p256Point(o); err != nil {
		return fmt.Errorf("%q is not a valid p256 public key: %w", name, err)
	}
	w.Tracef("%q is a valid p256 public key", name)
	return nil
}

// p256Compress acknowledges the 33-byte compressed form of the public key
// under "p256_compressed_public_key"; the original key stays in place.
func p256Compress(w *engine.WhenScope, args ...string) error {
	o, err := ownPublicKey(w)
	if err != nil {
		return err
	}
	x, y, err := p256Point(o)
	if err != nil {
		return err
	}
	compressed := elliptic.MarshalCompressed(elliptic.P256(), x, y)
	w.Ack()["p256_compressed_public_key"] = value.NewOctetWithEncoding(compressed, value.EncodingBase58)
	return nil
}

// p256Coordinates splits the acknowledged public key into its affine
// coordinates, rendered hex.
func p256Coordinates(w *engine.WhenScope, args ...string) error {
	o, err := ownPublicKey(w)
	if err != nil {
		return err
	}
	x, y, err := p256Point(o)
	if err != nil {
		return err
	}
	xb := make([]byte, 32)
	yb := make([]byte, 32)
	x.FillBytes(xb)
	y.FillBytes(yb)
	w.Ack()["p256_coordinates"] = value.Object{
		"x": value.NewOctetWithEncoding(xb, value.EncodingHex),
		"y": value.NewOctetWithEncoding(yb, value.EncodingHex),
	}
	return nil
}

// p256Private rebuilds the ECDSA private key from the keyring scalar.
func p256Private(w *engine.WhenScope) (*ecdsa.PrivateKey, error) {
	secret, err := secretKey(w, "p256")
	if err != nil {
		return nil, err
	}
	if len(secret) != p256SecretSize {
		return nil, fmt.Errorf("p256 key has wrong length %d", len(secret))
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(secret)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("p256 key out of range")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(secret)
	return priv, nil
}

// ownPublicKey finds the public key acknowledged by this run: under the
// identity when set, at the top of ACK otherwise.
func ownPublicKey(w *engine.WhenScope) (*value.Octet, error) {
	if who, ok := w.Whoami(); ok {
		if mine, ok := w.Ack()[who].(value.Object); ok {
			if o, ok := mine["p256_public_key"].(*value.Octet); ok {
				return o, nil
			}
		}
	}
	if o, ok := w.Ack()["p256_public_key"].(*value.Octet); ok {
		return o, nil
	}
	return nil, fmt.Errorf("no p256 public key acknowledged")
}

// p256Point decodes a raw, prefixed, or compressed public key into curve
// coordinates and checks it lies on the curve.
func p256Point(o *value.Octet) (x, y *big.Int, err error) {
	curve := elliptic.P256()
	b := o.Bytes()
	switch len(b) {
	case p256PubSize:
		x = new(big.Int).SetBytes(b[:32])
		y = new(big.Int).SetBytes(b[32:])
	case p256PubSize + 1:
		if b[0] != 0x04 {
			return nil, nil, fmt.Errorf("bad uncompressed point prefix %#x", b[0])
		}
		x = new(big.Int).SetBytes(b[1:33])
		y = new(big.Int).SetBytes(b[33:])
	case 33:
		x, y = elliptic.UnmarshalCompressed(curve, b)
		if x == nil {
			return nil, nil, fmt.Errorf("bad compressed point")
		}
	default:
		return nil, nil, fmt.Errorf("bad public key length %d", len(b))
	}
	if !curve.IsOnCurve(x, y) {
		return nil, nil, fmt.Errorf("point not on curve")
	}
	return x, y, nil
}

func rawFromPoint(x, y *big.Int) []byte {
	raw := make([]byte, p256PubSize)
	x.FillBytes(raw[:32])
	y.FillBytes(raw[32:])
	return raw
}
