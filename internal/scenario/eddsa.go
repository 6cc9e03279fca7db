package scenario

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/schema"
	"github.com/roach88/zendsl/internal/value"
)

func init() {
	register("zencode_eddsa", loadEdDSA)
}

// loadEdDSA populates the registries with the Ed25519 signing steps.
// Key material renders base58; the keyring holds the 32-byte seed.
func loadEdDSA(reg *engine.Registry, schemas *schema.Registry) error {
	schemas.Register("keyring", keyringSchema())
	schemas.Register("eddsa_public_key", schema.Octet(value.EncodingBase58, ed25519.PublicKeySize))
	schemas.Register("eddsa_signature", schema.Octet(value.EncodingBase58, ed25519.SignatureSize))

	reg.When("i create the keypair", eddsaKeygen)
	reg.When("i create the eddsa key", eddsaKeygen)
	reg.When("i create the eddsa public key", eddsaPubgen)
	reg.When("i create the eddsa signature of ''", eddsaSign)
	reg.When("i verify the '' has a eddsa signature in '' by ''", eddsaVerify)

	return nil
}

// eddsaKeygen generates a fresh Ed25519 seed into the identity's keyring.
func eddsaKeygen(w *engine.WhenScope, args ...string) error {
	seed := make([]byte, ed25519.SeedSize)
	defer wipe(seed)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate eddsa seed: %w", err)
	}
	return storeKeypair(w, "eddsa", seed)
}

// eddsaPubgen derives the public key from the keyring seed and
// acknowledges it under the run identity.
func eddsaPubgen(w *engine.WhenScope, args ...string) error {
	seed, err := secretKey(w, "eddsa")
	if err != nil {
		return err
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("eddsa key has wrong length %d", len(seed))
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)

	mine, err := mineObject(w)
	if err != nil {
		return err
	}
	mine["eddsa_public_key"] = value.NewOctetWithEncoding(pub, value.EncodingBase58)
	return nil
}

// eddsaSign signs an acknowledged message with the keyring seed. The
// signature lands in ACK under "eddsa_signature".
func eddsaSign(w *engine.WhenScope, args ...string) error {
	name := args[0]
	seed, err := secretKey(w, "eddsa")
	if err != nil {
		return err
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("eddsa key has wrong length %d", len(seed))
	}

	v, ok := w.Ack()[name]
	if !ok {
		return engine.NewNotFound(name)
	}
	msg, err := messageBytes(v)
	if err != nil {
		return err
	}

	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), msg)
	w.Ack()["eddsa_signature"] = value.NewOctetWithEncoding(sig, value.EncodingBase58)
	return nil
}

// eddsaVerify checks a signature by a named signer whose public key has
// been acknowledged. Verification failure aborts the run.
func eddsaVerify(w *engine.WhenScope, args ...string) error {
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
	if sigOct.Len() != ed25519.SignatureSize {
		return fmt.Errorf("eddsa signature has wrong length %d", sigOct.Len())
	}

	pub, err := peerPublicKey(w.Ack(), signer, "eddsa_public_key")
	if err != nil {
		return err
	}
	if pub.Len() != ed25519.PublicKeySize {
		return fmt.Errorf("eddsa public key has wrong length %d", pub.Len())
	}

	if !ed25519.Verify(ed25519.PublicKey(pub.Bytes()), msg, sigOct.Bytes()) {
		return fmt.Errorf("eddsa signature by %q does not verify on %q", signer, msgName)
	}
	w.Tracef("eddsa signature by %q verified on %q", signer, msgName)
	return nil
}
