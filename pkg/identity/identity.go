package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Identity is an agent's cryptographic identity: an Ed25519 keypair and the
// fingerprint derived from the public key. Verify-only identities carry no
// private key.
type Identity struct {
	privateKey  ed25519.PrivateKey
	publicKey   ed25519.PublicKey
	fingerprint string
}

// Generate creates a new identity with a random Ed25519 keypair.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Identity{
		privateKey:  priv,
		publicKey:   pub,
		fingerprint: Fingerprint(pub),
	}, nil
}

// FromSeed derives a deterministic identity from a 32-byte seed. Agents that
// must keep a stable fingerprint across restarts persist the seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey:  priv,
		publicKey:   pub,
		fingerprint: Fingerprint(pub),
	}, nil
}

// FromPublicKey builds a verify-only identity around an existing public key.
func FromPublicKey(pub ed25519.PublicKey) (*Identity, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return &Identity{
		publicKey:   pub,
		fingerprint: Fingerprint(pub),
	}, nil
}

// Fingerprint computes the hex-encoded SHA-256 digest of a public key.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the identity's fingerprint.
func (id *Identity) Fingerprint() string {
	return id.fingerprint
}

// PublicKey returns the identity's public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.publicKey
}

// CanSign reports whether the identity holds a private key.
func (id *Identity) CanSign() bool {
	return id.privateKey != nil
}

// Sign signs data with the identity's private key.
func (id *Identity) Sign(data []byte) ([]byte, error) {
	if id.privateKey == nil {
		return nil, fmt.Errorf("identity %s has no private key", abbreviate(id.fingerprint))
	}
	return ed25519.Sign(id.privateKey, data), nil
}

// Verify checks an Ed25519 signature against a public key. It returns false
// on any structural or cryptographic failure.
func Verify(pub ed25519.PublicKey, data, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, data, signature)
}

// abbreviate shortens a fingerprint for log and error output.
func abbreviate(fingerprint string) string {
	if len(fingerprint) <= 12 {
		return fingerprint
	}
	return fingerprint[:12]
}
