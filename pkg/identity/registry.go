package identity

import (
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"
)

// Registry maps fingerprints to public keys for verified message receipt.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: map[string]ed25519.PublicKey{}}
}

// Register records an identity's public key under its fingerprint.
func (r *Registry) Register(id *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[id.Fingerprint()] = id.PublicKey()
}

// RegisterKey records a public key under the given fingerprint. The
// fingerprint must match the key.
func (r *Registry) RegisterKey(fingerprint string, pub ed25519.PublicKey) error {
	if Fingerprint(pub) != fingerprint {
		return fmt.Errorf("fingerprint %s does not match public key", abbreviate(fingerprint))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[fingerprint] = pub
	return nil
}

// Resolve returns the public key for a fingerprint, or false when unknown.
func (r *Registry) Resolve(fingerprint string) (ed25519.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pub, ok := r.keys[fingerprint]
	return pub, ok
}

// Remove drops a fingerprint from the registry.
func (r *Registry) Remove(fingerprint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, fingerprint)
}

// Fingerprints returns all registered fingerprints in sorted order.
func (r *Registry) Fingerprints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.keys))
	for fp := range r.keys {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}
