/*
Package crypto provides the symmetric encryption primitives used for payload
confidentiality in Converge.

Seal and Open implement AES-256-GCM with the nonce prepended to the
ciphertext. DeriveKey turns a passphrase into a 32-byte key via
PBKDF2-HMAC-SHA256, and RandomBytes sources cryptographically secure
randomness for keys and salts.

Message signing does not live here; see the identity package for Ed25519
keys and the message package for envelope signatures.
*/
package crypto
