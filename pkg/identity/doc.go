/*
Package identity implements agent identities and the fingerprint registry
used for verified message receipt.

An Identity wraps an Ed25519 keypair. The fingerprint is the hex-encoded
SHA-256 digest of the raw public key and doubles as the agent's address on
every transport. Verify-only identities (FromPublicKey) carry no private key
and refuse to sign.

The Registry maps fingerprints to public keys. Transports consult it in
ReceiveVerified to check envelope signatures; messages from unknown senders
are treated as unverifiable and dropped by the caller.
*/
package identity
