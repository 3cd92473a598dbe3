/*
Package message defines the envelope agents exchange and its canonical wire
encoding.

# Envelope

A Message carries an ID, sender and optional recipient fingerprints, a list
of topics, a free-form payload map, an optional task reference, a float
timestamp in Unix seconds, and an optional Ed25519 signature. Messages are
value objects: Sign, EncryptPayload, and DecryptPayload return modified
copies and leave the receiver untouched.

# Topics

A Topic is a namespace plus string attributes and a version. Its canonical
form "namespace[k1=v1,k2=v2]vVERSION" sorts attributes by key so equal topics
always render identically. Transports route on the namespace; attributes
carry qualifiers and delivery hints (the TCP transport reads host and port
from a "transport.tcp" topic).

# Canonical Encoding

SigningBytes and WireBytes encode the envelope as a msgpack map with a pinned
field order: id, sender, recipient, topics, payload, task_id, timestamp, and
(wire only) signature. Absent optionals encode as explicit nil, topics as
canonical strings in list order, and payload maps with sorted keys. Equal
message contents therefore produce byte-identical output across peers and
runs, which is what makes detached signatures portable: any peer can
recompute the signing bytes from a decoded envelope and check the signature
against the sender's registered public key.

# Payload Encryption

EncryptPayload replaces the payload with {"_encrypted": base64(nonce ||
ciphertext)} under AES-256-GCM; DecryptPayload reverses it and passes
messages without the marker through unchanged. Sign after encrypting so the
signature covers the ciphertext and receivers can verify before decrypting.
*/
package message
