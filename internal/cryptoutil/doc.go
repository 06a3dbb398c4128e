// Package cryptoutil provides cryptographic verification primitives
// for media bundle integrity and gate credentials.
//
// It supports:
//   - KMS-backed signature verification (ECDSA P-256/P-384, RSA-PSS with optional PKCS1v15 fallback)
//   - Constant-time hash and secret comparison to prevent timing side-channels
//   - SHA-256 hashing utilities
package cryptoutil
