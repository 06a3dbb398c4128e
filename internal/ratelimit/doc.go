// Package ratelimit provides per-IP rate limiting with background eviction
// of stale entries.
//
// The server applies it to the gate password check, which is the only
// endpoint worth brute-forcing. It is a single-instance, in-memory limiter:
// it does not protect against distributed attacks or bandwidth-bill attacks
// on the media endpoints. For those, use an upstream WAF or CDN-level rate
// limiting.
package ratelimit
