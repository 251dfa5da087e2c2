// Package token decodes bearer tokens issued by the deineapp backend and
// answers the one question the client needs: is this token still usable.
//
// # Design
//
// Decoding is signature-free. The client never holds verification keys; it
// only reads the exp and user_id claims to decide whether to attach, refresh,
// or drop a token. The server remains the authority — a stale local clock is
// corrected by the pipeline's 401 recovery, not by this package.
//
// # What this package must NOT do
//
//   - Accept a malformed token as valid. Decode failure is reported as
//     expired, never ignored.
//   - Perform I/O. Decoding is pure and allocation-light.
package token
