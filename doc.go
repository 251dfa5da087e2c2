// Package psyclient is the Go client SDK for the deineapp psychology API.
// It owns the authenticated session: token acquisition (login/register),
// client-side expiry detection, silent single-flight refresh, and a single
// 401-recovery retry on every outbound request.
//
// The package is designed for concurrent callers: Client methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// psyclient is the public surface. It exposes [Client], [Builder], [Config],
// and value types (SessionSnapshot, User, MetricsSnapshot, etc.). All internal
// coordination — session state transitions, refresh deduplication, audit
// dispatch, metric storage — lives under internal/ and is never exported.
// Token persistence backends live in store/, claim decoding in token/.
//
// # What this package must NOT do
//
//   - Validate token signatures. Expiry checks are client-side hints only;
//     the server stays authoritative and the 401 retry covers clock drift.
//   - Retry a request more than once per logical call, or retry network-layer
//     failures at all.
//   - Surface a server-side logout failure to the caller. Local logout always
//     succeeds.
package psyclient
