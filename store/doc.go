// Package store persists the access/refresh token pair between process runs.
//
// # Design
//
// The layout is two opaque string values under fixed keys ([KeyAccess],
// [KeyRefresh]). Absence of either key is equivalent to logged out. Writers
// set both keys in one logical operation and readers re-validate both before
// trusting either, so a concurrent read during a write degrades to "logged
// out" rather than a half-trusted pair.
//
// Three backends ship with the SDK: an in-memory map for tests and throwaway
// processes, a JSON file for single-device deployments, and Redis for
// headless installations that share one session across processes.
//
// # What this package must NOT do
//
//   - Inspect token contents. Values are opaque strings here; decoding
//     belongs to the token package.
//   - Cache. The store is the durable source of truth; the session layer
//     owns any in-memory view of it.
package store
