// Package prometheus renders psyclient metrics in Prometheus text
// exposition format without importing a Prometheus client library. The
// exporter reads immutable snapshots; it never touches live counters.
package prometheus
