// Package audit is the append-only security event pipeline. Every sensitive
// operation in authcore writes exactly one [Event] here; dashboards and
// operators read them back through Query, Metrics and Alerts.
//
// # Components
//
//   - [Event] — immutable record with actor, action, outcome, severity,
//     source metadata and a free-form detail map.
//   - [Store] — Redis-backed append-only storage with retention-TTL expiry
//     and time/actor/alert indexes.
//   - [Pipeline] — the write/read surface: synchronous Record with a
//     fallback log channel, plus the query and acknowledgement operations.
//   - [Sink] — optional mirror tap for streaming events elsewhere (channel,
//     JSON writer, no-op).
//
// # Architecture boundaries
//
// This package owns storage and retrieval of audit records. It does NOT
// decide which events to emit or with what severity — that responsibility
// belongs to the Engine.
//
// # What this package must NOT do
//
//   - Mutate a stored event after the fact, except the acknowledged marker.
//   - Fail a caller's primary operation because an audit write failed.
//   - Import authcore or any sibling package.
package audit
