// Package rpc provides request/response calls on top of a message broker.
// Requests are published to a request topic, replies come back on a shared
// reply topic and are matched to their caller by correlation id.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     request and reply envelopes, configuration structures, and logging.
//
//   - transport: Broker abstractions with pluggable implementations
//     (Kafka and an in-process memory broker for tests and demos).
//
//   - serializer: Envelope serialization (JSON, GOB) for converting between
//     envelopes and message values.
//
//   - engine: Correlation of replies to pending requests, including timeouts
//     and cancellation. Every request completes exactly once.
//
//   - client: RPC client built on the engine, plus a remote implementation
//     of the user store interface.
//
//   - server: The service handler that consumes requests, dispatches them to
//     an adapter and publishes replies.
package rpc
