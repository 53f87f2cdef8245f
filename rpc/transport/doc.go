// Package transport defines the transport provider abstraction of the kRPC
// system: one-way publish and subscribe primitives on top of which the
// request/response protocol is built.
//
// The package focuses on:
//   - A common contract for broker transports so engine and server code is
//     independent of the broker client library
//   - Explicit connection lifecycle: transports are constructed, connected and
//     closed by their owner and passed to engines and servers
//
// Key Components:
//
//   - IRPCBrokerTransport: publish through a shared, lazily created publish
//     handle and create per-topic subscribe handles.
//
//   - ISubscription: a subscribe handle bound to one topic.
//
//   - MessageHandleFunc: callback invoked sequentially per received message.
//
// Implementations:
//
//   - kafka: Apache Kafka via segmentio/kafka-go.
//   - memory: an in-process broker for tests and single-process deployments.
package transport
