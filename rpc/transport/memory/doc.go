// Package memory implements an in-process broker and a transport on top of
// it. It has the delivery semantics the RPC layer relies on (per topic fan
// out, sequential delivery per subscription, messages to topics without
// subscribers are lost) without any network, which makes it the transport of
// choice for tests and for running client and service in one process.
package memory
