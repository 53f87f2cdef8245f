package transport

import (
	"context"
	"errors"

	"github.com/ValentinKolb/kRPC/rpc/common"
)

// MessageHandleFunc is called by a subscription for every message received on
// the subscribed topic. Calls for one subscription never overlap, messages
// are delivered one after another (single logical stream).
type MessageHandleFunc func(topic string, payload []byte)

// ISubscription is a subscribe handle bound to a single topic
type ISubscription interface {
	// Topic returns the topic the subscription is bound to
	Topic() string
	// Close stops the delivery of messages and releases the connection
	Close() error
}

// IRPCBrokerTransport is the interface of the transport provider. It hides
// the broker connection lifecycle so publish and subscribe are cheap,
// always-available operations for the rest of the system.
type IRPCBrokerTransport interface {
	// Connect initializes the transport with the given configuration.
	// Connections are established lazily, broker readiness and connection
	// errors are only logged.
	Connect(config common.BrokerConfig) error
	// Publish publishes a single message to the given topic using the shared
	// publish handle. A returned error is a transport error for this call.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe creates a new subscribe handle for the topic. Every call
	// creates a new underlying connection, callers must not subscribe twice
	// to the same topic unless they want every message twice.
	Subscribe(topic string, handler MessageHandleFunc) (ISubscription, error)
	// Close closes the publish handle and all subscriptions
	Close() error
}

// Errors shared by the transport implementations
var (
	ErrNotConnected    = errors.New("transport not connected")
	ErrTransportClosed = errors.New("transport closed")
)
