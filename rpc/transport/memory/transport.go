package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/transport"
)

// memoryTransport implements transport.IRPCBrokerTransport on top of a Broker
type memoryTransport struct {
	broker    *Broker
	config    common.BrokerConfig
	connected atomic.Bool
	closed    atomic.Bool
	subsMu    sync.Mutex
	subs      map[*subscription]struct{}
}

// NewMemoryTransport creates a new transport connected to the given in-process
// broker. Several transports can share one broker, e.g. a client and a server
// running in the same process.
func NewMemoryTransport(broker *Broker) transport.IRPCBrokerTransport {
	return &memoryTransport{
		broker: broker,
		subs:   make(map[*subscription]struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCBrokerTransport)
// --------------------------------------------------------------------------

func (t *memoryTransport) Connect(config common.BrokerConfig) error {
	t.config = config
	t.closed.Store(false)
	t.connected.Store(true)
	Logger.Infof("connected to in-process broker")
	return nil
}

func (t *memoryTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if t.closed.Load() {
		return transport.ErrTransportClosed
	}
	if !t.connected.Load() {
		return transport.ErrNotConnected
	}
	return t.broker.publish(ctx, topic, payload)
}

func (t *memoryTransport) Subscribe(topic string, handler transport.MessageHandleFunc) (transport.ISubscription, error) {
	if t.closed.Load() {
		return nil, transport.ErrTransportClosed
	}
	if !t.connected.Load() {
		return nil, transport.ErrNotConnected
	}

	s := t.broker.subscribe(topic, handler)
	s.onClose = t.forget

	t.subsMu.Lock()
	t.subs[s] = struct{}{}
	t.subsMu.Unlock()

	Logger.Debugf("subscribed to topic %s", topic)
	return s, nil
}

func (t *memoryTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.subsMu.Lock()
	subs := make([]*subscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subsMu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

// forget removes a closed subscription from the transport
func (t *memoryTransport) forget(s *subscription) {
	t.subsMu.Lock()
	delete(t.subs, s)
	t.subsMu.Unlock()
}
