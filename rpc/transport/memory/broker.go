package memory

import (
	"context"
	"sync"

	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/memory")

const (
	defaultQueueSize = 1024
)

// Broker is an in-process message broker. Every subscription of a topic gets
// every message published to that topic. Messages published to a topic
// without subscribers are dropped.
type Broker struct {
	mu        sync.RWMutex
	topics    map[string]map[*subscription]struct{}
	queueSize int
}

// NewBroker creates a new in-process broker
func NewBroker() *Broker {
	return &Broker{
		topics:    make(map[string]map[*subscription]struct{}),
		queueSize: defaultQueueSize,
	}
}

// Subscribers returns the number of active subscriptions for a topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// publish hands a copy of the payload to every subscription of the topic
func (b *Broker) publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.topics[topic]))
	for s := range b.topics[topic] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		Logger.Debugf("no subscriber for topic %s, message dropped", topic)
		return nil
	}

	for _, s := range targets {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		if err := s.deliver(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// subscribe registers a new subscription and starts its delivery goroutine
func (b *Broker) subscribe(topic string, handler transport.MessageHandleFunc) *subscription {
	s := &subscription{
		broker:  b,
		topic:   topic,
		handler: handler,
		queue:   make(chan []byte, b.queueSize),
		stopCh:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscription]struct{})
	}
	b.topics[topic][s] = struct{}{}
	b.mu.Unlock()

	go s.run()
	return s
}

// unsubscribe removes a subscription from its topic
func (b *Broker) unsubscribe(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[s.topic], s)
	if len(b.topics[s.topic]) == 0 {
		delete(b.topics, s.topic)
	}
}

// --------------------------------------------------------------------------
// Subscription
// --------------------------------------------------------------------------

// subscription implements transport.ISubscription
type subscription struct {
	broker    *Broker
	topic     string
	handler   transport.MessageHandleFunc
	queue     chan []byte
	stopCh    chan struct{}
	closeOnce sync.Once
	onClose   func(*subscription)
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.broker.unsubscribe(s)
		close(s.stopCh)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return nil
}

// deliver enqueues a message, it blocks while the queue is full
func (s *subscription) deliver(ctx context.Context, msg []byte) error {
	select {
	case s.queue <- msg:
		return nil
	case <-s.stopCh:
		// subscriber went away, same as publishing to a topic nobody reads
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run delivers queued messages to the handler one after another
func (s *subscription) run() {
	for {
		select {
		case <-s.stopCh:
			return
		case msg := <-s.queue:
			s.handler(s.topic, msg)
		}
	}
}
