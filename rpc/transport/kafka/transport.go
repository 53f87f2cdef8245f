package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/segmentio/kafka-go"
)

var Logger = logger.GetLogger("transport/kafka")

const (
	// batchTimeout bounds how long the writer waits to fill a batch. The
	// kafka-go default of one second would add a second to every request.
	batchTimeout = 5 * time.Millisecond

	readErrorBackoff = 500 * time.Millisecond
	readMaxWait      = 500 * time.Millisecond
	readMaxBytes     = 10e6 // 10MB
)

// kafkaTransport implements transport.IRPCBrokerTransport for Apache Kafka
type kafkaTransport struct {
	config    common.BrokerConfig
	connected atomic.Bool
	closed    atomic.Bool

	writerMu sync.Mutex
	writer   *kafka.Writer // publish handle, created on first use

	subsMu sync.Mutex
	subs   map[*kafkaSubscription]struct{}
}

// NewKafkaTransport creates a new Kafka transport
func NewKafkaTransport() transport.IRPCBrokerTransport {
	return &kafkaTransport{
		subs: make(map[*kafkaSubscription]struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCBrokerTransport)
// --------------------------------------------------------------------------

func (t *kafkaTransport) Connect(config common.BrokerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	t.config = config
	t.closed.Store(false)
	t.connected.Store(true)

	// readiness is only observable in the logs
	go t.probe()

	return nil
}

func (t *kafkaTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if t.closed.Load() {
		return transport.ErrTransportClosed
	}
	if !t.connected.Load() {
		return transport.ErrNotConnected
	}

	err := t.getPublishHandle().WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (t *kafkaTransport) Subscribe(topic string, handler transport.MessageHandleFunc) (transport.ISubscription, error) {
	if t.closed.Load() {
		return nil, transport.ErrTransportClosed
	}
	if !t.connected.Load() {
		return nil, transport.ErrNotConnected
	}

	cfg := readerConfig(t.config, topic)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reader config for topic %s: %w", topic, err)
	}

	reader := kafka.NewReader(cfg)

	// a partition reader starts at the first offset unless told otherwise.
	// The end of the partition is resolved now, kafka.LastOffset would only
	// be resolved when the reader connects and skip everything written before.
	if cfg.GroupID == "" && t.config.StartOffset != common.StartOffsetEarliest {
		offset, err := t.lastOffset(topic)
		if err != nil {
			Logger.Warningf("failed to resolve end of topic %s, messages before the first fetch are skipped: %v", topic, err)
			offset = kafka.LastOffset
		}
		if err := reader.SetOffset(offset); err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to set offset for topic %s: %w", topic, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &kafkaSubscription{
		topic:   topic,
		reader:  reader,
		cancel:  cancel,
		onClose: t.forget,
	}

	t.subsMu.Lock()
	t.subs[s] = struct{}{}
	t.subsMu.Unlock()

	go s.run(ctx, handler)

	Logger.Infof("subscribed to topic %s (partition %d, group %q)", topic, t.config.Partition, t.config.GroupID)
	return s, nil
}

func (t *kafkaTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	var errs []error

	// close all subscriptions
	t.subsMu.Lock()
	subs := make([]*kafkaSubscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subsMu.Unlock()
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// close the publish handle
	t.writerMu.Lock()
	if t.writer != nil {
		if err := t.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
		}
		t.writer = nil
	}
	t.writerMu.Unlock()

	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getPublishHandle returns the shared writer and creates it on first use
func (t *kafkaTransport) getPublishHandle() *kafka.Writer {
	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	if t.writer == nil {
		t.writer = newWriter(t.config)
		Logger.Infof("created publish handle for %v", t.config.Brokers)
	}
	return t.writer
}

// forget removes a closed subscription from the transport
func (t *kafkaTransport) forget(s *kafkaSubscription) {
	t.subsMu.Lock()
	delete(t.subs, s)
	t.subsMu.Unlock()
}

// lastOffset returns the offset the next message of the configured partition
// will get. The brokers are tried in order.
func (t *kafkaTransport) lastOffset(topic string) (int64, error) {
	dialer := newDialer(t.config)
	var errs []error
	for _, broker := range t.config.Brokers {
		ctx, cancel := context.WithTimeout(context.Background(), t.config.DialTimeout())
		conn, err := dialer.DialLeader(ctx, "tcp", broker, topic, t.config.Partition)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		offset, err := conn.ReadLastOffset()
		conn.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return offset, nil
	}
	return 0, errors.Join(errs...)
}

// probe dials every broker once and logs the result
func (t *kafkaTransport) probe() {
	dialer := newDialer(t.config)
	for _, broker := range t.config.Brokers {
		ctx, cancel := context.WithTimeout(context.Background(), t.config.DialTimeout())
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		cancel()
		if err != nil {
			Logger.Errorf("failed to connect to kafka at %s: %v", broker, err)
			continue
		}
		conn.Close()
		Logger.Infof("connected to kafka at %s", broker)
	}
}

// newWriter creates the writer used as publish handle for all topics
func newWriter(config common.BrokerConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &fixedPartitionBalancer{partition: config.Partition},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           batchTimeout,
		ReadTimeout:            config.WriteTimeout(),
		WriteTimeout:           config.WriteTimeout(),
		AllowAutoTopicCreation: true,
		Transport: &kafka.Transport{
			DialTimeout: config.DialTimeout(),
		},
		ErrorLogger: kafka.LoggerFunc(Logger.Errorf),
	}
}

// newDialer creates the dialer used by readers and admin connections
func newDialer(config common.BrokerConfig) *kafka.Dialer {
	return &kafka.Dialer{
		Timeout:   config.DialTimeout(),
		DualStack: true,
	}
}

// readerConfig builds the config of a subscribe handle for one topic
func readerConfig(config common.BrokerConfig, topic string) kafka.ReaderConfig {
	cfg := kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       topic,
		MinBytes:    1, // deliver immediately
		MaxBytes:    readMaxBytes,
		MaxWait:     readMaxWait,
		Dialer:      newDialer(config),
		ErrorLogger: kafka.LoggerFunc(Logger.Errorf),
	}

	if config.GroupID != "" {
		cfg.GroupID = config.GroupID
		cfg.StartOffset = kafka.LastOffset
		if config.StartOffset == common.StartOffsetEarliest {
			cfg.StartOffset = kafka.FirstOffset
		}
	} else {
		cfg.Partition = config.Partition
	}
	return cfg
}

// --------------------------------------------------------------------------
// Balancer
// --------------------------------------------------------------------------

// fixedPartitionBalancer routes every message to one partition
type fixedPartitionBalancer struct {
	partition int
}

func (b *fixedPartitionBalancer) Balance(_ kafka.Message, partitions ...int) int {
	for _, p := range partitions {
		if p == b.partition {
			return p
		}
	}
	if len(partitions) > 0 {
		Logger.Warningf("partition %d not available, using partition %d", b.partition, partitions[0])
		return partitions[0]
	}
	return b.partition
}

// --------------------------------------------------------------------------
// Subscription
// --------------------------------------------------------------------------

// kafkaSubscription implements transport.ISubscription with a kafka.Reader
type kafkaSubscription struct {
	topic     string
	reader    *kafka.Reader
	cancel    context.CancelFunc
	closeOnce sync.Once
	onClose   func(*kafkaSubscription)
}

func (s *kafkaSubscription) Topic() string {
	return s.topic
}

func (s *kafkaSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.reader.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return err
}

// run reads messages and passes them to the handler one after another
func (s *kafkaSubscription) run(ctx context.Context, handler transport.MessageHandleFunc) {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				Logger.Debugf("subscription for topic %s stopped", s.topic)
				return
			}
			Logger.Errorf("error reading from topic %s: %v", s.topic, err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		handler(msg.Topic, msg.Value)
	}
}
