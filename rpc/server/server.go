package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger("server")

// Reply messages of requests that never reach an adapter
const (
	MsgMalformedRequest = "Malformed request"
	MsgUnknownOperation = "Unknown operation: "
	MsgInternalError    = "Internal error"
)

var (
	malformedRequests = metrics.NewCounter("krpc_server_malformed_requests_total")
	droppedRequests   = metrics.NewCounter("krpc_server_dropped_requests_total")
	failedReplies     = metrics.NewCounter("krpc_server_failed_replies_total")
	requestDuration   = metrics.NewHistogram("krpc_server_request_duration_seconds")
)

func countRequest(op, outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`krpc_server_requests_total{operation=%q,outcome=%q}`, op, outcome)).Inc()
}

// RPCServer consumes requests from the request topic, dispatches them to the
// adapter and publishes exactly one reply per accepted request
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCBrokerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	table      *OperationTable

	workers chan struct{} // counting semaphore
	limiter *rate.Limiter // nil if disabled
	stats   *xsync.MapOf[string, uint64]

	mu       sync.Mutex
	serveCtx context.Context
	sub      transport.ISubscription
	ready    chan struct{} // closed once the request subscription exists
	closed   bool
	inflight sync.WaitGroup
}

// NewRPCServer creates a new RPC server.
// The transport must be connected before Serve is called.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		kafka.NewKafkaTransport(),
//		serializer.NewJSONSerializer(),
//		server.NewUserServerAdapter(lstore.NewLocalStore()),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCBrokerTransport,
	serializer serializer.IRPCSerializer,
	adapter IRPCServerAdapter,
) *RPCServer {
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(config.RateBurst, 1))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    adapter,
		table:      NewOperationTable(adapter.Operations()...),
		workers:    make(chan struct{}, config.GetMaxWorkers()),
		limiter:    limiter,
		stats:      xsync.NewMapOf[string, uint64](),
		ready:      make(chan struct{}),
	}
}

// Ready returns a channel that is closed as soon as the server consumes the
// request topic. Requests published before that may never reach it.
func (s *RPCServer) Ready() <-chan struct{} {
	return s.ready
}

// Alias registers an additional name for an operation of the adapter.
// It must be called before Serve.
func (s *RPCServer) Alias(alias, op string) error {
	return s.table.Alias(alias, op)
}

// Serve subscribes to the request topic and processes requests until ctx is
// done. In-flight requests are finished before Serve returns.
func (s *RPCServer) Serve(ctx context.Context) error {
	topic := s.config.GetRequestTopic()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("server closed")
	}
	if s.sub != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already serving %s", topic)
	}
	s.serveCtx = ctx
	sub, err := s.transport.Subscribe(topic, s.handleMessage)
	if err != nil {
		s.mu.Unlock()
		return &common.TransportError{Op: "subscribe", Topic: topic, Err: err}
	}
	s.sub = sub
	close(s.ready)
	s.mu.Unlock()

	Logger.Infof("waiting for requests on %s", topic)

	<-ctx.Done()
	Logger.Infof("shutting down, finishing in-flight requests")
	return s.Close()
}

// Close stops consuming requests and waits for in-flight requests
func (s *RPCServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.sub
	s.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Close()
	}
	s.inflight.Wait()
	return err
}

// Stats returns the number of handled requests per operation
func (s *RPCServer) Stats() map[string]uint64 {
	stats := make(map[string]uint64, s.stats.Size())
	s.stats.Range(func(op string, n uint64) bool {
		stats[op] = n
		return true
	})
	return stats
}

// --------------------------------------------------------------------------
// Request processing
// --------------------------------------------------------------------------

// handleMessage is the handler of the request subscription. It applies the
// intake limit and hands the message to a worker.
func (s *RPCServer) handleMessage(_ string, payload []byte) {
	ctx := s.serveCtx

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			droppedRequests.Inc()
			return
		}
	}

	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		droppedRequests.Inc()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.workers
		droppedRequests.Inc()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			<-s.workers
			s.inflight.Done()
		}()
		s.process(payload)
	}()
}

// process handles a single request and publishes its reply
func (s *RPCServer) process(payload []byte) {
	start := time.Now()

	req, err := s.decodeRequest(payload)
	if err != nil {
		malformedRequests.Inc()
		correlationID, replyTo := recoverEnvelope(payload)
		if correlationID == "" {
			Logger.Warningf("dropping malformed request without correlation id: %v", err)
			return
		}
		Logger.Warningf("malformed request %s: %v", correlationID, err)
		s.reply(common.NewErrorReply(correlationID, MsgMalformedRequest), s.replyTopic(replyTo))
		return
	}

	op, result, err := s.dispatch(req.Data)

	var reply *common.ReplyEnvelope
	if err != nil {
		reply = common.NewErrorReply(req.CorrelationID, err.Error())
	} else if data, mErr := json.Marshal(result); mErr != nil {
		Logger.Errorf("failed to encode result of %s: %v", op, mErr)
		reply = common.NewErrorReply(req.CorrelationID, MsgInternalError)
	} else {
		reply = common.NewSuccessReply(req.CorrelationID, data)
	}

	outcome := "success"
	if reply.IsError() {
		outcome = "error"
	}
	countRequest(op, outcome)
	s.stats.Compute(op, func(n uint64, _ bool) (uint64, bool) { return n + 1, false })

	Logger.Debugf("request %s (%s) processed in %s: %s", req.CorrelationID, op, time.Since(start), outcome)

	s.reply(reply, s.replyTopic(req.ReplyTo))
	requestDuration.UpdateDuration(start)
}

// decodeRequest decodes a request envelope. Undecodable envelopes and
// envelopes without a correlation id are reported as malformed.
func (s *RPCServer) decodeRequest(payload []byte) (*common.RequestEnvelope, error) {
	var req common.RequestEnvelope
	if err := s.serializer.Deserialize(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedMessage, err)
	}
	if req.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlation id", common.ErrMalformedMessage)
	}
	return &req, nil
}

// dispatch resolves the operation of a request and runs it. The returned op
// is the canonical key, or "unknown".
func (s *RPCServer) dispatch(data json.RawMessage) (op string, result any, err error) {
	var header common.OperationHeader
	_ = json.Unmarshal(data, &header) // a missing operation is reported below

	op, ok := s.table.Lookup(header.Operation)
	if !ok {
		return "unknown", nil, common.NewBusinessError(MsgUnknownOperation + header.Operation)
	}

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("panic while handling %s: %v", op, r)
			result, err = nil, errors.New(MsgInternalError)
		}
	}()

	result, err = s.adapter.Handle(op, data)
	return op, result, err
}

// reply publishes a reply envelope. The publish outlives a cancelled serve
// context so in-flight requests are still answered during shutdown.
func (s *RPCServer) reply(reply *common.ReplyEnvelope, topic string) {
	msg, err := s.serializer.Serialize(reply)
	if err != nil {
		failedReplies.Inc()
		Logger.Errorf("failed to serialize reply %s: %v", reply.CorrelationID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.serveCtx), s.config.Broker.WriteTimeout())
	defer cancel()

	if err := s.transport.Publish(ctx, topic, msg); err != nil {
		failedReplies.Inc()
		Logger.Errorf("failed to publish reply %s to %s: %v", reply.CorrelationID, topic, err)
	}
}

func (s *RPCServer) replyTopic(replyTo string) string {
	if replyTo == "" {
		return s.config.GetDefaultReplyTopic()
	}
	return replyTo
}

// recoverEnvelope extracts the correlation id and reply topic of a request
// that could not be decoded as a whole
func recoverEnvelope(payload []byte) (correlationID, replyTo string) {
	var lenient map[string]json.RawMessage
	if err := json.Unmarshal(payload, &lenient); err != nil {
		return "", ""
	}
	_ = json.Unmarshal(lenient["correlationId"], &correlationID)
	_ = json.Unmarshal(lenient["replyTo"], &replyTo)
	return correlationID, replyTo
}
