package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("engine")

// Callback is invoked exactly once per request, either with the data of a
// successful reply or with an error. Callbacks of replies run on the reply
// subscription and must not block.
type Callback func(data json.RawMessage, err error)

// State is the lifecycle state of a request
type State int32

const (
	StateCreated State = iota
	StateSent
	StateCompleted
	StateTimedOut
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateSent:
		return "SENT"
	case StateCompleted:
		return "COMPLETED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateCanceled:
		return "CANCELED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

const (
	outcomeSuccess   = "success"
	outcomeBusiness  = "business_error"
	outcomeTimeout   = "timeout"
	outcomeCanceled  = "canceled"
	outcomeTransport = "transport_error"
	outcomeClosed    = "closed"
	outcomeInvalid   = "invalid_request"

	dropMalformed = "malformed"
	dropUnknown   = "unknown_id"
)

// pendingTotal counts the pending requests of all engines in the process
var pendingTotal atomic.Int64

var (
	_               = metrics.NewGauge("krpc_engine_pending_requests", func() float64 { return float64(pendingTotal.Load()) })
	requestDuration = metrics.GetOrCreateHistogram("krpc_engine_request_duration_seconds")
)

func countRequest(outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`krpc_engine_requests_total{outcome=%q}`, outcome)).Inc()
}

func countDroppedReply(reason string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`krpc_engine_dropped_replies_total{reason=%q}`, reason)).Inc()
}

// --------------------------------------------------------------------------
// Pending request entry
// --------------------------------------------------------------------------

// pendingRequest is an entry of the pending table. It is owned by the
// engine and removed by the first terminator (reply, timeout, publish
// failure, cancel or close).
type pendingRequest struct {
	id         string
	topic      string
	onComplete Callback
	createdAt  time.Time
	state      atomic.Int32

	mu      sync.Mutex
	timer   *time.Timer
	stopCtx func() bool
	done    bool
}

// arm starts the timeout unless the request is already done
func (p *pendingRequest) arm(d time.Duration, onTimeout func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.timer = time.AfterFunc(d, onTimeout)
}

// watch cancels the request when ctx is done
func (p *pendingRequest) watch(ctx context.Context, onDone func()) {
	if ctx.Done() == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.stopCtx = context.AfterFunc(ctx, onDone)
}

// stop disarms the timeout and the context watch
func (p *pendingRequest) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.stopCtx != nil {
		p.stopCtx()
	}
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Engine correlates requests published to request topics with the replies
// arriving on the reply topic of the engine
type Engine struct {
	config     common.ClientConfig
	transport  transport.IRPCBrokerTransport
	serializer serializer.IRPCSerializer

	pending *xsync.MapOf[string, *pendingRequest]

	subMu sync.Mutex
	sub   transport.ISubscription

	closed atomic.Bool
}

// NewEngine creates a new engine. The transport must already be connected,
// the reply subscription is created with the first request.
func NewEngine(config common.ClientConfig, transport transport.IRPCBrokerTransport, serializer serializer.IRPCSerializer) *Engine {
	return &Engine{
		config:     config,
		transport:  transport,
		serializer: serializer,
		pending:    xsync.NewMapOf[string, *pendingRequest](),
	}
}

// MakeRequest publishes payload to topic and returns the correlation id of
// the request. The publish happens in the background, onComplete is called
// exactly once with the outcome. Cancelling ctx cancels the request.
func (e *Engine) MakeRequest(ctx context.Context, topic string, payload any, onComplete Callback) string {
	if onComplete == nil {
		onComplete = func(json.RawMessage, error) {}
	}

	id, err := e.register(topic, onComplete)
	if err != nil {
		countRequest(outcomeInvalid)
		onComplete(nil, err)
		return id
	}

	if e.closed.Load() {
		e.finish(id, StateFailed, outcomeClosed, nil, common.ErrEngineClosed)
		return id
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.finish(id, StateFailed, outcomeInvalid, nil, fmt.Errorf("failed to encode payload: %w", err))
		return id
	}

	p, ok := e.pending.Load(id)
	if !ok {
		return id
	}
	timeout := e.config.Timeout()
	p.arm(timeout, func() {
		e.finish(id, StateTimedOut, outcomeTimeout, nil, &common.TimeoutError{CorrelationID: id, After: timeout})
	})
	p.watch(ctx, func() {
		e.finish(id, StateCanceled, outcomeCanceled, nil, fmt.Errorf("%w: %w", common.ErrCanceled, context.Cause(ctx)))
	})

	replyTo := e.config.GetReplyTopic()
	if err := e.ensureSubscription(); err != nil {
		outcome := outcomeTransport
		if errors.Is(err, common.ErrEngineClosed) {
			outcome = outcomeClosed
		}
		e.finish(id, StateFailed, outcome, nil, err)
		return id
	}

	// Close may have drained the table between registration and now
	if e.closed.Load() {
		e.finish(id, StateFailed, outcomeClosed, nil, common.ErrEngineClosed)
		return id
	}

	envelope := common.NewRequestEnvelope(id, replyTo, data)
	msg, err := e.serializer.Serialize(envelope)
	if err != nil {
		e.finish(id, StateFailed, outcomeInvalid, nil, fmt.Errorf("failed to serialize request: %w", err))
		return id
	}

	Logger.Debugf("sending request %s to %s (reply to %s)", id, topic, replyTo)

	// values of ctx are kept but the publish outlives the caller
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	go func() {
		defer cancel()
		if err := e.transport.Publish(publishCtx, topic, msg); err != nil {
			e.finish(id, StateFailed, outcomeTransport, nil, &common.TransportError{Op: "publish", Topic: topic, Err: err})
			return
		}
		p.state.CompareAndSwap(int32(StateCreated), int32(StateSent))
	}()

	return id
}

// Call sends a request and blocks until it completes. Cancelling ctx cancels
// the request, the returned error then wraps common.ErrCanceled and the
// cause of ctx.
func (e *Engine) Call(ctx context.Context, topic string, payload any) (json.RawMessage, error) {
	type result struct {
		data json.RawMessage
		err  error
	}
	ch := make(chan result, 1)
	e.MakeRequest(ctx, topic, payload, func(data json.RawMessage, err error) {
		ch <- result{data: data, err: err}
	})
	r := <-ch
	return r.data, r.err
}

// Cancel completes a pending request with common.ErrCanceled. It returns
// false if the request is unknown or already completed.
func (e *Engine) Cancel(correlationID string) bool {
	return e.finish(correlationID, StateCanceled, outcomeCanceled, nil, common.ErrCanceled)
}

// Pending returns the number of outstanding requests
func (e *Engine) Pending() int {
	return e.pending.Size()
}

// Close closes the reply subscription and fails every pending request with
// common.ErrEngineClosed. Later requests fail immediately with the same
// error. The transport is not closed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	var err error
	e.subMu.Lock()
	if e.sub != nil {
		err = e.sub.Close()
		e.sub = nil
	}
	e.subMu.Unlock()

	failed := 0
	e.pending.Range(func(id string, _ *pendingRequest) bool {
		if e.finish(id, StateFailed, outcomeClosed, nil, common.ErrEngineClosed) {
			failed++
		}
		return true
	})
	if failed > 0 {
		Logger.Warningf("engine closed with %d pending requests", failed)
	}

	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// register creates a pending entry with a fresh correlation id
func (e *Engine) register(topic string, onComplete Callback) (string, error) {
	for {
		id, err := newCorrelationID()
		if err != nil {
			return "", err
		}
		p := &pendingRequest{
			id:         id,
			topic:      topic,
			onComplete: onComplete,
			createdAt:  time.Now(),
		}
		if _, loaded := e.pending.LoadOrStore(id, p); !loaded {
			pendingTotal.Add(1)
			return id, nil
		}
		Logger.Warningf("correlation id collision on %s, generating a new one", id)
	}
}

// ensureSubscription subscribes to the reply topic once per engine
func (e *Engine) ensureSubscription() error {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if e.closed.Load() {
		return common.ErrEngineClosed
	}
	if e.sub != nil {
		return nil
	}

	topic := e.config.GetReplyTopic()
	sub, err := e.transport.Subscribe(topic, e.handleReply)
	if err != nil {
		return &common.TransportError{Op: "subscribe", Topic: topic, Err: err}
	}
	e.sub = sub
	Logger.Infof("listening for replies on %s", topic)
	return nil
}

// handleReply is the handler of the reply subscription
func (e *Engine) handleReply(topic string, payload []byte) {
	reply, err := e.decodeReply(payload)
	if err != nil {
		countDroppedReply(dropMalformed)
		Logger.Warningf("dropping reply on %s: %v", topic, err)
		return
	}

	var (
		data    json.RawMessage
		outcome = outcomeSuccess
	)
	if reply.IsError() {
		err = common.NewBusinessError(reply.ErrorMessage())
		outcome = outcomeBusiness
	} else {
		data = reply.Data
	}

	if !e.finish(reply.CorrelationID, StateCompleted, outcome, data, err) {
		// timed out, cancelled or addressed to another client on a shared topic
		countDroppedReply(dropUnknown)
		Logger.Debugf("dropping reply for unknown request %s", reply.CorrelationID)
	}
}

// decodeReply decodes a reply envelope. Undecodable envelopes and envelopes
// without a correlation id are reported as malformed.
func (e *Engine) decodeReply(payload []byte) (*common.ReplyEnvelope, error) {
	var reply common.ReplyEnvelope
	if err := e.serializer.Deserialize(payload, &reply); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedMessage, err)
	}
	if reply.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlation id", common.ErrMalformedMessage)
	}
	return &reply, nil
}

// finish removes the entry and invokes its callback. Only the first caller
// for an id wins, it returns false for every other caller.
func (e *Engine) finish(id string, state State, outcome string, data json.RawMessage, err error) bool {
	p, ok := e.pending.LoadAndDelete(id)
	if !ok {
		return false
	}
	p.stop()
	prev := State(p.state.Swap(int32(state)))
	pendingTotal.Add(-1)

	countRequest(outcome)
	requestDuration.UpdateDuration(p.createdAt)

	switch state {
	case StateCompleted:
		Logger.Debugf("request %s to %s completed after %s", id, p.topic, time.Since(p.createdAt))
	case StateTimedOut:
		Logger.Warningf("request %s to %s timed out (state %s)", id, p.topic, prev)
	default:
		Logger.Debugf("request %s to %s ended in state %s: %v", id, p.topic, state, err)
	}

	p.onComplete(data, err)
	return true
}

// newCorrelationID returns 16 random bytes, hex encoded
func newCorrelationID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
