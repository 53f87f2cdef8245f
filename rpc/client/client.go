package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/engine"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// RPCClient sends requests over a broker transport and waits for the
// correlated replies. It adds request and outcome logging to an engine.
type RPCClient struct {
	config    common.ClientConfig
	transport transport.IRPCBrokerTransport
	engine    *engine.Engine
}

// NewRPCClient connects the transport and creates a new client
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCBrokerTransport,
	serializer serializer.IRPCSerializer,
) (*RPCClient, error) {

	// Connect the transport
	if err := transport.Connect(config.Broker); err != nil {
		return nil, err
	}

	Logger.Debugf(config.String())

	return &RPCClient{
		config:    config,
		transport: transport,
		engine:    engine.NewEngine(config, transport, serializer),
	}, nil
}

// MakeRequest sends payload to topic and returns the correlation id. The
// callback is invoked exactly once with the outcome.
func (c *RPCClient) MakeRequest(ctx context.Context, topic string, payload any, onComplete engine.Callback) string {
	start := time.Now()

	// the callback may run before MakeRequest returns
	var idRef atomic.Pointer[string]
	id := c.engine.MakeRequest(ctx, topic, payload, func(data json.RawMessage, err error) {
		id := "-"
		if p := idRef.Load(); p != nil {
			id = *p
		}
		c.logOutcome(id, topic, start, data, err)
		if onComplete != nil {
			onComplete(data, err)
		}
	})
	idRef.Store(&id)
	c.logRequest(id, topic, payload)
	return id
}

// Call sends payload to topic and blocks until the reply arrives, the
// request times out or ctx is done
func (c *RPCClient) Call(ctx context.Context, topic string, payload any) (json.RawMessage, error) {
	type result struct {
		data json.RawMessage
		err  error
	}
	ch := make(chan result, 1)
	c.MakeRequest(ctx, topic, payload, func(data json.RawMessage, err error) {
		ch <- result{data: data, err: err}
	})
	r := <-ch
	return r.data, r.err
}

// Cancel cancels a pending request
func (c *RPCClient) Cancel(correlationID string) bool {
	return c.engine.Cancel(correlationID)
}

// Pending returns the number of outstanding requests
func (c *RPCClient) Pending() int {
	return c.engine.Pending()
}

// Close closes the engine and the transport
func (c *RPCClient) Close() error {
	return errors.Join(c.engine.Close(), c.transport.Close())
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

func (c *RPCClient) logRequest(id, topic string, payload any) {
	Logger.Debugf("request %s to %s:\n%s", id, topic, prettyJSON(payload))
}

func (c *RPCClient) logOutcome(id, topic string, start time.Time, data json.RawMessage, err error) {
	elapsed := time.Since(start).Round(time.Microsecond)
	switch {
	case err == nil:
		Logger.Infof("request %s to %s succeeded in %s", id, topic, elapsed)
		Logger.Debugf("response %s:\n%s", id, prettyJSON(data))
	case errors.Is(err, common.ErrBusiness):
		Logger.Infof("request %s to %s failed in %s: %v", id, topic, elapsed, err)
	default:
		Logger.Warningf("request %s to %s failed in %s: %v", id, topic, elapsed, err)
	}
}

// prettyJSON formats a value for the debug log
func prettyJSON(v any) string {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return string(raw)
		}
		v = decoded
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "<unprintable>"
	}
	return string(b)
}
