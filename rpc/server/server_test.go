package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/lib/users/lstore"
	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/ValentinKolb/kRPC/rpc/transport/memory"
)

const (
	requestTopic = "requests"
	replyTopic   = "replies"
)

// testBench runs a server on a memory broker and collects the replies
// published to the reply topics
type testBench struct {
	t       *testing.T
	broker  *memory.Broker
	client  transport.IRPCBrokerTransport
	server  *RPCServer
	replies chan *common.ReplyEnvelope
}

func newTestBench(t *testing.T, config common.ServerConfig) *testBench {
	t.Helper()
	b := memory.NewBroker()

	connect := func() transport.IRPCBrokerTransport {
		tr := memory.NewMemoryTransport(b)
		if err := tr.Connect(common.BrokerConfig{}); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		t.Cleanup(func() { tr.Close() })
		return tr
	}

	config.RequestTopic = requestTopic
	s := NewRPCServer(config, connect(), serializer.NewJSONSerializer(), NewUserServerAdapter(lstore.NewLocalStore()))

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-served; err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	})

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatalf("Server did not subscribe")
	}

	bench := &testBench{
		t:       t,
		broker:  b,
		client:  connect(),
		server:  s,
		replies: make(chan *common.ReplyEnvelope, 100),
	}
	for _, topic := range []string{replyTopic, common.DefaultReplyTopic} {
		_, err := bench.client.Subscribe(topic, func(_ string, payload []byte) {
			var reply common.ReplyEnvelope
			if err := json.Unmarshal(payload, &reply); err != nil {
				t.Errorf("Invalid reply %s: %v", payload, err)
				return
			}
			bench.replies <- &reply
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}
	return bench
}

// send publishes a raw request
func (b *testBench) send(raw string) {
	b.t.Helper()
	if err := b.client.Publish(context.Background(), requestTopic, []byte(raw)); err != nil {
		b.t.Fatalf("Publish failed: %v", err)
	}
}

// call sends a request envelope with the given data and waits for the reply
func (b *testBench) call(id string, data any) *common.ReplyEnvelope {
	b.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		b.t.Fatalf("Failed to encode data: %v", err)
	}
	msg, _ := json.Marshal(common.NewRequestEnvelope(id, replyTopic, raw))
	b.send(string(msg))
	return b.next()
}

func (b *testBench) next() *common.ReplyEnvelope {
	b.t.Helper()
	select {
	case reply := <-b.replies:
		return reply
	case <-time.After(2 * time.Second):
		b.t.Fatalf("No reply received")
		return nil
	}
}

// TestServerScenario runs the user CRUD flow with raw envelopes
func TestServerScenario(t *testing.T) {
	bench := newTestBench(t, common.ServerConfig{})

	reply := bench.call("c1", map[string]any{"operation": "CREATE USER", "name": "Bob", "email": "bob@work.com", "age": 25})
	if reply.CorrelationID != "c1" || reply.IsError() {
		t.Fatalf("Unexpected create reply: %+v", reply)
	}
	var created common.CreateUserResult
	if err := json.Unmarshal(reply.Data, &created); err != nil || !created.Success {
		t.Fatalf("Unexpected create data %s: %v", reply.Data, err)
	}

	reply = bench.call("u1", map[string]any{"operation": "update_user", "userId": created.UserID, "updates": map[string]any{"age": -5}})
	if reply.ErrorMessage() != users.MsgInvalidAge {
		t.Errorf("Expected %q, got %+v", users.MsgInvalidAge, reply)
	}

	reply = bench.call("g1", map[string]any{"operation": "getUser", "userId": created.UserID})
	var got common.GetUserResult
	if err := json.Unmarshal(reply.Data, &got); err != nil || got.User.Age != 25 {
		t.Errorf("Failed update must not change the user, got %s", reply.Data)
	}

	reply = bench.call("d1", map[string]any{"operation": "delete-user", "userId": created.UserID})
	if reply.IsError() {
		t.Errorf("Delete failed: %s", reply.ErrorMessage())
	}
	reply = bench.call("g2", map[string]any{"operation": "GET_USER", "userId": created.UserID})
	if reply.ErrorMessage() != users.MsgUserNotFound {
		t.Errorf("Expected %q, got %+v", users.MsgUserNotFound, reply)
	}

	reply = bench.call("x1", map[string]any{"operation": "SOMETHING_ELSE"})
	if reply.ErrorMessage() != "Unknown operation: SOMETHING_ELSE" {
		t.Errorf("Unexpected reply for unknown operation: %+v", reply)
	}
	reply = bench.call("x2", map[string]any{"name": "no operation"})
	if reply.ErrorMessage() != "Unknown operation: " {
		t.Errorf("Unexpected reply for missing operation: %+v", reply)
	}

	stats := bench.server.Stats()
	if stats[common.OpGetUser] != 2 || stats[common.OpCreateUser] != 1 || stats["unknown"] != 2 {
		t.Errorf("Unexpected stats: %v", stats)
	}
}

// TestMalformedRequests tests the handling of requests that cannot be decoded
func TestMalformedRequests(t *testing.T) {
	// a single worker keeps the replies in order
	bench := newTestBench(t, common.ServerConfig{MaxWorkers: 1})

	// undecodable timestamp, the correlation id is recovered
	bench.send(`{"correlationId":"m1","replyTo":"replies","data":{"operation":"LIST_USERS"},"timestamp":"yesterday"}`)
	reply := bench.next()
	if reply.CorrelationID != "m1" || reply.ErrorMessage() != MsgMalformedRequest {
		t.Errorf("Expected malformed reply for m1, got %+v", reply)
	}

	// nothing to recover, dropped
	bench.send(`this is not json`)
	bench.send(`{"replyTo":"replies","data":{"operation":"LIST_USERS"}}`)

	// missing replyTo goes to the default reply topic
	bench.send(`{"correlationId":"m2","data":{"operation":"LIST_USERS"}}`)
	reply = bench.next()
	if reply.CorrelationID != "m2" || reply.IsError() {
		t.Errorf("Expected list reply for m2, got %+v", reply)
	}
	var list common.ListUsersResult
	if err := json.Unmarshal(reply.Data, &list); err != nil || !list.Success || list.Count != 0 {
		t.Errorf("Unexpected list data %s: %v", reply.Data, err)
	}

	select {
	case reply := <-bench.replies:
		t.Errorf("Unexpected reply: %+v", reply)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestServerConcurrency tests that every request gets exactly one reply with limited workers
func TestServerConcurrency(t *testing.T) {
	bench := newTestBench(t, common.ServerConfig{MaxWorkers: 4, RateLimit: 10000, RateBurst: 10})

	const n = 50
	for i := 0; i < n; i++ {
		raw, _ := json.Marshal(common.NewRequestEnvelope(
			string(rune('a'+i%26))+string(rune('0'+i/26)),
			replyTopic,
			json.RawMessage(`{"operation":"CREATE_USER","name":"User","email":"user@example.com","age":20}`),
		))
		bench.send(string(raw))
	}

	seen := make(map[string]int)
	for i := 0; i < n; i++ {
		reply := bench.next()
		if reply.IsError() {
			t.Errorf("Request %s failed: %s", reply.CorrelationID, reply.ErrorMessage())
		}
		seen[reply.CorrelationID]++
	}
	if len(seen) != n {
		t.Errorf("Expected %d distinct replies, got %d", n, len(seen))
	}
}

// TestServeTwice tests that a server can only serve once
func TestServeTwice(t *testing.T) {
	bench := newTestBench(t, common.ServerConfig{})
	if err := bench.server.Serve(context.Background()); err == nil {
		t.Errorf("Second Serve should fail")
	}
}

// TestReady tests that Ready is closed once the request topic is consumed
func TestReady(t *testing.T) {
	b := memory.NewBroker()
	tr := memory.NewMemoryTransport(b)
	tr.Connect(common.BrokerConfig{})
	defer tr.Close()

	s := NewRPCServer(common.ServerConfig{RequestTopic: requestTopic}, tr, serializer.NewJSONSerializer(), NewUserServerAdapter(lstore.NewLocalStore()))
	select {
	case <-s.Ready():
		t.Fatalf("Ready closed before Serve")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatalf("Ready not closed after Serve")
	}
	if n := b.Subscribers(requestTopic); n != 1 {
		t.Errorf("Expected 1 subscriber once ready, got %d", n)
	}

	cancel()
	if err := <-served; err != nil {
		t.Errorf("Serve failed: %v", err)
	}
}

// TestCloseWaitsForInflight tests that Close waits for running requests
func TestCloseWaitsForInflight(t *testing.T) {
	b := memory.NewBroker()
	tr := memory.NewMemoryTransport(b)
	tr.Connect(common.BrokerConfig{})
	defer tr.Close()

	block := make(chan struct{})
	var handled sync.WaitGroup
	handled.Add(1)
	adapter := &blockingAdapter{block: block, handled: &handled}
	s := NewRPCServer(common.ServerConfig{RequestTopic: requestTopic}, tr, serializer.NewJSONSerializer(), adapter)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()
	<-s.Ready()

	msg, _ := json.Marshal(common.NewRequestEnvelope("slow", replyTopic, json.RawMessage(`{"operation":"SLOW"}`)))
	tr.Publish(context.Background(), requestTopic, msg)
	handled.Wait()

	cancel()
	select {
	case <-served:
		t.Fatalf("Serve returned before the in-flight request finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return")
	}
}

type blockingAdapter struct {
	block   chan struct{}
	handled *sync.WaitGroup
}

func (a *blockingAdapter) Operations() []string { return []string{"SLOW"} }

func (a *blockingAdapter) Handle(string, json.RawMessage) (any, error) {
	a.handled.Done()
	<-a.block
	return "done", nil
}

// TestDecodeRequest tests that broken request envelopes are classified as malformed
func TestDecodeRequest(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{}, memory.NewMemoryTransport(memory.NewBroker()), serializer.NewJSONSerializer(), NewUserServerAdapter(lstore.NewLocalStore()))

	for _, payload := range []string{`{`, `[]`, `{"replyTo":"x","data":{}}`, `{"correlationId":42}`} {
		if _, err := s.decodeRequest([]byte(payload)); !errors.Is(err, common.ErrMalformedMessage) {
			t.Errorf("Expected ErrMalformedMessage for %s, got %v", payload, err)
		}
	}

	req, err := s.decodeRequest([]byte(`{"correlationId":"abc","replyTo":"x","data":{"operation":"LIST_USERS"}}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.CorrelationID != "abc" || req.ReplyTo != "x" {
		t.Errorf("Unexpected envelope: %+v", req)
	}
}
