// Package client implements the caller side of kRPC.
//
// RPCClient wraps an engine.Engine: it connects the transport, sends
// requests and logs every request with its outcome. Call blocks until the
// reply arrives, MakeRequest reports the outcome to a callback.
//
// NewRPCUserStore provides a users.IUserStore whose methods are executed by
// a remote user service. It implements the same interface as the local store
// in lib/users/lstore, so callers can switch between both without changes.
// Error replies carrying a message of the users package are returned as the
// matching *users.Error, all other failures (timeouts, transport errors,
// unknown operations) are returned as reported by the engine.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Broker:             common.BrokerConfig{Brokers: []string{"localhost:9092"}},
//	  ReplyTopic:         "response_topic",
//	  TimeoutMillisecond: 8000,
//	}
//
//	store, err := client.NewRPCUserStore(config, "request_topic", kafka.NewKafkaTransport(), serializer.NewJSONSerializer())
//	if err != nil {
//	  log.Fatalf("Failed to create store: %v", err)
//	}
//	defer client.CloseUserStore(store)
//
//	id, err := store.Create("Alice", "alice@example.com", 30)
package client
