// Package server implements the service handler side of kRPC.
//
// An RPCServer consumes request envelopes from a request topic, resolves the
// requested operation through an OperationTable and hands the request data to
// an IRPCServerAdapter. The result (or the error message) is wrapped in a
// reply envelope and published to the replyTo topic of the request, falling
// back to the default reply topic of the configuration.
//
// Key Components:
//
//   - IRPCServerAdapter: connects a service to the server. It names the
//     operations it handles and executes them on the raw request data.
//
//   - NewUserServerAdapter: adapter for the user CRUD operations
//     (CREATE_USER, GET_USER, UPDATE_USER, DELETE_USER, LIST_USERS) on top of
//     a users.IUserStore. Request members are decoded one by one so a field
//     with the wrong type is reported with the message of that field.
//
//   - OperationTable: maps folded operation names to canonical keys, e.g.
//     "create user", "createUser" and "create-user" all resolve to
//     CREATE_USER. Anything else is answered with "Unknown operation: <name>".
//
//   - NewRPCServer: creates the server for a connected transport.
//
// Requests are processed by at most ServerConfig.MaxWorkers goroutines and
// optionally rate limited (ServerConfig.RateLimit, ServerConfig.RateBurst).
// Requests that cannot be decoded are answered with "Malformed request" if
// their correlation id can be recovered and dropped otherwise.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Broker:       common.BrokerConfig{Brokers: []string{"localhost:9092"}},
//	  RequestTopic: "request_topic",
//	  MaxWorkers:   16,
//	}
//
//	t := kafka.NewKafkaTransport()
//	if err := t.Connect(config.Broker); err != nil {
//	  log.Fatalf("Connect failed: %v", err)
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  t,
//	  serializer.NewJSONSerializer(),
//	  server.NewUserServerAdapter(lstore.NewLocalStore()),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
