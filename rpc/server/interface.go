package server

import (
	"encoding/json"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It connects the operations of a service to the request data.
type IRPCServerAdapter interface {
	// Operations returns the canonical keys of the operations the adapter
	// handles. They are registered in the operation table of the server.
	Operations() []string
	// Handle executes a canonical operation with the data of the request.
	// The returned value is sent as reply data, a returned error is sent as
	// the error message of the reply.
	Handle(op string, data json.RawMessage) (result any, err error)
}
