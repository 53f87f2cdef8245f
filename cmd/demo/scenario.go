package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/kRPC/rpc/client"
	"github.com/ValentinKolb/kRPC/rpc/common"
)

// Summary holds the counts reported by the demo
type Summary struct {
	FirstListCount int
	FinalListCount int
	Errors         []string
}

type caller interface {
	Call(ctx context.Context, topic string, payload any) (json.RawMessage, error)
}

var _ caller = (*client.RPCClient)(nil)

// Run executes the demo scenario, writes its progress to out and returns
// its summary. Business errors of the error cases are expected and collected
// in the summary.
func Run(ctx context.Context, c caller, topic string, out io.Writer) (*Summary, error) {
	summary := &Summary{}

	call := func(payload map[string]any, result any) error {
		data, err := c.Call(ctx, topic, payload)
		if err != nil {
			fmt.Fprintf(out, "  ✗ %v -> %v\n", payload["operation"], err)
			return err
		}
		fmt.Fprintf(out, "  ✓ %v -> %s\n", payload["operation"], data)
		if result == nil {
			return nil
		}
		return json.Unmarshal(data, result)
	}

	fmt.Fprintln(out, "─ DEMO START ─")

	// PART 1
	fmt.Fprintln(out, "\n# PART 1: CREATE 3 users + LIST")
	var alice, bob, charlie common.CreateUserResult
	if err := call(map[string]any{"operation": "CREATE_USER", "name": "Alice", "email": "alice@example.com", "age": 28}, &alice); err != nil {
		return nil, err
	}
	if err := call(map[string]any{"operation": "CREATE USER", "name": "Bob", "email": "bob@work.com", "age": 34}, &bob); err != nil {
		return nil, err
	}
	if err := call(map[string]any{"operation": "create_user", "name": "Charlie", "email": "charlie@mail.net", "age": 41}, &charlie); err != nil {
		return nil, err
	}
	var list common.ListUsersResult
	if err := call(map[string]any{"operation": common.OpListUsers}, &list); err != nil {
		return nil, err
	}
	summary.FirstListCount = list.Count
	fmt.Fprintf(out, "SUMMARY → First list count: %d\n", list.Count)

	// PART 2
	fmt.Fprintln(out, "\n# PART 2: GET, UPDATE, DELETE")
	if err := call(map[string]any{"operation": common.OpGetUser, "userId": alice.UserID}, nil); err != nil {
		return nil, err
	}
	updates := map[string]any{"age": 35, "email": "bob+updated@work.com"}
	if err := call(map[string]any{"operation": common.OpUpdateUser, "userId": bob.UserID, "updates": updates}, nil); err != nil {
		return nil, err
	}
	if err := call(map[string]any{"operation": common.OpDeleteUser, "userId": charlie.UserID}, nil); err != nil {
		return nil, err
	}

	// PART 3
	fmt.Fprintln(out, "\n# PART 3: Final LIST + Errors")
	list = common.ListUsersResult{}
	if err := call(map[string]any{"operation": common.OpListUsers}, &list); err != nil {
		return nil, err
	}
	summary.FinalListCount = list.Count
	fmt.Fprintf(out, "SUMMARY → Final list count: %d\n", list.Count)

	errorCases := []map[string]any{
		{"operation": common.OpCreateUser, "name": "Bad", "email": "not-an-email", "age": 20},
		{"operation": common.OpGetUser, "userId": "00000000-0000-0000-0000-000000000000"},
		{"operation": common.OpUpdateUser, "userId": alice.UserID, "updates": map[string]any{"age": -5}},
		{"operation": "SOMETHING_ELSE"},
	}
	for _, payload := range errorCases {
		err := call(payload, nil)
		if err == nil {
			return nil, fmt.Errorf("expected %v to fail", payload["operation"])
		}
		if !errors.Is(err, common.ErrBusiness) {
			return nil, err
		}
		summary.Errors = append(summary.Errors, err.Error())
	}

	fmt.Fprintln(out, "\n─ DEMO END ─")
	return summary, nil
}
