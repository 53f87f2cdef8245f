package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/lib/users/lstore"
	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/server"
	"github.com/ValentinKolb/kRPC/rpc/transport/memory"
)

// startUserService runs a user service on the broker until the test ends
func startUserService(t *testing.T, b *memory.Broker, ser serializer.IRPCSerializer) {
	t.Helper()
	tr := memory.NewMemoryTransport(b)
	if err := tr.Connect(common.BrokerConfig{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	s := server.NewRPCServer(common.ServerConfig{}, tr, ser, server.NewUserServerAdapter(lstore.NewLocalStore()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Serve(ctx); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		tr.Close()
	})

	<-s.Ready()
}

func newClient(t *testing.T, b *memory.Broker, ser serializer.IRPCSerializer, timeout time.Duration) *RPCClient {
	t.Helper()
	config := common.ClientConfig{TimeoutMillisecond: int(timeout / time.Millisecond)}
	c, err := NewRPCClient(config, memory.NewMemoryTransport(b), ser)
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestUserStoreScenario runs the user CRUD flow against a remote service
func TestUserStoreScenario(t *testing.T) {
	for _, name := range []string{"json", "gob"} {
		t.Run(name, func(t *testing.T) {
			ser, err := serializer.NewSerializer(name)
			if err != nil {
				t.Fatalf("NewSerializer failed: %v", err)
			}
			b := memory.NewBroker()
			startUserService(t, b, ser)
			store := NewUserStoreForClient(newClient(t, b, ser, 2*time.Second), common.DefaultRequestTopic)

			// create and read back
			aliceID, err := store.Create("Alice", "alice@example.com", 30)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if aliceID == "" {
				t.Fatalf("Create returned an empty id")
			}
			alice, err := store.Get(aliceID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if alice.Name != "Alice" || alice.Email != "alice@example.com" || alice.Age != 30 || alice.UserID != aliceID {
				t.Errorf("Unexpected user: %+v", alice)
			}

			bobID, _ := store.Create("Bob", "bob@work.com", 25)
			charlieID, _ := store.Create("Charlie", "charlie@example.com", 41)

			// invalid update leaves the record unchanged
			age := -5
			if _, err := store.Update(bobID, users.Updates{Age: &age}); err != users.ErrInvalidAge {
				t.Errorf("Expected %v, got %v", users.ErrInvalidAge, err)
			}
			if bob, _ := store.Get(bobID); bob.Age != 25 {
				t.Errorf("Failed update changed the user: %+v", bob)
			}

			age = 35
			email := "bob+updated@work.com"
			bob, err := store.Update(bobID, users.Updates{Age: &age, Email: &email})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if bob.Age != 35 || bob.Email != email || bob.Name != "Bob" {
				t.Errorf("Unexpected updated user: %+v", bob)
			}

			// delete then get
			if err := store.Delete(charlieID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Get(charlieID); err != users.ErrUserNotFound {
				t.Errorf("Expected %v, got %v", users.ErrUserNotFound, err)
			}

			list, err := store.List()
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != 2 || list[0].UserID != aliceID || list[1].UserID != bobID {
				t.Errorf("Unexpected list: %+v", list)
			}

			// validation errors
			if _, err := store.Create("Dave", "invalid-email", 20); err != users.ErrInvalidEmail {
				t.Errorf("Expected %v, got %v", users.ErrInvalidEmail, err)
			}
			if _, err := store.Get("00000000-0000-0000-0000-000000000000"); err != users.ErrUserNotFound {
				t.Errorf("Expected %v, got %v", users.ErrUserNotFound, err)
			}
		})
	}
}

// TestCallOperationNames tests the operation name variants and unknown operations
func TestCallOperationNames(t *testing.T) {
	b := memory.NewBroker()
	ser := serializer.NewJSONSerializer()
	startUserService(t, b, ser)
	c := newClient(t, b, ser, 2*time.Second)

	for _, op := range []string{"CREATE_USER", "CREATE USER", "create_user", "createUser"} {
		payload := map[string]any{"operation": op, "name": "Eve", "email": "eve@example.com", "age": 22}
		if _, err := c.Call(context.Background(), common.DefaultRequestTopic, payload); err != nil {
			t.Errorf("Call with operation %q failed: %v", op, err)
		}
	}

	_, err := c.Call(context.Background(), common.DefaultRequestTopic, map[string]any{"operation": "SOMETHING_ELSE"})
	if !errors.Is(err, common.ErrBusiness) || err.Error() != "Unknown operation: SOMETHING_ELSE" {
		t.Errorf("Expected unknown operation error, got %v", err)
	}
}

// TestTimeoutWithoutConsumer tests that a request nobody consumes times out
func TestTimeoutWithoutConsumer(t *testing.T) {
	b := memory.NewBroker()
	store := NewUserStoreForClient(newClient(t, b, serializer.NewJSONSerializer(), 100*time.Millisecond), "nobody_listens")

	start := time.Now()
	_, err := store.List()
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("Unexpected timeout after %s", elapsed)
	}
}

// TestMakeRequestCallback tests the callback API of the client
func TestMakeRequestCallback(t *testing.T) {
	b := memory.NewBroker()
	ser := serializer.NewJSONSerializer()
	startUserService(t, b, ser)
	c := newClient(t, b, ser, 2*time.Second)

	done := make(chan error, 1)
	id := c.MakeRequest(context.Background(), common.DefaultRequestTopic, common.NewListUsersRequest(), func(_ json.RawMessage, err error) {
		done <- err
	})
	if id == "" {
		t.Errorf("MakeRequest returned an empty id")
	}
	if err := <-done; err != nil {
		t.Errorf("Request failed: %v", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Expected no pending requests, got %d", c.Pending())
	}
}

// TestCloseUserStore tests closing a store created with NewRPCUserStore
func TestCloseUserStore(t *testing.T) {
	b := memory.NewBroker()
	store, err := NewRPCUserStore(common.ClientConfig{}, "", memory.NewMemoryTransport(b), serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRPCUserStore failed: %v", err)
	}
	if err := CloseUserStore(store); err != nil {
		t.Errorf("CloseUserStore failed: %v", err)
	}
	if _, err := store.List(); !errors.Is(err, common.ErrEngineClosed) {
		t.Errorf("Expected engine closed, got %v", err)
	}
	if err := CloseUserStore(lstore.NewLocalStore()); err == nil {
		t.Errorf("CloseUserStore of a local store should fail")
	}
}
