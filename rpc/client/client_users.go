package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
)

// NewRPCUserStore creates a user store that sends every call to the user
// service consuming requestTopic.
// It connects the transport and returns a users.IUserStore and an error.
// The store owns the client, close it with CloseUserStore.
func NewRPCUserStore(
	config common.ClientConfig,
	requestTopic string,
	transport transport.IRPCBrokerTransport,
	serializer serializer.IRPCSerializer,
) (users.IUserStore, error) {
	c, err := NewRPCClient(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return NewUserStoreForClient(c, requestTopic), nil
}

// NewUserStoreForClient creates a user store on top of an existing client
func NewUserStoreForClient(c *RPCClient, requestTopic string) users.IUserStore {
	if requestTopic == "" {
		requestTopic = common.DefaultRequestTopic
	}
	return &rpcUserStore{client: c, topic: requestTopic}
}

// CloseUserStore closes the client of a store created by NewRPCUserStore
func CloseUserStore(store users.IUserStore) error {
	s, ok := store.(*rpcUserStore)
	if !ok {
		return fmt.Errorf("not an rpc user store")
	}
	return s.client.Close()
}

type rpcUserStore struct {
	client *RPCClient
	topic  string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the users package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcUserStore) Create(name, email string, age int) (string, error) {
	var resp common.CreateUserResult
	if err := s.invoke(common.NewCreateUserRequest(name, email, age), &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func (s *rpcUserStore) Get(userID string) (users.User, error) {
	var resp common.GetUserResult
	if err := s.invoke(common.NewGetUserRequest(userID), &resp); err != nil {
		return users.User{}, err
	}
	return resp.User, nil
}

func (s *rpcUserStore) Update(userID string, updates users.Updates) (users.User, error) {
	var resp common.UpdateUserResult
	if err := s.invoke(common.NewUpdateUserRequest(userID, updates), &resp); err != nil {
		return users.User{}, err
	}
	return resp.User, nil
}

func (s *rpcUserStore) Delete(userID string) error {
	var resp common.DeleteUserResult
	return s.invoke(common.NewDeleteUserRequest(userID), &resp)
}

func (s *rpcUserStore) List() ([]users.User, error) {
	var resp common.ListUsersResult
	if err := s.invoke(common.NewListUsersRequest(), &resp); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		resp.Users = []users.User{}
	}
	return resp.Users, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// invoke sends a request and decodes the reply data into resp.
// Error replies with a known message are returned as *users.Error so remote
// and local stores report the same errors.
func (s *rpcUserStore) invoke(req any, resp any) error {
	data, err := s.client.Call(context.Background(), s.topic, req)
	if err != nil {
		return toUserError(err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("RPC UserStore - invalid reply: %w", err)
	}
	return nil
}

// userErrors maps reply messages to the errors of the users package
var userErrors = map[string]*users.Error{
	users.MsgInvalidName:    users.ErrInvalidName,
	users.MsgInvalidEmail:   users.ErrInvalidEmail,
	users.MsgInvalidAge:     users.ErrInvalidAge,
	users.MsgInvalidUserID:  users.ErrInvalidUserID,
	users.MsgInvalidUpdates: users.ErrInvalidUpdates,
	users.MsgUserNotFound:   users.ErrUserNotFound,
}

func toUserError(err error) error {
	var be *common.BusinessError
	if !errors.As(err, &be) {
		return err
	}
	if ue, ok := userErrors[be.Message]; ok {
		return ue
	}
	return err
}
