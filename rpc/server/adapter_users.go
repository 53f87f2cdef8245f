package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/rpc/common"
)

// NewUserServerAdapter creates an adapter exposing the user CRUD operations
// of the given store
func NewUserServerAdapter(store users.IUserStore) IRPCServerAdapter {
	return &userServerAdapterImpl{store: store}
}

type userServerAdapterImpl struct {
	store users.IUserStore
}

func (adapter *userServerAdapterImpl) Operations() []string {
	return []string{
		common.OpCreateUser,
		common.OpGetUser,
		common.OpUpdateUser,
		common.OpDeleteUser,
		common.OpListUsers,
	}
}

func (adapter *userServerAdapterImpl) Handle(op string, data json.RawMessage) (any, error) {
	// Check for nil store
	if adapter.store == nil {
		return nil, users.NewError(users.RetCInternalError, "handler: store is nil")
	}

	f := decodeFields(data)

	switch op {
	case common.OpCreateUser:
		name, ok := f.getString("name")
		if !ok {
			return nil, users.ErrInvalidName
		}
		email, ok := f.getString("email")
		if !ok {
			return nil, users.ErrInvalidEmail
		}
		age, ok := f.getInt("age")
		if !ok {
			return nil, users.ErrInvalidAge
		}
		userID, err := adapter.store.Create(name, email, age)
		if err != nil {
			return nil, err
		}
		return common.NewCreateUserResult(userID), nil

	case common.OpGetUser:
		userID, ok := f.getString("userId")
		if !ok {
			return nil, users.ErrInvalidUserID
		}
		user, err := adapter.store.Get(userID)
		if err != nil {
			return nil, err
		}
		return common.NewGetUserResult(user), nil

	case common.OpUpdateUser:
		userID, ok := f.getString("userId")
		if !ok {
			return nil, users.ErrInvalidUserID
		}
		updates, err := f.updates("updates")
		if err != nil {
			return nil, err
		}
		user, err := adapter.store.Update(userID, updates)
		if err != nil {
			return nil, err
		}
		return common.NewUpdateUserResult(user), nil

	case common.OpDeleteUser:
		userID, ok := f.getString("userId")
		if !ok {
			return nil, users.ErrInvalidUserID
		}
		if err := adapter.store.Delete(userID); err != nil {
			return nil, err
		}
		return common.NewDeleteUserResult(), nil

	case common.OpListUsers:
		list, err := adapter.store.List()
		if err != nil {
			return nil, err
		}
		return common.NewListUsersResult(list), nil

	default:
		return nil, fmt.Errorf("RPC UserAdapter - Unsupported operation: %s", op)
	}
}

// --------------------------------------------------------------------------
// Lenient field decoding
// --------------------------------------------------------------------------

// fields holds the undecoded members of a request object. Every member is
// decoded on its own so a wrongly typed field is reported with the message
// of that field instead of failing the whole request.
type fields map[string]json.RawMessage

// maxSafeInt is the largest integer a JSON number can hold without loss
const maxSafeInt = 1<<53 - 1

func decodeFields(data json.RawMessage) fields {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return fields{}
	}
	return f
}

// raw returns the member if present and not null
func (f fields) raw(key string) (json.RawMessage, bool) {
	raw, ok := f[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (f fields) getString(key string) (string, bool) {
	raw, ok := f.raw(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// getInt accepts integral numbers only, strings and fractions are rejected
func (f fields) getInt(key string) (int, bool) {
	raw, ok := f.raw(key)
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if n != math.Trunc(n) || math.Abs(n) > maxSafeInt {
		return 0, false
	}
	return int(n), true
}

// updates decodes a partial user update. Only members present in the
// object are set. A wrongly typed member is set to its zero value, which the
// store rejects once it knows the user exists.
func (f fields) updates(key string) (users.Updates, error) {
	var u users.Updates

	raw, ok := f.raw(key)
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return u, users.ErrInvalidUpdates
	}
	nested := decodeFields(raw)

	if _, ok := nested["name"]; ok {
		name, _ := nested.getString("name")
		u.Name = &name
	}
	if _, ok := nested["email"]; ok {
		email, _ := nested.getString("email")
		u.Email = &email
	}
	if _, ok := nested["age"]; ok {
		age, _ := nested.getInt("age")
		u.Age = &age
	}
	return u, nil
}
