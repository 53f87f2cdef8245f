package server

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/lib/users/lstore"
	"github.com/ValentinKolb/kRPC/rpc/common"
)

func handle(t *testing.T, adapter IRPCServerAdapter, op, data string) (any, error) {
	t.Helper()
	return adapter.Handle(op, json.RawMessage(data))
}

// TestUserAdapterCreate tests the field checks of CREATE_USER
func TestUserAdapterCreate(t *testing.T) {
	adapter := NewUserServerAdapter(lstore.NewLocalStore())

	tests := map[string]string{
		`{"email":"a@b.com","age":30}`:                        users.MsgInvalidName,
		`{"name":42,"email":"a@b.com","age":30}`:              users.MsgInvalidName,
		`{"name":"","email":"a@b.com","age":30}`:              users.MsgInvalidName,
		`{"name":"Alice","email":"invalid-email","age":30}`:   users.MsgInvalidEmail,
		`{"name":"Alice","email":null,"age":30}`:              users.MsgInvalidEmail,
		`{"name":"Alice","email":"a@b.com","age":-5}`:         users.MsgInvalidAge,
		`{"name":"Alice","email":"a@b.com","age":0}`:          users.MsgInvalidAge,
		`{"name":"Alice","email":"a@b.com","age":3.5}`:        users.MsgInvalidAge,
		`{"name":"Alice","email":"a@b.com","age":"30"}`:       users.MsgInvalidAge,
		`{"name":"Alice","email":"a@b.com"}`:                  users.MsgInvalidAge,
		`{"operation":"CREATE_USER","name":"Alice","age":30}`: users.MsgInvalidEmail,
	}
	for data, expected := range tests {
		_, err := handle(t, adapter, common.OpCreateUser, data)
		if err == nil || err.Error() != expected {
			t.Errorf("Create(%s): expected %q, got %v", data, expected, err)
		}
	}

	result, err := handle(t, adapter, common.OpCreateUser, `{"name":"Alice","email":"alice@example.com","age":30.0}`)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	created, ok := result.(*common.CreateUserResult)
	if !ok || !created.Success || created.UserID == "" || created.Message != "User created" {
		t.Errorf("Unexpected create result: %+v", result)
	}
}

// TestUserAdapterUpdate tests the field checks of UPDATE_USER
func TestUserAdapterUpdate(t *testing.T) {
	store := lstore.NewLocalStore()
	adapter := NewUserServerAdapter(store)

	id, err := store.Create("Bob", "bob@work.com", 25)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := map[string]string{
		`{"updates":{"age":35}}`:                                                 users.MsgInvalidUserID,
		`{"userId":7,"updates":{"age":35}}`:                                      users.MsgInvalidUserID,
		`{"userId":"` + id + `"}`:                                                users.MsgInvalidUpdates,
		`{"userId":"` + id + `","updates":null}`:                                 users.MsgInvalidUpdates,
		`{"userId":"` + id + `","updates":"age=35"}`:                             users.MsgInvalidUpdates,
		`{"userId":"` + id + `","updates":{"age":-5}}`:                           users.MsgInvalidAge,
		`{"userId":"` + id + `","updates":{"name":null}}`:                        users.MsgInvalidName,
		`{"userId":"` + id + `","updates":{"email":"nope","age":40}}`:            users.MsgInvalidEmail,
		`{"userId":"` + id + `","updates":{"name":"Robert","age":"old"}}`:        users.MsgInvalidAge,
		`{"userId":"00000000-0000-0000-0000-000000000000","updates":{}}`:         users.MsgUserNotFound,
		`{"userId":"00000000-0000-0000-0000-000000000000","updates":{"age":-5}}`: users.MsgUserNotFound,
		`{"userId":"00000000-0000-0000-0000-000000000000","updates":{"name":7}}`: users.MsgUserNotFound,
	}
	for data, expected := range tests {
		_, err := handle(t, adapter, common.OpUpdateUser, data)
		if err == nil || err.Error() != expected {
			t.Errorf("Update(%s): expected %q, got %v", data, expected, err)
		}
	}

	// no failed update touched the record
	user, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if user.Name != "Bob" || user.Email != "bob@work.com" || user.Age != 25 {
		t.Errorf("User changed by failed updates: %+v", user)
	}

	result, err := handle(t, adapter, common.OpUpdateUser, `{"userId":"`+id+`","updates":{"age":35,"email":"bob+updated@work.com"}}`)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updated := result.(*common.UpdateUserResult)
	if updated.User.Age != 35 || updated.User.Email != "bob+updated@work.com" || updated.User.Name != "Bob" {
		t.Errorf("Unexpected updated user: %+v", updated.User)
	}

	// empty updates change nothing
	result, err = handle(t, adapter, common.OpUpdateUser, `{"userId":"`+id+`","updates":{}}`)
	if err != nil {
		t.Fatalf("Empty update failed: %v", err)
	}
	if result.(*common.UpdateUserResult).User != updated.User {
		t.Errorf("Empty update changed the user")
	}
}

// TestUserAdapterGetDeleteList tests the remaining operations
func TestUserAdapterGetDeleteList(t *testing.T) {
	store := lstore.NewLocalStore()
	adapter := NewUserServerAdapter(store)

	result, err := handle(t, adapter, common.OpListUsers, `{}`)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list := result.(*common.ListUsersResult); list.Count != 0 || list.Users == nil {
		t.Errorf("Expected empty non-nil list, got %+v", list)
	}

	id, _ := store.Create("Charlie", "charlie@example.com", 41)

	if _, err := handle(t, adapter, common.OpGetUser, `{}`); err == nil || err.Error() != users.MsgInvalidUserID {
		t.Errorf("Expected %q, got %v", users.MsgInvalidUserID, err)
	}
	result, err = handle(t, adapter, common.OpGetUser, `{"userId":"`+id+`"}`)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := result.(*common.GetUserResult); got.User.Name != "Charlie" {
		t.Errorf("Unexpected user: %+v", got.User)
	}

	if _, err := handle(t, adapter, common.OpDeleteUser, `{"userId":"`+id+`"}`); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := handle(t, adapter, common.OpDeleteUser, `{"userId":"`+id+`"}`); err == nil || err.Error() != users.MsgUserNotFound {
		t.Errorf("Expected %q, got %v", users.MsgUserNotFound, err)
	}
	if _, err := handle(t, adapter, common.OpGetUser, `{"userId":"`+id+`"}`); err == nil || err.Error() != users.MsgUserNotFound {
		t.Errorf("Expected %q, got %v", users.MsgUserNotFound, err)
	}

	if _, err := handle(t, adapter, "SOMETHING_ELSE", `{}`); err == nil {
		t.Errorf("Unsupported operation should fail")
	}
}
