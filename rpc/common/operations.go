package common

import (
	"github.com/ValentinKolb/kRPC/lib/users"
)

// --------------------------------------------------------------------------
// User Service Operations
// --------------------------------------------------------------------------

// Canonical operation keys of the user service
const (
	OpCreateUser = "CREATE_USER"
	OpGetUser    = "GET_USER"
	OpUpdateUser = "UPDATE_USER"
	OpDeleteUser = "DELETE_USER"
	OpListUsers  = "LIST_USERS"
)

// OperationHeader is the part every request payload shares. The service
// handler dispatches on it.
type OperationHeader struct {
	Operation string `json:"operation"`
}

type CreateUserRequest struct {
	OperationHeader
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type GetUserRequest struct {
	OperationHeader
	UserID string `json:"userId"`
}

type UpdateUserRequest struct {
	OperationHeader
	UserID  string        `json:"userId"`
	Updates users.Updates `json:"updates"`
}

type DeleteUserRequest struct {
	OperationHeader
	UserID string `json:"userId"`
}

type ListUsersRequest struct {
	OperationHeader
}

type CreateUserResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type GetUserResult struct {
	Success bool       `json:"success"`
	User    users.User `json:"user"`
}

type UpdateUserResult struct {
	Success bool       `json:"success"`
	User    users.User `json:"user"`
	Message string     `json:"message"`
}

type DeleteUserResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListUsersResult struct {
	Success bool         `json:"success"`
	Users   []users.User `json:"users"`
	Count   int          `json:"count"`
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewCreateUserRequest creates a new CREATE_USER request
func NewCreateUserRequest(name, email string, age int) *CreateUserRequest {
	return &CreateUserRequest{
		OperationHeader: OperationHeader{OpCreateUser},
		Name:            name,
		Email:           email,
		Age:             age,
	}
}

// NewGetUserRequest creates a new GET_USER request
func NewGetUserRequest(userID string) *GetUserRequest {
	return &GetUserRequest{
		OperationHeader: OperationHeader{OpGetUser},
		UserID:          userID,
	}
}

// NewUpdateUserRequest creates a new UPDATE_USER request
func NewUpdateUserRequest(userID string, updates users.Updates) *UpdateUserRequest {
	return &UpdateUserRequest{
		OperationHeader: OperationHeader{OpUpdateUser},
		UserID:          userID,
		Updates:         updates,
	}
}

// NewDeleteUserRequest creates a new DELETE_USER request
func NewDeleteUserRequest(userID string) *DeleteUserRequest {
	return &DeleteUserRequest{
		OperationHeader: OperationHeader{OpDeleteUser},
		UserID:          userID,
	}
}

// NewListUsersRequest creates a new LIST_USERS request
func NewListUsersRequest() *ListUsersRequest {
	return &ListUsersRequest{
		OperationHeader: OperationHeader{OpListUsers},
	}
}

// --------------------------------------------------------------------------
// Result Factory Functions
// --------------------------------------------------------------------------

// NewCreateUserResult creates the result of a successful CREATE_USER
func NewCreateUserResult(userID string) *CreateUserResult {
	return &CreateUserResult{Success: true, UserID: userID, Message: "User created"}
}

// NewGetUserResult creates the result of a successful GET_USER
func NewGetUserResult(user users.User) *GetUserResult {
	return &GetUserResult{Success: true, User: user}
}

// NewUpdateUserResult creates the result of a successful UPDATE_USER
func NewUpdateUserResult(user users.User) *UpdateUserResult {
	return &UpdateUserResult{Success: true, User: user, Message: "User updated"}
}

// NewDeleteUserResult creates the result of a successful DELETE_USER
func NewDeleteUserResult() *DeleteUserResult {
	return &DeleteUserResult{Success: true, Message: "User deleted"}
}

// NewListUsersResult creates the result of a successful LIST_USERS
func NewListUsersResult(list []users.User) *ListUsersResult {
	if list == nil {
		list = []users.User{}
	}
	return &ListUsersResult{Success: true, Users: list, Count: len(list)}
}
