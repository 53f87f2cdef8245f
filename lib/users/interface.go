package users

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// User is a single user record
type User struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    int    `json:"age"`
}

// Updates describes a partial update of a user. A nil field is not changed.
type Updates struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Age   *int    `json:"age,omitempty"`
}

// IsEmpty reports whether the update would not change anything
func (u Updates) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Age == nil
}

// IUserStore is the interface for interacting with a user store.
// All methods return an *Error on business failures (validation, not found).
// Remote implementations may additionally return transport or timeout errors.
type IUserStore interface {
	// Create validates and stores a new user and returns its generated id.
	Create(name, email string, age int) (userID string, err error)
	// Get returns the user with the given id.
	Get(userID string) (user User, err error)
	// Update applies the given updates atomically. Either all fields are
	// valid and applied, or the stored user is left unchanged.
	Update(userID string, updates Updates) (user User, err error)
	// Delete removes the user with the given id.
	Delete(userID string) (err error)
	// List returns all users in creation order.
	List() (users []User, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and the message reported to callers
type Error struct {
	Code RetCode
	Msg  string
}

// Error implements the error interface. Only the message is returned since it
// is sent to remote callers as is.
func (e *Error) Error() string {
	return e.Msg
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                  // 1: Operation failed due to an internal error.
	RetCInvalidArgument                // 2: A field failed validation.
	RetCNotFound                       // 3: The user does not exist.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error messages reported by all store implementations
const (
	MsgInvalidName    = "Invalid name"
	MsgInvalidEmail   = "Invalid email"
	MsgInvalidAge     = "Invalid age (must be a positive integer)"
	MsgInvalidUserID  = "Invalid userId"
	MsgInvalidUpdates = "Invalid updates"
	MsgUserNotFound   = "User not found"
)

var (
	ErrInvalidName    = NewError(RetCInvalidArgument, MsgInvalidName)
	ErrInvalidEmail   = NewError(RetCInvalidArgument, MsgInvalidEmail)
	ErrInvalidAge     = NewError(RetCInvalidArgument, MsgInvalidAge)
	ErrInvalidUserID  = NewError(RetCInvalidArgument, MsgInvalidUserID)
	ErrInvalidUpdates = NewError(RetCInvalidArgument, MsgInvalidUpdates)
	ErrUserNotFound   = NewError(RetCNotFound, MsgUserNotFound)
)
