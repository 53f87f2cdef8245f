package lstore

import (
	"sort"
	"sync/atomic"

	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("users")

// entry is a stored user plus its creation sequence number used for ordering
type entry struct {
	user users.User
	seq  uint64
}

type storeImpl struct {
	users *xsync.MapOf[string, entry]
	index atomic.Uint64
}

// NewLocalStore creates a new in-memory user store.
// The store is not persistent and only lives as long as the process.
func NewLocalStore() users.IUserStore {
	return &storeImpl{
		users: xsync.NewMapOf[string, entry](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see users/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Create(name, email string, age int) (string, error) {
	if err := users.ValidateName(name); err != nil {
		return "", err
	}
	if err := users.ValidateEmail(email); err != nil {
		return "", err
	}
	if err := users.ValidateAge(age); err != nil {
		return "", err
	}

	user := users.User{
		UserID: uuid.NewString(),
		Name:   name,
		Email:  email,
		Age:    age,
	}
	s.users.Store(user.UserID, entry{user: user, seq: s.index.Add(1)})

	Logger.Debugf("created user %s", user.UserID)
	return user.UserID, nil
}

func (s *storeImpl) Get(userID string) (users.User, error) {
	if err := users.ValidateUserID(userID); err != nil {
		return users.User{}, err
	}
	e, ok := s.users.Load(userID)
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return e.user, nil
}

func (s *storeImpl) Update(userID string, updates users.Updates) (users.User, error) {
	if err := users.ValidateUserID(userID); err != nil {
		return users.User{}, err
	}

	// a missing user wins over invalid fields, an invalid field rejects the
	// whole update
	var invalid error
	updated, ok := s.users.Compute(userID, func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			return old, true
		}
		if invalid = users.ValidateUpdates(updates); invalid != nil {
			return old, false
		}
		old.user = updates.Apply(old.user)
		return old, false
	})
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	if invalid != nil {
		return users.User{}, invalid
	}

	Logger.Debugf("updated user %s", userID)
	return updated.user, nil
}

func (s *storeImpl) Delete(userID string) error {
	if err := users.ValidateUserID(userID); err != nil {
		return err
	}
	if _, existed := s.users.LoadAndDelete(userID); !existed {
		return users.ErrUserNotFound
	}
	Logger.Debugf("deleted user %s", userID)
	return nil
}

func (s *storeImpl) List() ([]users.User, error) {
	entries := make([]entry, 0, s.users.Size())
	s.users.Range(func(_ string, e entry) bool {
		entries = append(entries, e)
		return true
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	list := make([]users.User, len(entries))
	for i, e := range entries {
		list[i] = e.user
	}
	return list, nil
}
