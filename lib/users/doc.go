// Package users provides the user entity store operated on by the user CRUD
// service. It defines the IUserStore interface shared by the local in-memory
// implementation (lstore) and the remote RPC implementation in rpc/client, so
// that callers can switch between an in-process store and a store reached over
// the broker without code changes.
//
// Key Components:
//
//   - IUserStore: create, read, update, delete and list operations on users.
//
//   - User / Updates: the entity and the partial update applied by Update.
//     Fields of Updates that are nil are left untouched.
//
//   - Error: a typed error carrying a return code and the human readable
//     message that is sent back to RPC callers unchanged.
//
//   - Validate*: the validation rules every implementation applies before
//     it mutates anything.
package users
