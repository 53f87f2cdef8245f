// Package lstore implements users.IUserStore in memory.
//
// Users are kept in a concurrent map (xsync.MapOf) keyed by user id. Ids are
// random UUIDs. Updates are validated completely before the record is
// modified and are applied with an atomic compute on the map entry, so a
// rejected update never leaves a partially modified user behind.
//
// Thread Safety:
//
//	The store is safe for concurrent use by multiple goroutines.
package lstore
