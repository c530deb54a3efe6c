// Package store persists serialized transactions in Redis so a flow can be resumed by
// another process.
//
// Records expire with the transaction token: the key TTL is the token's remaining
// lifetime at save time.
package store
