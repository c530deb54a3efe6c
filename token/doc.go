// Package token wraps the opaque transaction token handed to the client by the
// authorization server.
//
// Claims are decoded without verification: signature, issuer and audience checks belong to
// the server. The package only needs the transaction id and the expiry instant, and it
// raises a single expiry notification when the wall clock reaches the exp claim.
package token
