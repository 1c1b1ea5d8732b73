// Package token signs and verifies the access and refresh tokens issued by
// authcore. Access and refresh tokens are signed with separate secrets so a
// leaked access token can never be replayed against the refresh endpoint.
//
// The package is stateless: a Manager is pure computation over its Config.
// Session membership and rotation of refresh tokens live in the session
// package, not here.
package token
