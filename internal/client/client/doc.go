// Package client talks to the gophauth server over gRPC.
//
// GRPCClient keeps the token pair of the current session, attaches the
// access token to every call and, when the server answers
// Unauthenticated "token expired", refreshes the pair once and retries.
// Status codes are mapped to the sentinel errors in errors.go so callers can
// use errors.Is.
package client
