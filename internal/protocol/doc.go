// Package protocol owns wire contract and parsing primitives.
//
// Ownership boundary:
// - jsonstream: value framing over an undelimited byte stream
// - request: decoded message validation and request context synthesis
//
// Transport ownership (sockets, liveness, replies) stays in gateway.
package protocol
