// Package gateway owns the stream transport.
//
// Ownership boundary:
// - listener and accept loop (Service)
// - one Supervisor per connection: framing, synthesis, dispatch, isolation
// - reply path bound to connection liveness (ConnSink)
// - admin HTTP surface for health, metrics and connection snapshots
//
// Request handling and configuration are collaborators reached through the
// Processor and ConfigLoader interfaces; gateway never inspects their state.
package gateway
