// Package processor is the request pipeline behind the stream gateway.
//
// Paths are matched with httprouter. Every route belongs to a plugin, and a
// route whose plugin is disabled in the current plugin document answers as if
// it did not exist. Handlers reply through the request's sink exactly once and
// report their own failures there.
package processor
