// Package dispatch implements the JSON-RPC 2.0 dispatch core of the A2A
// server: a registry mapping method names to typed handlers, and a
// handling pipeline that classifies an inbound payload as request or
// notification, validates it in two stages (structural decode, then
// business rules), and invokes the matching handler.
//
// Requests are dispatched synchronously and always yield exactly one
// response, success or error. Notifications are dispatched as detached
// background work: Handle returns nil immediately and any failure is
// only observable through logging. That asymmetry is the protocol's
// fire-and-forget contract, not an accident of scheduling.
//
// The dispatcher is transport-agnostic. It consumes raw bytes and
// produces response values; serialization and framing belong to the
// caller.
package dispatch
