// Package a2a defines the typed messages of the Terra Constellata
// agent-to-agent protocol.
//
// Each protocol method carries a method-specific params object. The types
// in this package give those params a concrete shape: JSON field layout
// for decoding, jsonschema tags for the advertised method schemas, and a
// Validate method holding the business rules that are checked after
// structural decoding succeeds.
package a2a
