// Package a2ahttp exposes a dispatcher over HTTP.
//
// The handler owns three routes: POST /jsonrpc delivers one raw JSON-RPC
// payload to the dispatcher and returns either the serialized response
// or 204 No Content for notifications; GET /health is the liveness
// probe; GET /methods lists registered methods with their reflected
// JSON Schemas. The latter two are diagnostic only.
package a2ahttp
