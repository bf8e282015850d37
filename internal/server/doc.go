// Package server hosts the transcode API and websocket gateway from a single
// HTTP server.
//
// The server builds a consistent middleware chain of auth, rate limiting,
// metrics, and logging so handlers all share common protections and
// instrumentation.
package server
