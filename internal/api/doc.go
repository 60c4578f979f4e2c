// Package api implements the HTTP dispatch API and WebSocket event stream
// for homectl core.
//
// This package provides:
//   - REST endpoints to list integrations, push device state and run actions
//   - A read-only view of the dispatch audit trail
//   - A WebSocket hub that relays integration events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server holds no integration state. Every write goes through the
// registry's dispatch operations, so calls from HTTP are serialised with
// every other caller. Events flow the other way: the event forwarder hands
// them to the Hub, which fans them out to WebSocket clients.
//
// # Status Codes
//
//	integration.ErrNotFound        404
//	device.ErrInvalid*             400
//	integration.ErrUnknownDevice   422
//	integration.ErrUnsupportedAction 422
//	integration.ErrCallTimeout     504
//	any other backend error        502
package api
