// Package api exposes the HTTP surface of the daemon: the chat endpoint that
// drives the agent runtime, wallet inspection endpoints, the transaction
// history listing, and the built-in web console. It also enforces connection
// limits and optional API-key authentication on every route.
package api
