// Package server provides the HTTP surface of the console.
//
//   - GET /: the console shell
//   - GET /pages/*: page stylesheets and other page assets
//   - GET /api/state: the current document snapshot and console status
//   - GET /api/sse: Server-Sent Events stream of document changes
//   - POST /api/action: a user action on a control
//   - POST /api/navigate: switch the active page
//   - POST /api/command: a one-off remote command
//   - POST /api/login: the remote login handshake
//
// The server shuts down gracefully when its context is cancelled, allowing
// in-flight requests 5 seconds to finish.
package server
