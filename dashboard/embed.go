// Package dashboard provides the embedded browser shell of the console.
//
// The shell renders the document slots streamed over Server-Sent Events,
// links the page stylesheets and posts user actions back to the server.
// It is compiled into the binary, so the console deploys as a single file
// next to its page assets.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the console shell.
//
//	assets/
//	  index.html    - console shell with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
