// Package winderconsole is the operator console of a winding machine.
//
// The console assembles an HTML user interface out of pages and reusable
// modules fetched from an asset source, binds the widgets of those pages to
// values on the remote machine, and keeps them current through a single
// batched poll. The live document is served to browsers over HTTP with
// Server-Sent Events.
//
// # Quick Start
//
//	c, _ := winderconsole.New(
//	    winderconsole.WithRemoteURL("http://localhost:6626/"),
//	    winderconsole.WithAssets("./site"),
//	    winderconsole.WithStartPage("APA", "main"),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	c.Start(ctx) // blocks until context is cancelled
//
// # Pages and modules
//
// A page named N is the markup N.html, the stylesheet N.css and the module
// N. A module whose name has no constructor prefix is described by N.yaml,
// which binds displays, toggles, edit groups and grids to remote queries:
//
//	requires: [Remote]
//	displays:
//	  - query: Axis.x
//	    target: axisX
//	    decimals: 2
//	toggles:
//	  - control: spindle
//	    get: Spindle.on
//	    set: Spindle.set({})
//
// The Remote module, usually listed with [WithCommonModules], ties a page to
// the poll engine: leaving the page suspends its queries and returning
// resumes them.
//
// # Connectivity
//
// When a poll fails every control is disabled and error indicators are
// raised; the first successful poll restores the controls exactly as they
// were.
//
// # Architecture
//
// The console consists of internal packages:
//
//   - internal/loop: the single goroutine owning all console state
//   - internal/module: the module loader with its dependency barrier
//   - internal/page: the page manager with suspend and restore
//   - internal/poll: the batched poll engine, remote transport and helpers
//   - internal/view: the document model of slots, controls and outputs
//   - internal/widget: descriptor-driven widgets and the Remote module
//   - internal/store: the change store feeding the HTTP server
//   - internal/server: the HTTP server with SSE streaming
//
// Only the winderconsole package and config are public API.
package winderconsole
