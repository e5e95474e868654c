// Package widget builds the modules pages are made of.
//
// Two kinds of module exist. The "Remote" module ties a page to the polling
// engine: it opens a poll scope for the page, suspends it when the page is
// swapped out and resumes it on restore. Every other module is a YAML
// descriptor binding document elements to remote queries:
//
//	requires: [Desktop/Modules/Units]
//	displays:
//	  - {query: "Axis.x.position", target: axisX, decimals: 2}
//	toggles:
//	  - {control: spindle, get: "Spindle.get()", set: "Spindle.set({})"}
//	edits:
//	  - commit: apply
//	    fields:
//	      - {input: speed, get: "Speed.get()", set: "Speed.set({})", validate: number, min: 0}
//	grids:
//	  - query: "Head.{{.head}}.zone({{.zone}})"
//	    target: "temp-{{.head}}-{{.zone}}"
//	    dimensions: {head: [A, B], zone: ["1", "2"]}
//
// [Registry] is the composition point mapping module names to factories.
package widget
