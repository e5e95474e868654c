// Package page swaps pages in and out of the console document.
//
// A page is a named unit of content: markup fetched into a slot, a
// stylesheet, and a module of the same name constructed by the page's own
// module loader. Leaving a page suspends it: the markup of every slot it
// filled and every stylesheet it linked are cached and removed from the
// document, and its loader's shutdown hooks run. Returning to the page
// restores it from that cache without fetching anything or constructing any
// module.
package page
