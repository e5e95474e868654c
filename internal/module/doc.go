// Package module loads named units of console behaviour on demand.
//
// A [Loader] owns one singleton per module name. Modules are fetched from a
// [Source], constructed by the [Factory] that the [Registry] maps to the
// module's constructor name, and handed back through [Loader.Get]. Multi-module
// requests are joined by a completion barrier: the completion callback of a
// [Loader.Load] call runs only after every requested module, and every module
// those modules requested while being constructed, has loaded or failed.
//
// All Loader methods must be called from the loop goroutine (see
// internal/loop). Loaders are created per page by the page manager.
package module
