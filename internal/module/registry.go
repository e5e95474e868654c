package module

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
)

// ErrUnknownConstructor is returned when no factory is registered for a
// module's constructor name and the registry has no default factory.
var ErrUnknownConstructor = errors.New("unknown module constructor")

// Context is handed to a [Factory] while a module is being constructed.
type Context struct {
	// Ctx is the context of the load request that triggered the fetch.
	// Factories pass it on when requesting dependencies.
	Ctx context.Context

	// Name is the requested module name, e.g. "Desktop/Pages/Jog".
	Name string

	// Body is the fetched module resource.
	Body []byte

	// Params is the value passed with [WithParams] on the request that
	// triggered the fetch. Nil when none was given.
	Params any

	// Loader is the owning loader. Factories use it to request dependency
	// modules, look up siblings and register shutdown/restore hooks.
	Loader *Loader

	// Logger is the loader's logger scoped to this module.
	Logger *slog.Logger
}

// Factory constructs a module instance from its fetched body.
// A returned error (or a panic) marks the module as failed.
type Factory func(mc *Context) (any, error)

// Resolution is where a module name is fetched from and which constructor
// builds it.
type Resolution struct {
	Path        string
	Constructor string
}

// Resolve maps a module name to its resource path and constructor name.
// The constructor name is the last path segment:
//
//	Resolve("Desktop/Modules/Remote") // {Path: "Desktop/Modules/Remote.yaml", Constructor: "Remote"}
func Resolve(name string) Resolution {
	clean := strings.Trim(name, "/")
	return Resolution{
		Path:        clean + ".yaml",
		Constructor: path.Base(clean),
	}
}

// Registry maps constructor names to factories. It is the single
// composition point where module names become code.
type Registry struct {
	factories map[string]Factory
	fallback  Factory
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a constructor name with a factory, replacing any
// previous association.
func (r *Registry) Register(constructor string, f Factory) {
	r.factories[constructor] = f
}

// SetDefault sets the factory used for constructor names with no explicit
// registration.
func (r *Registry) SetDefault(f Factory) {
	r.fallback = f
}

// Lookup returns the factory for a constructor name.
func (r *Registry) Lookup(constructor string) (Factory, bool) {
	if f, ok := r.factories[constructor]; ok {
		return f, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}
