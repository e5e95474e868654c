package poll

// Registration is one periodic query.
type Registration struct {
	scope    *Scope
	query    string
	callback Callback
	id       string
}

// ID returns the identifier the query is currently sent under, or "" while
// its scope is suspended.
func (r *Registration) ID() string {
	if r.scope.suspended {
		return ""
	}
	return r.id
}

// Query returns the query expression.
func (r *Registration) Query() string {
	return r.query
}

// Scope groups registrations that are polled together, typically those
// made while constructing one page.
type Scope struct {
	engine    *Engine
	name      string
	regs      []*Registration
	suspended bool
	closed    bool
}

// NewScope creates a resumed, empty scope.
func (e *Engine) NewScope(name string) *Scope {
	s := &Scope{engine: e, name: name}
	e.scopes = append(e.scopes, s)
	return s
}

// Name returns the scope's name.
func (s *Scope) Name() string {
	return s.name
}

// Engine returns the engine the scope belongs to.
func (s *Scope) Engine() *Engine {
	return s.engine
}

// Periodic registers query. cb runs with the decoded value whenever the
// value changes, and with nil when the remote becomes unreachable.
// Registering on a closed scope is a no-op.
func (s *Scope) Periodic(query string, cb Callback) *Registration {
	r := &Registration{scope: s, query: query, callback: cb}
	if s.closed {
		return r
	}
	s.regs = append(s.regs, r)
	if !s.suspended {
		s.engine.renumber()
	}
	return r
}

// Suspend stops polling the scope's queries.
func (s *Scope) Suspend() {
	if s.suspended || s.closed {
		return
	}
	s.suspended = true
	s.engine.renumber()
}

// Resume polls the scope's queries again. Their callbacks fire on the next
// successful poll even if values are unchanged.
func (s *Scope) Resume() {
	if !s.suspended || s.closed {
		return
	}
	s.suspended = false
	s.engine.renumber()
}

// Suspended reports whether the scope is suspended.
func (s *Scope) Suspended() bool {
	return s.suspended
}

// Close drops the scope and its registrations for good.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.suspended = true
	s.regs = nil
	kept := s.engine.scopes[:0]
	for _, other := range s.engine.scopes {
		if other != s {
			kept = append(kept, other)
		}
	}
	s.engine.scopes = kept
	s.engine.renumber()
}
