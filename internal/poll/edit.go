package poll

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by [EditGroup.Commit] when a dirty field fails
// validation or nothing is dirty.
var ErrInvalid = errors.New("invalid input")

// Validator checks user input before it may be committed.
type Validator func(text string) error

// EditGroup binds text inputs sharing one commit control.
//
// A field is dirty when its input differs from the last value the remote
// reported. The commit control is enabled only while at least one field is
// dirty and every dirty field validates. Invalid fields are flagged and never
// sent.
type EditGroup struct {
	scope   *Scope
	surface Surface
	commit  string
	fields  []*EditField
}

// EditField is one input of an [EditGroup].
type EditField struct {
	group     *EditGroup
	input     string
	set       string
	validate  Validator
	committed string
	current   string
	dirty     bool
	invalid   bool
}

// NewEditGroup creates a group committed by the commit control, which starts
// disabled.
func NewEditGroup(s *Scope, surf Surface, commitControl string) *EditGroup {
	g := &EditGroup{scope: s, surface: surf, commit: commitControl}
	surf.OnAction(commitControl, func(string) { _ = g.Commit() })
	surf.SetControlEnabled(commitControl, false)
	return g
}

// Field adds an input bound to a get/set query pair. validate may be nil.
func (g *EditGroup) Field(input, getQuery, setQuery string, validate Validator) *EditField {
	f := &EditField{group: g, input: input, set: setQuery, validate: validate}
	g.fields = append(g.fields, f)
	g.scope.Periodic(getQuery, f.update)
	g.surface.OnAction(input, f.Edit)
	return f
}

// Dirty reports whether the input differs from the committed value.
func (f *EditField) Dirty() bool {
	return f.dirty
}

// Invalid reports whether the current input failed validation.
func (f *EditField) Invalid() bool {
	return f.invalid
}

// Value returns the current input.
func (f *EditField) Value() string {
	return f.current
}

func (f *EditField) update(v any) {
	if v == nil {
		return
	}
	f.committed = FormatValue(v)
	if !f.dirty {
		f.current = f.committed
		f.group.surface.SetText(f.input, f.current)
	} else {
		f.dirty = f.current != f.committed
	}
	f.group.refresh()
}

// Edit records user input.
func (f *EditField) Edit(text string) {
	f.current = text
	f.dirty = text != f.committed
	f.invalid = f.validate != nil && f.validate(text) != nil
	f.group.surface.SetInvalid(f.input, f.invalid)
	f.group.refresh()
}

// Ready reports whether the group may be committed.
func (g *EditGroup) Ready() bool {
	dirty := false
	for _, f := range g.fields {
		if !f.dirty {
			continue
		}
		if f.invalid {
			return false
		}
		dirty = true
	}
	return dirty
}

func (g *EditGroup) refresh() {
	g.surface.SetControlEnabled(g.commit, g.Ready())
}

// Commit sends the set query of every dirty field. A field stays dirty
// until its command succeeds.
func (g *EditGroup) Commit() error {
	if !g.Ready() {
		return fmt.Errorf("%w: nothing to commit", ErrInvalid)
	}
	e := g.scope.engine
	for _, f := range g.fields {
		if !f.dirty {
			continue
		}
		value := f.current
		e.Command(e.Context(), BindValue(f.set, value), func(_ any, err error) {
			if err != nil {
				return
			}
			f.committed = value
			f.dirty = f.current != value
			g.refresh()
		})
	}
	return nil
}
