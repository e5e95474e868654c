package poll

// Toggle binds a two-state control to a get/set query pair.
//
// Clicking flips the shown state at once, sends the set query with 1 or 0,
// then re-reads the get query and shows what the remote reports. The
// control stays disabled until that round trip finishes. If the remote
// cannot be reached the control is disabled and its prior enablement is
// restored once a value arrives again.
type Toggle struct {
	scope   *Scope
	surface Surface
	control string
	get     string
	set     string

	state  bool
	busy   bool
	failed bool
	prior  bool
}

// NewToggle registers the get query and the control's click handler.
func NewToggle(s *Scope, surf Surface, control, getQuery, setQuery string) *Toggle {
	t := &Toggle{scope: s, surface: surf, control: control, get: getQuery, set: setQuery}
	s.Periodic(getQuery, t.update)
	surf.OnAction(control, func(string) { t.Click() })
	return t
}

// State returns the shown state.
func (t *Toggle) State() bool {
	return t.state
}

// Busy reports whether a click is being reconciled.
func (t *Toggle) Busy() bool {
	return t.busy
}

func (t *Toggle) update(v any) {
	if v == nil {
		t.disable()
		return
	}
	t.reenable()
	if t.busy {
		return
	}
	t.show(Truthy(v))
}

// Click flips the toggle and writes the new state to the remote.
func (t *Toggle) Click() {
	if t.busy {
		return
	}
	t.busy = true
	next := !t.state
	t.show(next)
	t.surface.SetControlEnabled(t.control, false)

	arg := "0"
	if next {
		arg = "1"
	}
	e := t.scope.engine
	e.Command(e.Context(), BindValue(t.set, arg), func(_ any, err error) {
		if err != nil {
			t.show(!next)
			t.busy = false
			t.failAfterClick()
			return
		}
		e.Command(e.Context(), t.get, func(v any, err error) {
			t.busy = false
			if err != nil {
				t.failAfterClick()
				return
			}
			t.show(Truthy(v))
			t.surface.SetControlEnabled(t.control, true)
		})
	})
}

func (t *Toggle) show(on bool) {
	t.state = on
	t.surface.SetChecked(t.control, on)
}

// disable force-disables the control, remembering whether it was enabled.
func (t *Toggle) disable() {
	if t.failed {
		return
	}
	t.failed = true
	t.prior = t.surface.ControlEnabled(t.control)
	t.surface.SetControlEnabled(t.control, false)
}

// failAfterClick is disable for a control that was enabled before the click.
func (t *Toggle) failAfterClick() {
	if t.failed {
		return
	}
	t.failed = true
	t.prior = true
	t.surface.SetControlEnabled(t.control, false)
}

func (t *Toggle) reenable() {
	if !t.failed {
		return
	}
	t.failed = false
	t.surface.SetControlEnabled(t.control, t.prior)
}
