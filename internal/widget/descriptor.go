package widget

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/etymology/winderconsole/internal/module"
	"github.com/etymology/winderconsole/internal/poll"
)

// ErrNoRemote is returned when a descriptor binds queries on a page that
// has no Remote module.
var ErrNoRemote = errors.New("descriptor binds queries but no Remote module is loaded")

// Descriptor is the parsed body of a descriptor module.
type Descriptor struct {
	Requires []string  `yaml:"requires"`
	Displays []Display `yaml:"displays"`
	Toggles  []Toggle  `yaml:"toggles"`
	Edits    []Edit    `yaml:"edits"`
	Grids    []Grid    `yaml:"grids"`
}

// Display binds a query to an output element.
type Display struct {
	Query       string `yaml:"query"`
	Target      string `yaml:"target"`
	Decimals    *int   `yaml:"decimals"`
	Field       string `yaml:"field"`
	Placeholder string `yaml:"placeholder"`
	Unit        string `yaml:"unit"`
}

// Toggle binds a two-state control to a get/set query pair.
type Toggle struct {
	Control string `yaml:"control"`
	Get     string `yaml:"get"`
	Set     string `yaml:"set"`
}

// Edit is a group of text inputs with one commit control.
type Edit struct {
	Commit string      `yaml:"commit"`
	Fields []EditField `yaml:"fields"`
}

// EditField binds a text input to a get/set query pair.
type EditField struct {
	Input    string   `yaml:"input"`
	Get      string   `yaml:"get"`
	Set      string   `yaml:"set"`
	Validate string   `yaml:"validate"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
}

// ParseDescriptor decodes and validates a descriptor. Unknown keys are
// rejected; an empty body is an empty descriptor.
func ParseDescriptor(body []byte) (*Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Descriptor) validate() error {
	for i, disp := range d.Displays {
		if disp.Query == "" || disp.Target == "" {
			return fmt.Errorf("displays[%d]: query and target are required", i)
		}
	}
	for i, t := range d.Toggles {
		if t.Control == "" || t.Get == "" || t.Set == "" {
			return fmt.Errorf("toggles[%d]: control, get and set are required", i)
		}
	}
	for i, e := range d.Edits {
		if e.Commit == "" {
			return fmt.Errorf("edits[%d]: commit is required", i)
		}
		if len(e.Fields) == 0 {
			return fmt.Errorf("edits[%d]: at least one field is required", i)
		}
		for j, f := range e.Fields {
			if f.Input == "" || f.Get == "" || f.Set == "" {
				return fmt.Errorf("edits[%d].fields[%d]: input, get and set are required", i, j)
			}
			if _, err := validator(f); err != nil {
				return fmt.Errorf("edits[%d].fields[%d]: %w", i, j, err)
			}
		}
	}
	for i, g := range d.Grids {
		if _, err := g.expand(); err != nil {
			return fmt.Errorf("grids[%d]: %w", i, err)
		}
	}
	return nil
}

// bindsQueries reports whether the descriptor needs a poll scope.
func (d *Descriptor) bindsQueries() bool {
	return len(d.Displays)+len(d.Toggles)+len(d.Edits)+len(d.Grids) > 0
}

// Widget is a constructed descriptor module.
type Widget struct {
	Name       string
	Descriptor *Descriptor

	registrations []*poll.Registration
	toggles       []*poll.Toggle
	edits         []*poll.EditGroup
}

// Registrations returns the queries the widget registered.
func (w *Widget) Registrations() []*poll.Registration { return w.registrations }

// Toggles returns the widget's toggles.
func (w *Widget) Toggles() []*poll.Toggle { return w.toggles }

// Edits returns the widget's edit groups.
func (w *Widget) Edits() []*poll.EditGroup { return w.edits }

func descriptorFactory(mc *module.Context) (any, error) {
	d, err := ParseDescriptor(mc.Body)
	if err != nil {
		return nil, err
	}

	if len(d.Requires) > 0 {
		mc.Loader.Load(mc.Ctx, d.Requires, nil, nil)
	}

	w := &Widget{Name: mc.Name, Descriptor: d}
	if !d.bindsQueries() {
		return w, nil
	}

	inst, ok := mc.Loader.Get(RemoteName)
	if !ok {
		return nil, ErrNoRemote
	}
	remote, ok := inst.(*Remote)
	if !ok {
		return nil, fmt.Errorf("module %s is %T, not a remote", RemoteName, inst)
	}
	scope, surf := remote.Scope(), remote.Surface()

	displays := append([]Display(nil), d.Displays...)
	for _, g := range d.Grids {
		expanded, _ := g.expand() // validated above
		displays = append(displays, expanded...)
	}
	for _, disp := range displays {
		w.registrations = append(w.registrations,
			poll.Display(scope, surf, disp.Query, disp.Target, displayOptions(disp)...))
	}
	for _, t := range d.Toggles {
		w.toggles = append(w.toggles, poll.NewToggle(scope, surf, t.Control, t.Get, t.Set))
	}
	for _, e := range d.Edits {
		g := poll.NewEditGroup(scope, surf, e.Commit)
		for _, f := range e.Fields {
			v, _ := validator(f) // validated above
			g.Field(f.Input, f.Get, f.Set, v)
		}
		w.edits = append(w.edits, g)
	}

	mc.Logger.Debug("widget bound",
		"displays", len(displays),
		"toggles", len(d.Toggles),
		"edits", len(d.Edits),
	)
	return w, nil
}

func displayOptions(d Display) []poll.DisplayOption {
	var opts []poll.DisplayOption
	if d.Decimals != nil {
		opts = append(opts, poll.WithDecimals(*d.Decimals))
	}
	if d.Field != "" {
		opts = append(opts, poll.WithField(d.Field))
	}
	if d.Placeholder != "" {
		opts = append(opts, poll.WithPlaceholder(d.Placeholder))
	}
	if d.Unit != "" {
		decimals := -1
		if d.Decimals != nil {
			decimals = *d.Decimals
		}
		unit := d.Unit
		opts = append(opts, poll.WithFormat(func(v any) string {
			if f, ok := v.(float64); ok {
				return strconv.FormatFloat(f, 'f', decimals, 64) + " " + unit
			}
			return poll.FormatValue(v) + " " + unit
		}))
	}
	return opts
}

// validator builds the input check named by a field's validate key.
func validator(f EditField) (poll.Validator, error) {
	switch f.Validate {
	case "":
		if f.Min != nil || f.Max != nil {
			return nil, errors.New("min and max need validate: number or integer")
		}
		return nil, nil
	case "nonempty":
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("value required")
			}
			return nil
		}, nil
	case "number", "integer":
		integer := f.Validate == "integer"
		return func(s string) error {
			var n float64
			if integer {
				i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				if err != nil {
					return fmt.Errorf("%q is not an integer", s)
				}
				n = float64(i)
			} else {
				v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return fmt.Errorf("%q is not a number", s)
				}
				n = v
			}
			if f.Min != nil && n < *f.Min {
				return fmt.Errorf("%v is below %v", n, *f.Min)
			}
			if f.Max != nil && n > *f.Max {
				return fmt.Errorf("%v is above %v", n, *f.Max)
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown validator %q", f.Validate)
	}
}
