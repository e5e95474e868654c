package poll

import "strconv"

const defaultPlaceholder = "-"

// DisplayOption configures [Display].
type DisplayOption func(*display)

type display struct {
	field       string
	decimals    int
	format      func(any) string
	sink        map[string]any
	sinkKey     string
	placeholder string
}

// WithDecimals rounds numeric values to n decimals.
func WithDecimals(n int) DisplayOption {
	return func(d *display) { d.decimals = n }
}

// WithField selects a nested field of an object value by dot path.
func WithField(path string) DisplayOption {
	return func(d *display) { d.field = path }
}

// WithFormat renders values with fn instead of the default formatting.
func WithFormat(fn func(any) string) DisplayOption {
	return func(d *display) { d.format = fn }
}

// WithSink also stores every value, nil included, in m under key.
func WithSink(m map[string]any, key string) DisplayOption {
	return func(d *display) {
		d.sink = m
		d.sinkKey = key
	}
}

// WithPlaceholder sets the text shown while no value is available.
func WithPlaceholder(s string) DisplayOption {
	return func(d *display) { d.placeholder = s }
}

// Display binds query to the output target. An empty target only feeds the
// sink.
func Display(s *Scope, surf Surface, query, target string, opts ...DisplayOption) *Registration {
	d := &display{decimals: -1, placeholder: defaultPlaceholder}
	for _, opt := range opts {
		opt(d)
	}
	return s.Periodic(query, func(v any) {
		if v != nil && d.field != "" {
			v, _ = Field(v, d.field)
		}
		if d.sink != nil {
			d.sink[d.sinkKey] = v
		}
		if target == "" {
			return
		}
		surf.SetText(target, d.render(v))
	})
}

func (d *display) render(v any) string {
	if v == nil {
		return d.placeholder
	}
	if d.format != nil {
		return d.format(v)
	}
	if f, ok := v.(float64); ok && d.decimals >= 0 {
		return strconv.FormatFloat(f, 'f', d.decimals, 64)
	}
	return FormatValue(v)
}
