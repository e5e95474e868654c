package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/etymology/winderconsole/internal/loop"
	"github.com/etymology/winderconsole/internal/module"
)

// ManagerName is the name the manager is registered under in every page's
// loader.
const ManagerName = "Page"

// ErrNoActivePage is returned by LoadSubPage when no page is active.
var ErrNoActivePage = errors.New("no active page")

// Document is the part of the console document the manager edits.
// view.Document implements it.
type Document interface {
	SetSlot(slot, markup string) error
	Slot(slot string) string
	ClearSlot(slot string)
	Stylesheets() []string
	AppendStylesheet(href string)
	RemoveStylesheet(href string)
	Alert(message string)
}

// SubPage is a page fragment loaded into a slot alongside every page.
type SubPage struct {
	Name string
	Slot string
}

// Option configures a [Manager].
type Option func(*Manager) error

// WithLogger sets the manager's logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// WithCommonModules sets modules every new page loads before its content.
func WithCommonModules(names ...string) Option {
	return func(m *Manager) error {
		m.commonModules = append([]string(nil), names...)
		return nil
	}
}

// WithCommonSubPages sets sub-pages every new page loads before its content.
func WithCommonSubPages(subs ...SubPage) Option {
	return func(m *Manager) error {
		for i, s := range subs {
			if s.Name == "" || s.Slot == "" {
				return fmt.Errorf("common sub-page %d: name and slot are required", i)
			}
		}
		m.commonSubPages = append([]SubPage(nil), subs...)
		return nil
	}
}

// Manager owns the pages of one console. All methods must be called on the
// loop goroutine.
type Manager struct {
	loop     *loop.Loop
	doc      Document
	source   module.Source
	registry *module.Registry
	logger   *slog.Logger

	base           []string
	commonModules  []string
	commonSubPages []SubPage

	pages    map[string]*Page
	active   *Page
	onLoaded []func(name string)
}

// New creates a manager. The document's current stylesheets become the base
// set that no page owns.
func New(l *loop.Loop, doc Document, src module.Source, reg *module.Registry, opts ...Option) (*Manager, error) {
	if l == nil || doc == nil || src == nil || reg == nil {
		return nil, fmt.Errorf("loop, document, source and registry are required")
	}
	m := &Manager{
		loop:     l,
		doc:      doc,
		source:   src,
		registry: reg,
		logger:   slog.Default(),
		base:     doc.Stylesheets(),
		pages:    make(map[string]*Page),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Load makes name the active page, its content shown in slot. Loading the
// active page again does nothing, unless its content failed to load. onComplete runs once the page is fully
// constructed or restored; onFailure, which may be nil, is told about each
// of the page's modules that fails.
func (m *Manager) Load(ctx context.Context, name, slot string, onComplete func(), params any, onFailure module.FailureFunc) {
	if m.active != nil && m.active.name == name && !m.active.broken {
		return
	}
	if m.active != nil {
		m.logger.Debug("suspending page", "page", m.active.name)
		m.active.loader.Shutdown()
	}

	if p, ok := m.pages[name]; ok {
		m.logger.Debug("restoring page", "page", name)
		m.active = p
		p.loader.Restore()
		if onComplete != nil {
			onComplete()
		}
		m.fireLoaded(p)
		return
	}

	m.logger.Info("loading page", "page", name, "slot", slot)
	p := m.newPage(name, slot)
	m.active = p

	p.loader.Load(ctx, m.commonModules, func() {
		for _, sub := range m.commonSubPages {
			m.loadSubPage(ctx, p, sub.Name, sub.Slot, nil, params, onFailure)
		}
		m.loadSubPage(ctx, p, name, slot, onComplete, params, onFailure)
	}, onFailure, module.WithParams(params))
}

func (m *Manager) newPage(name, slot string) *Page {
	p := &Page{
		name:   name,
		slot:   slot,
		cached: make(map[string]string),
	}
	p.loader = module.NewLoader(m.loop, m.source, m.registry, m.logger.With("page", name))
	p.loader.Register(ManagerName, m)
	p.loader.OnFailure(func(mod string, err error) {
		m.doc.Alert(fmt.Sprintf("module %s failed to load: %v", mod, err))
	})
	// registered first, so it runs after module shutdown hooks and before
	// module restore hooks
	p.loader.OnShutdown(m.suspend, p)
	p.loader.OnRestore(m.restore, p)
	m.pages[name] = p
	return p
}

// LoadSubPage fetches name's markup into slot, links its stylesheet and
// loads its module through the active page's loader. onComplete runs after
// the module has settled.
func (m *Manager) LoadSubPage(ctx context.Context, name, slot string, onComplete func(), params any) error {
	if m.active == nil {
		return ErrNoActivePage
	}
	m.loadSubPage(ctx, m.active, name, slot, onComplete, params, nil)
	return nil
}

func (m *Manager) loadSubPage(ctx context.Context, p *Page, name, slot string, onComplete func(), params any, onFailure module.FailureFunc) {
	p.outstanding++
	markupPath := name + ".html"

	loop.Spawn(m.loop, ctx,
		func(ctx context.Context) ([]byte, error) {
			return m.source.Fetch(ctx, markupPath)
		},
		func(body []byte, err error) {
			finish := func() {
				if onComplete != nil {
					onComplete()
				}
				p.outstanding--
				if p.outstanding == 0 {
					m.fireLoaded(p)
				}
			}
			if err != nil {
				m.logger.Warn("sub-page fetch failed", "page", p.name, "subpage", name, "error", err.Error())
				m.doc.Alert(fmt.Sprintf("page %s failed to load", name))
				if name == p.name {
					m.discard(p)
				}
				finish()
				return
			}
			if err := m.place(p, slot, string(body), name+".css"); err != nil {
				m.logger.Warn("sub-page markup rejected", "subpage", name, "error", err.Error())
			}
			p.loader.Load(ctx, []string{name}, finish, onFailure, module.WithParams(params))
		},
	)
}

// discard forgets a page whose content could not be fetched, so the next
// navigation to it builds it again.
func (m *Manager) discard(p *Page) {
	p.broken = true
	if m.pages[p.name] == p {
		delete(m.pages, p.name)
	}
}

// place writes sub-page content into the live document, or into the page's
// cache when the page was suspended while the fetch was in flight.
func (m *Manager) place(p *Page, slot, markup, stylesheet string) error {
	p.addSlot(slot)
	if p != m.active {
		p.cached[slot] = markup
		if !slices.Contains(p.styles, stylesheet) {
			p.styles = append(p.styles, stylesheet)
		}
		return nil
	}
	if !slices.Contains(m.doc.Stylesheets(), stylesheet) {
		m.doc.AppendStylesheet(stylesheet)
	}
	return m.doc.SetSlot(slot, markup)
}

// suspend is the page's own shutdown hook.
func (m *Manager) suspend(param any) {
	p := param.(*Page)
	for _, slot := range p.slots {
		p.cached[slot] = m.doc.Slot(slot)
		m.doc.ClearSlot(slot)
	}
	p.styles = p.styles[:0]
	for _, href := range m.doc.Stylesheets() {
		if slices.Contains(m.base, href) {
			continue
		}
		p.styles = append(p.styles, href)
		m.doc.RemoveStylesheet(href)
	}
	if m.active == p {
		m.active = nil
	}
}

// restore is the page's own restore hook.
func (m *Manager) restore(param any) {
	p := param.(*Page)
	for _, slot := range p.slots {
		if err := m.doc.SetSlot(slot, p.cached[slot]); err != nil {
			m.logger.Warn("cached markup rejected", "page", p.name, "slot", slot, "error", err.Error())
		}
	}
	for _, href := range p.styles {
		m.doc.AppendStylesheet(href)
	}
}

func (m *Manager) fireLoaded(p *Page) {
	if p != m.active {
		return
	}
	for _, fn := range m.onLoaded {
		fn(p.name)
	}
}

// OnLoaded registers fn to run each time a navigation has finished: when the
// last outstanding sub-page of a new page completes, or when a cached page is
// restored.
func (m *Manager) OnLoaded(fn func(name string)) {
	m.onLoaded = append(m.onLoaded, fn)
}

// Active returns the name of the active page, or "".
func (m *Manager) Active() string {
	if m.active == nil {
		return ""
	}
	return m.active.name
}

// ActivePage returns the active page, or nil.
func (m *Manager) ActivePage() *Page {
	return m.active
}

// Pages returns the names of all constructed pages, sorted.
func (m *Manager) Pages() []string {
	names := make([]string, 0, len(m.pages))
	for name := range m.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseStylesheets returns the stylesheets no page owns.
func (m *Manager) BaseStylesheets() []string {
	return append([]string(nil), m.base...)
}
