// Package view holds the console's document model: named content slots of
// HTML markup, the linked stylesheet set, and the interactive controls,
// outputs and error indicators found in that markup.
//
// Slot markup is parsed with golang.org/x/net/html. Runtime changes (a
// control being disabled, an output receiving text) are applied to the parsed
// tree, so [Document.Slot] always renders the current state; that rendering is
// what the page manager caches when it suspends a page.
//
// Document is not safe for concurrent use; it is owned by the loop goroutine.
package view

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/etymology/winderconsole/internal/store"
)

const (
	indicatorClass = "error-indicator"
	activeClass    = "error-active"
	invalidClass   = "invalid"
	checkedClass   = "on"

	// lockAttr holds a locked control's enablement to restore on unlock.
	// It travels with the markup, so a page cached while locked comes back
	// correct whenever it is restored.
	lockAttr = "data-unlock-enabled"
)

var (
	// ErrUnknownControl is returned by Dispatch for ids that are not a
	// control of any slot currently in the document.
	ErrUnknownControl = errors.New("unknown control")

	// ErrControlDisabled is returned by Dispatch for disabled controls.
	ErrControlDisabled = errors.New("control disabled")

	// ErrNoHandler is returned by Dispatch when nothing handles the control.
	ErrNoHandler = errors.New("no action handler")
)

// Publisher receives every document change. store.Store satisfies it.
type Publisher interface {
	Update(change store.Change)
}

// Document is the live document shown by the console.
type Document struct {
	pub Publisher

	slots       map[string]*html.Node
	stylesheets []string

	// indexes rebuilt whenever slot content changes
	byID       map[string]*html.Node
	controls   map[string]*html.Node
	indicators []*html.Node

	texts       map[string]string
	invalid     map[string]bool
	errorActive bool
	locked      bool
	handlers    map[string]func(value string)
}

// NewDocument creates an empty document linking the given stylesheets.
// pub may be nil.
func NewDocument(pub Publisher, stylesheets ...string) *Document {
	return &Document{
		pub:         pub,
		slots:       make(map[string]*html.Node),
		stylesheets: append([]string(nil), stylesheets...),
		byID:        make(map[string]*html.Node),
		controls:    make(map[string]*html.Node),
		texts:       make(map[string]string),
		invalid:     make(map[string]bool),
		handlers:    make(map[string]func(string)),
	}
}

func (d *Document) publish(kind store.Kind, target string, value any) {
	if d.pub == nil {
		return
	}
	d.pub.Update(store.Change{Kind: kind, Target: target, Value: value})
}

// SetSlot replaces the content of slot with markup.
func (d *Document) SetSlot(slot, markup string) error {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return fmt.Errorf("failed to parse markup for slot %q: %w", slot, err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	d.slots[slot] = container
	d.reindex()
	d.applyIndicators()
	d.syncLocks(container)
	d.publish(store.KindSlot, slot, d.Slot(slot))
	return nil
}

// Slot renders the current content of slot. Unknown slots render empty.
func (d *Document) Slot(slot string) string {
	container, ok := d.slots[slot]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// HasSlot reports whether slot currently holds content.
func (d *Document) HasSlot(slot string) bool {
	_, ok := d.slots[slot]
	return ok
}

// ClearSlot removes slot and the controls it contained.
func (d *Document) ClearSlot(slot string) {
	if _, ok := d.slots[slot]; !ok {
		return
	}
	delete(d.slots, slot)
	d.reindex()
	d.publish(store.KindSlot, slot, "")
}

// Slots returns the names of filled slots, sorted.
func (d *Document) Slots() []string {
	names := make([]string, 0, len(d.slots))
	for name := range d.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stylesheets returns the linked stylesheet URLs in link order.
func (d *Document) Stylesheets() []string {
	return append([]string(nil), d.stylesheets...)
}

// AppendStylesheet links href after the existing stylesheets.
func (d *Document) AppendStylesheet(href string) {
	d.stylesheets = append(d.stylesheets, href)
	d.publish(store.KindStylesheets, "", d.Stylesheets())
}

// RemoveStylesheet unlinks every occurrence of href.
func (d *Document) RemoveStylesheet(href string) {
	kept := d.stylesheets[:0]
	for _, s := range d.stylesheets {
		if s != href {
			kept = append(kept, s)
		}
	}
	d.stylesheets = kept
	d.publish(store.KindStylesheets, "", d.Stylesheets())
}

// reindex walks every slot and rebuilds the id, control and indicator
// indexes.
func (d *Document) reindex() {
	d.byID = make(map[string]*html.Node)
	d.controls = make(map[string]*html.Node)
	d.indicators = d.indicators[:0]

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				d.byID[id] = n
				if isControl(n) {
					d.controls[id] = n
				}
			}
			if hasClass(n, indicatorClass) {
				d.indicators = append(d.indicators, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, name := range d.Slots() {
		walk(d.slots[name])
	}
}

func isControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Button, atom.Select, atom.Textarea:
		return true
	}
	return false
}

// ControlIDs returns the ids of every interactive control, sorted.
func (d *Document) ControlIDs() []string {
	ids := make([]string, 0, len(d.controls))
	for id := range d.controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ControlEnabled reports whether a control exists and is enabled.
func (d *Document) ControlEnabled(id string) bool {
	n, ok := d.controls[id]
	if !ok {
		return false
	}
	_, disabled := getAttr(n, "disabled")
	return !disabled
}

// SetControlEnabled sets or clears the disabled attribute of a control.
// Unknown ids are ignored. While controls are locked the request is kept
// and applied by UnlockControls.
func (d *Document) SetControlEnabled(id string, enabled bool) {
	n, ok := d.controls[id]
	if !ok {
		return
	}
	if d.locked {
		setAttr(n, lockAttr, strconv.FormatBool(enabled))
		return
	}
	if enabled {
		removeAttr(n, "disabled")
	} else {
		setAttr(n, "disabled", "")
	}
	d.publish(store.KindControl, id, enabled)
}

// LockControls disables every control, remembering each one's enablement.
// Controls placed into the document while locked are disabled as they
// arrive.
func (d *Document) LockControls() {
	d.locked = true
	for _, id := range d.ControlIDs() {
		d.lock(id, d.controls[id])
	}
}

// UnlockControls gives every control back the enablement it had when it was
// locked. Controls locked earlier and placed back into the document after
// this call are unlocked as they arrive.
func (d *Document) UnlockControls() {
	d.locked = false
	for _, id := range d.ControlIDs() {
		d.unlock(id, d.controls[id])
	}
}

// Locked reports whether controls are locked.
func (d *Document) Locked() bool {
	return d.locked
}

func (d *Document) lock(id string, n *html.Node) {
	if _, ok := getAttr(n, lockAttr); ok {
		return
	}
	_, disabled := getAttr(n, "disabled")
	setAttr(n, lockAttr, strconv.FormatBool(!disabled))
	setAttr(n, "disabled", "")
	d.publish(store.KindControl, id, false)
}

func (d *Document) unlock(id string, n *html.Node) {
	v, ok := getAttr(n, lockAttr)
	if !ok {
		return
	}
	removeAttr(n, lockAttr)
	enabled := v == "true"
	if enabled {
		removeAttr(n, "disabled")
	} else {
		setAttr(n, "disabled", "")
	}
	d.publish(store.KindControl, id, enabled)
}

// syncLocks brings the controls of freshly placed markup in line with the
// current lock state.
func (d *Document) syncLocks(container *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isControl(n) {
			if id := attr(n, "id"); id != "" {
				if d.locked {
					d.lock(id, n)
				} else {
					d.unlock(id, n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
}

// SetErrorIndicators flags or clears every error indicator element.
func (d *Document) SetErrorIndicators(on bool) {
	d.errorActive = on
	d.applyIndicators()
	d.publish(store.KindIndicator, "", on)
}

func (d *Document) applyIndicators() {
	for _, n := range d.indicators {
		if d.errorActive {
			addClass(n, activeClass)
		} else {
			removeClass(n, activeClass)
		}
	}
}

// ErrorIndicators reports whether error indicators are currently flagged.
func (d *Document) ErrorIndicators() bool {
	return d.errorActive
}

// SetText writes text into the element with the given id: the value of an
// input, the content of anything else. The text is published even when no
// such element is in the document.
func (d *Document) SetText(id, text string) {
	d.texts[id] = text
	if n, ok := d.byID[id]; ok {
		if n.DataAtom == atom.Input {
			setAttr(n, "value", text)
		} else {
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		}
	}
	d.publish(store.KindOutput, id, text)
}

// SetChecked sets the pressed state of a two-state control: aria-pressed
// plus the "on" class.
func (d *Document) SetChecked(id string, on bool) {
	if n, ok := d.byID[id]; ok {
		setAttr(n, "aria-pressed", strconv.FormatBool(on))
		if on {
			addClass(n, checkedClass)
		} else {
			removeClass(n, checkedClass)
		}
	}
	d.publish(store.KindChecked, id, on)
}

// Checked reports the pressed state of a two-state control.
func (d *Document) Checked(id string) bool {
	n, ok := d.byID[id]
	return ok && attr(n, "aria-pressed") == "true"
}

// Text returns the last text written to id.
func (d *Document) Text(id string) string {
	return d.texts[id]
}

// SetInvalid flags or clears an element as holding invalid input.
func (d *Document) SetInvalid(id string, invalid bool) {
	if d.invalid[id] == invalid {
		return
	}
	d.invalid[id] = invalid
	if n, ok := d.byID[id]; ok {
		if invalid {
			addClass(n, invalidClass)
		} else {
			removeClass(n, invalidClass)
		}
	}
	d.publish(store.KindInvalid, id, invalid)
}

// Invalid reports whether id is flagged invalid.
func (d *Document) Invalid(id string) bool {
	return d.invalid[id]
}

// OnAction sets the handler for user actions on a control, replacing any
// previous handler for that id.
func (d *Document) OnAction(id string, fn func(value string)) {
	d.handlers[id] = fn
}

// Dispatch delivers a user action to the control's handler. The control must
// be present in the document and enabled.
func (d *Document) Dispatch(id, value string) error {
	if _, ok := d.controls[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	if !d.ControlEnabled(id) {
		return fmt.Errorf("%w: %s", ErrControlDisabled, id)
	}
	fn, ok := d.handlers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, id)
	}
	fn(value)
	return nil
}

// Alert raises a user-visible notification.
func (d *Document) Alert(message string) {
	d.publish(store.KindAlert, "", message)
}

// SetConnectivity publishes the remote link state shown by the console.
func (d *Document) SetConnectivity(state string) {
	d.publish(store.KindConnectivity, "", state)
}

// SetPage publishes the name of the page now on screen.
func (d *Document) SetPage(name string) {
	d.publish(store.KindPage, "", name)
}
