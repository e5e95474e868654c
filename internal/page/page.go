package page

import (
	"slices"

	"github.com/etymology/winderconsole/internal/module"
)

// Page is one constructed page and, while suspended, its cached content.
type Page struct {
	name   string
	slot   string
	loader *module.Loader

	// slots filled by the page, in fill order
	slots  []string
	cached map[string]string
	styles []string

	outstanding int
	broken      bool
}

// Name returns the page name.
func (p *Page) Name() string { return p.name }

// Slot returns the slot the page's content was loaded into.
func (p *Page) Slot() string { return p.slot }

// Loader returns the page's module loader.
func (p *Page) Loader() *module.Loader { return p.loader }

// Slots returns the slots the page has filled.
func (p *Page) Slots() []string { return append([]string(nil), p.slots...) }

// Outstanding returns the number of sub-pages still loading.
func (p *Page) Outstanding() int { return p.outstanding }

func (p *Page) addSlot(slot string) {
	if !slices.Contains(p.slots, slot) {
		p.slots = append(p.slots, slot)
	}
}
