package main

import (
	"io/fs"
	"path"
	"strings"
	"testing"

	"github.com/etymology/winderconsole/internal/widget"
)

func TestSite_DescriptorsParse(t *testing.T) {
	site, err := fs.Sub(siteFiles, "site")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	names, err := fs.Glob(site, "*.yaml")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no descriptors embedded")
	}
	for _, name := range names {
		body, err := fs.ReadFile(site, name)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if _, err := widget.ParseDescriptor(body); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestSite_PagesHaveMarkup(t *testing.T) {
	site, err := fs.Sub(siteFiles, "site")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	names, _ := fs.Glob(site, "*.yaml")
	for _, name := range names {
		base := strings.TrimSuffix(name, path.Ext(name))
		if base == "Remote" {
			continue
		}
		if _, err := fs.Stat(site, base+".html"); err != nil {
			t.Errorf("page %s has no markup: %v", base, err)
		}
	}
}
