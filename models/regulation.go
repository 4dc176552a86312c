package models

import (
	"fmt"
	"strings"
)

// RegulationSection is one named chunk of a per-route regulation document:
// free regulatory text plus a simplified checklist.
type RegulationSection struct {
	Name      string   `json:"Section"`
	Content   string   `json:"Content"`
	Checklist []string `json:"Simplified Form"`
}

// RegulationDocument is the parsed content of one {source}_to_{destination}
// regulation file. Sections keep file order. Read-only at request time.
type RegulationDocument struct {
	Route    string              `json:"route"`
	Path     string              `json:"-"`
	Sections []RegulationSection `json:"sections"`
}

// SectionNames returns section names in document order.
func (d *RegulationDocument) SectionNames() []string {
	names := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		names = append(names, s.Name)
	}
	return names
}

// Section returns the named section, or false when absent.
func (d *RegulationDocument) Section(name string) (*RegulationSection, bool) {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// RouteKey normalizes a (source, destination) pair into the lookup key used
// by the rule store. Lookups must be case-insensitive.
func RouteKey(source, destination string) string {
	return strings.ToLower(strings.TrimSpace(source)) + "-" + strings.ToLower(strings.TrimSpace(destination))
}

// RegulationFileStem is the case-normalized filename (without extension) of
// the regulation document for a route.
func RegulationFileStem(source, destination string) string {
	return fmt.Sprintf("%s_to_%s", strings.ToLower(strings.TrimSpace(source)), strings.ToLower(strings.TrimSpace(destination)))
}

// SplitRouteKey is the inverse of RouteKey, used by the admin endpoints.
func SplitRouteKey(key string) (source, destination string) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}
