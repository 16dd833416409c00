// Package constraint implements the constraint catalog (spec §4.C): the
// single source of truth for how every string-valued field of every
// persisted entity class is validated and normalised.
package constraint

import (
	"sort"
	"strings"
	"sync"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
)

// Property is one validation rule: a charset/length contract for one named
// field of one component.
type Property struct {
	Name              string
	IsAlphabetic      bool
	IsNumeric         bool
	Min               int
	Max               int
	NotAllowed        map[rune]struct{}
	AdditionalAllowed map[rune]struct{}
}

func newProperty(name string, isAlpha, isNumeric bool, min, max int) *Property {
	return &Property{
		Name:              name,
		IsAlphabetic:      isAlpha,
		IsNumeric:         isNumeric,
		Min:               min,
		Max:               max,
		NotAllowed:        map[rune]struct{}{},
		AdditionalAllowed: map[rune]struct{}{},
	}
}

func (p *Property) withNotAllowed(chars string) *Property {
	for _, c := range chars {
		p.NotAllowed[c] = struct{}{}
	}
	return p
}

func (p *Property) withAdditionalAllowed(chars string) *Property {
	for _, c := range chars {
		p.AdditionalAllowed[c] = struct{}{}
	}
	return p
}

// Component is a named set of Properties, e.g. "structure" or "datapair".
type Component struct {
	Name       string
	Properties []*Property
}

func (c *Component) get(name string) (*Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// snapshotCache is the subset of db/bolt's SnapshotCache a Catalog needs,
// kept as an interface so this package never imports db/bolt directly.
type snapshotCache interface {
	Get(key string) (string, bool)
	Put(key, text string) error
	Invalidate(key string) error
}

const catalogSnapshotKey = "constraints"

// Catalog is the process-wide, mutex-guarded constraint store. It is
// read-only once loaded: the only write is persisting the seeded rows via
// Codec (and into the snapshot cache) when the backing file is empty; no
// setter changes a loaded catalog.
type Catalog struct {
	path string
	key  string

	mu         sync.RWMutex
	components map[string]*Component

	cache snapshotCache
}

// New returns a Catalog backed by the file at path, seeded with the
// built-in rows on first use if the file does not yet exist.
func New(path, encryptionKey string) *Catalog {
	return &Catalog{path: path, key: encryptionKey}
}

// WithCache attaches a process-wide read-through snapshot cache (db/bolt's
// SnapshotCache satisfies this). A cache miss always falls back to Codec.
func (c *Catalog) WithCache(cache snapshotCache) *Catalog {
	c.cache = cache
	return c
}

func (c *Catalog) ensureLoaded() error {
	c.mu.RLock()
	loaded := c.components != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	var text string
	cached := false
	if c.cache != nil {
		if t, ok := c.cache.Get(catalogSnapshotKey); ok {
			text, cached = t, true
		}
	}
	if !cached {
		t, err := codec.Fetch(c.path, c.key)
		if err != nil {
			return err
		}
		text = t
	}

	components := Seed()
	if strings.TrimSpace(text) != "" {
		components = Unmarshal(text)
	}

	c.mu.Lock()
	c.components = components
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return c.persist()
	}
	if !cached && c.cache != nil {
		_ = c.cache.Put(catalogSnapshotKey, text)
	}
	return nil
}

func (c *Catalog) persist() error {
	c.mu.RLock()
	snapshot := c.components
	c.mu.RUnlock()
	text := Marshal(snapshot)
	if err := codec.Save(c.path, text, c.key); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Put(catalogSnapshotKey, text)
	}
	return nil
}

// Validate runs the five-step algorithm of spec §4.C against value and
// returns the normalised value', or an error.
//
//  1. Trim whitespace.
//  2. Enforce min <= len(value) <= max.
//  3. Replace each not_allowed char with '_'; replace literal '\n' with
//     the newline sentinel.
//  4. Build a charset-check copy with every additional_allowed char
//     stripped.
//  5. Enforce the alphabetic/numeric charset rule against the check copy.
//
// The trimmed (but not charset-stripped) value is returned.
func (c *Catalog) Validate(component, property, value string) (string, error) {
	if err := c.ensureLoaded(); err != nil {
		return "", err
	}

	c.mu.RLock()
	comp, ok := c.components[component]
	c.mu.RUnlock()
	if !ok {
		return "", apperr.NotFoundf("Error: no constraint component %q", component)
	}

	prop, ok := comp.get(property)
	if !ok {
		return "", apperr.NotFoundf("Error: no constraint property %q for %q", property, component)
	}

	return validateAgainst(prop, value)
}

func validateAgainst(prop *Property, value string) (string, error) {
	trimmed := strings.TrimSpace(value)

	length := len([]rune(trimmed))
	if length < prop.Min || length > prop.Max {
		return "", apperr.BadInputf("Error: %s must be between %d and %d characters", prop.Name, prop.Min, prop.Max)
	}

	var escaped strings.Builder
	for _, r := range trimmed {
		if _, bad := prop.NotAllowed[r]; bad {
			escaped.WriteRune('_')
			continue
		}
		if r == '\n' {
			escaped.WriteString(codec.NewlineSentinel)
			continue
		}
		escaped.WriteRune(r)
	}
	finalValue := escaped.String()

	var check strings.Builder
	for _, r := range finalValue {
		if _, allowed := prop.AdditionalAllowed[r]; allowed {
			continue
		}
		check.WriteRune(r)
	}
	checkValue := check.String()

	switch {
	case prop.IsAlphabetic && prop.IsNumeric:
		if !isASCIIAlnum(checkValue) {
			return "", apperr.BadInputf("Error: %s must be alphanumeric", prop.Name)
		}
	case prop.IsAlphabetic:
		if !isASCIIAlpha(checkValue) {
			return "", apperr.BadInputf("Error: %s must be alphabetic", prop.Name)
		}
	case prop.IsNumeric:
		if !isASCIIDigits(checkValue) {
			return "", apperr.BadInputf("Error: %s must be numeric", prop.Name)
		}
	}

	return finalValue, nil
}

func isASCIIAlnum(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func isASCIIAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func isASCIIDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ComponentNames returns a snapshot of every component name, sorted, for
// diagnostics/tests.
func (c *Catalog) ComponentNames() []string {
	_ = c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
