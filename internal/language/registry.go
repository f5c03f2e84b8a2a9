package language

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownLanguage is returned when no policy is registered under a name
var ErrUnknownLanguage = errors.New("unknown language")

// Registry maps names and file extensions to policies
type Registry struct {
	byName map[string]Policy
	byExt  map[string]string
}

// NewRegistry creates a registry holding the given policies
func NewRegistry(policies ...Policy) *Registry {
	r := &Registry{
		byName: make(map[string]Policy),
		byExt:  make(map[string]string),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Default returns a registry with every built-in policy
func Default() *Registry {
	return NewRegistry(VFP(), CSharp(), Go())
}

// Register adds or replaces a policy. Later registrations win extension clashes.
func (r *Registry) Register(p Policy) {
	name := strings.ToLower(p.Name)
	r.byName[name] = p
	for _, ext := range p.Extensions {
		r.byExt[strings.ToLower(ext)] = name
	}
}

// Lookup finds a policy by name
func (r *Registry) Lookup(name string) (Policy, error) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s (known: %s)", ErrUnknownLanguage, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// ForPath finds the policy that handles a file's extension
func (r *Registry) ForPath(path string) (Policy, bool) {
	name, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Policy{}, false
	}
	return r.byName[name], true
}

// Names returns registered policy names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extensions returns every registered extension in sorted order
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for e := range r.byExt {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}
