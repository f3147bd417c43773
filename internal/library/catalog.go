// Package library implements the library-plan catalog (spec.md §6.1's
// findLibraryNode): a name-keyed registry of parsed library node
// templates, looked up by a LibraryCall body and instantiated fresh per
// call site so two calls to the same library never share node identity.
package library

import (
	"sync"

	"github.com/arclight-systems/planexec/internal/domain"
)

// Template is a library plan ready to be instantiated under a
// LibraryCall. Build constructs a fresh, uniquified subtree rooted under
// parent with the given call-site ID; it is supplied by the caller
// (typically the planxml loader, which knows how to re-run the parser
// logic that built the template in the first place).
type Template struct {
	Name  string
	Build func(parent Parent, callSiteID string) (Child, error)
}

// Parent and Child are the minimal node.Node surface the catalog needs;
// kept as interfaces here so this package does not import node (the
// planxml loader imports both to resolve LibraryCall bodies).
type Parent interface{ NodeID() string }
type Child interface{ NodeID() string }

// Catalog is a thread-safe name→Template registry, adapted from a
// generic plugin registry into the PLEXIL library-plan lookup table
// (spec.md §2's out-of-scope C-collaborator "library-plan catalog and ID
// uniquifier").
type Catalog struct {
	mu   sync.RWMutex
	byID map[string]Template
}

// NewCatalog builds an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]Template)}
}

// Register adds a library template under its name. A duplicate name is
// a ParseError-class failure — library names are unique within a host's
// search path, same as a node's siblings.
func (c *Catalog) Register(t Template) error {
	if t.Name == "" {
		return domain.NewError(domain.ErrCodeParseError, "library template has empty name", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[t.Name]; exists {
		return domain.NewError(domain.ErrCodeDuplicateName, "library \""+t.Name+"\" already registered", nil)
	}
	c.byID[t.Name] = t
	return nil
}

// FindLibraryNode looks up a template by name (spec.md §6.1).
func (c *Catalog) FindLibraryNode(name string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[name]
	return t, ok
}

// Names lists every registered library name.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byID))
	for n := range c.byID {
		out = append(out, n)
	}
	return out
}
