// Package libraries resolves library names to their editability. Every
// resolver reports unknown names with aggregates.ErrUnknownLibrary.
package libraries

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

var _ aggregates.LibraryPolicy = (*StaticPolicy)(nil)

func unknown(name string) error {
	return fmt.Errorf("%w: %q", aggregates.ErrUnknownLibrary, name)
}

// StaticPolicy is an in-memory catalogue, safe for concurrent use.
type StaticPolicy struct {
	mu   sync.RWMutex
	libs map[string]bool
}

func NewStaticPolicy(libs ...versioning.Library) *StaticPolicy {
	p := &StaticPolicy{libs: map[string]bool{}}
	p.Replace(libs)
	return p
}

func (p *StaticPolicy) Resolve(_ context.Context, name string) (versioning.Library, error) {
	name = strings.TrimSpace(name)
	p.mu.RLock()
	editable, ok := p.libs[name]
	p.mu.RUnlock()
	if !ok {
		return versioning.Library{}, unknown(name)
	}
	return versioning.Library{Name: name, IsEditable: editable}, nil
}

func (p *StaticPolicy) Set(name string, editable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.libs[strings.TrimSpace(name)] = editable
}

// Replace swaps the whole catalogue.
func (p *StaticPolicy) Replace(libs []versioning.Library) {
	next := make(map[string]bool, len(libs))
	for _, l := range libs {
		if name := strings.TrimSpace(l.Name); name != "" {
			next[name] = l.IsEditable
		}
	}
	p.mu.Lock()
	p.libs = next
	p.mu.Unlock()
}

// List returns the catalogue sorted by name.
func (p *StaticPolicy) List() []versioning.Library {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]versioning.Library, 0, len(p.libs))
	for name, editable := range p.libs {
		out = append(out, versioning.Library{Name: name, IsEditable: editable})
	}
	sortLibraries(out)
	return out
}
