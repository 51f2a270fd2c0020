package operations

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps variant tags to variants so serialized operations can be
// decoded. It is populated at variant definition time and read-only
// thereafter; the zero registry is not usable, use NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]*Variant
}

// DefaultRegistry is the process-wide registry used by NewVariant, FromFunc
// and the envelope decoders unless an explicit registry is supplied.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]*Variant)}
}

// Register adds a variant. Registering a second variant under the same tag
// is an error: tags are the serialized identity of a variant and must be
// unique within a registry.
func (r *Registry) Register(v *Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.variants[v.def.Tag]; ok {
		return fmt.Errorf("registry: tag %q already registered", v.def.Tag)
	}
	r.variants[v.def.Tag] = v

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(v *Variant) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Lookup retrieves the variant registered under tag, or an error wrapping
// ErrUnknownOperation.
func (r *Registry) Lookup(tag string) (*Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.variants[tag]
	if !ok {
		return nil, fmt.Errorf("%q: %w", tag, ErrUnknownOperation)
	}

	return v, nil
}

// Tags returns all registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.variants))
	for tag := range r.variants {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}
