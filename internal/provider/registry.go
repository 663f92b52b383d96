// Package provider resolves format identifiers to parsers that turn raw bytes
// into document.Document values.
//
// A Registry is populated once at startup and then only read. Providers are
// stateless with respect to individual files, so a single resolved Provider is
// reused for every file in a run.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yourusername/deserialize-bench/internal/document"
)

// Built-in provider keys.
const (
	KeyJupyter  = "jupyter-notebook"
	KeyMarkdown = "markdown"
	KeyYAML     = "yaml-stream"
)

// Provider deserializes the bytes of one format family.
//
// Parse returns a *ParseError for malformed input and an *UnsupportedError
// for input that is well-formed but not of the provider's kind. It should
// return promptly once ctx is done.
type Provider interface {
	Parse(ctx context.Context, content []byte) (*document.Document, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, content []byte) (*document.Document, error)

// Parse calls f(ctx, content).
func (f Func) Parse(ctx context.Context, content []byte) (*document.Document, error) {
	return f(ctx, content)
}

// Registry maps provider keys to providers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// NewDefaultRegistry creates a registry with every built-in provider
// registered under its Key* constant.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(KeyJupyter, NewJupyter())
	r.MustRegister(KeyMarkdown, NewMarkdown())
	r.MustRegister(KeyYAML, NewYAMLStream())
	return r
}

// Register binds key to p. Keys must be non-empty and unique.
func (r *Registry) Register(key string, p Provider) error {
	if key == "" {
		return fmt.Errorf("provider key must not be empty")
	}
	if p == nil {
		return fmt.Errorf("provider for %q must not be nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("provider %q already registered", key)
	}
	r.providers[key] = p
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// registrations made during program initialization.
func (r *Registry) MustRegister(key string, p Provider) {
	if err := r.Register(key, p); err != nil {
		panic(err)
	}
}

// Resolve returns the provider bound to key, or an *UnknownProviderError.
func (r *Registry) Resolve(key string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[key]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownProviderError{Key: key}
	}
	return p, nil
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
