// Package transport exposes the identity operations over protocol
// surfaces. Each adapter translates one wire shape, REST JSON, form
// posts, GraphQL, into service calls and renders results and rich
// errors back into that protocol's envelope. The registry lets an
// embedding server mount only the surfaces it serves.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

// Request is the protocol-neutral shape handed to an adapter. The HTTP
// server in front of the registry fills it from the incoming request.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Adapter serves one protocol surface. Service-level rejections come
// back as rendered responses, not errors; the error return is for
// adapter misconfiguration.
type Adapter interface {
	Kind() string
	Handle(ctx context.Context, req Request) (Response, error)
}

type AdapterFactory func(config map[string]any) (Adapter, error)

type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	factories map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:  map[string]Adapter{},
		factories: map[string]AdapterFactory{},
	}
}

// NewDefaultRegistry wires the surfaces the service ships with. SOAP and
// gRPC stay registered as explicit unsupported kinds so a misrouted
// request gets a clear 501 instead of a 404.
func NewDefaultRegistry(service core.IdentityService) *Registry {
	registry := NewRegistry()
	rest := NewRESTAdapter(service)
	_ = registry.Register(rest)
	_ = registry.Register(NewFormAdapter(rest))
	_ = registry.Register(NewGraphQLAdapter(service))
	for _, kind := range []string{KindSOAP, KindGRPC} {
		_ = registry.RegisterFactory(kind, unsupportedFactory(kind))
	}
	return registry
}

func (r *Registry) Register(adapter Adapter) error {
	if r == nil {
		return transportError(
			"transport: registry is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if adapter == nil {
		return transportError(
			"transport: adapter is nil",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	kind := normalizeKind(adapter.Kind())
	if kind == "" {
		return transportError(
			"transport: adapter kind is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[kind]; exists {
		return transportError(
			fmt.Sprintf("transport: adapter kind %q already registered", kind),
			goerrors.CategoryConflict,
			http.StatusConflict,
			map[string]any{"kind": kind},
		)
	}
	r.adapters[kind] = adapter
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory AdapterFactory) error {
	if r == nil {
		return transportError(
			"transport: registry is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return transportError(
			"transport: adapter kind is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if factory == nil {
		return transportError(
			"transport: adapter factory is nil",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"kind": kind},
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return transportError(
			fmt.Sprintf("transport: adapter factory kind %q already registered", kind),
			goerrors.CategoryConflict,
			http.StatusConflict,
			map[string]any{"kind": kind},
		)
	}
	r.factories[kind] = factory
	return nil
}

// Build resolves an adapter, preferring registered instances and falling
// back to factories for lazily constructed kinds.
func (r *Registry) Build(kind string, config map[string]any) (Adapter, error) {
	if r == nil {
		return nil, transportError(
			"transport: registry is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return nil, transportError(
			"transport: adapter kind is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	r.mu.RLock()
	adapter, ok := r.adapters[kind]
	factory := r.factories[kind]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}
	if factory == nil {
		return nil, transportError(
			fmt.Sprintf("transport: adapter kind %q not registered", kind),
			goerrors.CategoryBadInput,
			http.StatusNotFound,
			map[string]any{"kind": kind},
		)
	}
	built, err := factory(cloneConfig(config))
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, transportError(
			fmt.Sprintf("transport: factory for %q returned nil adapter", kind),
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"kind": kind},
		)
	}
	return built, nil
}

func (r *Registry) Get(kind string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	kind = normalizeKind(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[kind]
	return adapter, ok
}

func (r *Registry) List() []Adapter {
	if r == nil {
		return []Adapter{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	result := make([]Adapter, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, r.adapters[kind])
	}
	return result
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}

func unsupportedFactory(kind string) AdapterFactory {
	return func(config map[string]any) (Adapter, error) {
		reason := strings.TrimSpace(fmt.Sprint(config["reason"]))
		if reason == "" || reason == "<nil>" {
			reason = "surface is not compiled into this deployment"
		}
		return NewUnsupportedAdapter(kind, reason), nil
	}
}

func cloneConfig(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}
