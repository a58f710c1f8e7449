package identity

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-identity/core"
	"github.com/goliatone/go-identity/providers"
)

// EndpointPack bundles userinfo endpoint overrides under one name, so a
// deployment can swap provider endpoints (sandbox hosts, proxies) as a
// unit.
type EndpointPack struct {
	Name      string
	Endpoints map[core.Provider]providers.EndpointConfig
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks is the registration point for downstream composition:
// endpoint packs feed the userinfo resolver, and command/query bundles let
// embedding applications hang their own handlers off the shared service.
type ExtensionHooks struct {
	mu sync.RWMutex

	endpointPacks map[string]EndpointPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		endpointPacks: map[string]EndpointPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterEndpointPack(pack EndpointPack) error {
	if h == nil {
		return fmt.Errorf("identity: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("identity: endpoint pack name is required")
	}
	if len(pack.Endpoints) == 0 {
		return fmt.Errorf("identity: endpoint pack %q has no endpoints", name)
	}
	normalized := EndpointPack{
		Name:      name,
		Endpoints: map[core.Provider]providers.EndpointConfig{},
	}
	for provider, endpoint := range pack.Endpoints {
		if !provider.Valid() {
			return fmt.Errorf("identity: endpoint pack %q references unknown provider %q", name, provider)
		}
		normalized.Endpoints[provider] = endpoint
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.endpointPacks[name]; exists {
		return fmt.Errorf("identity: endpoint pack %q already registered", name)
	}
	h.endpointPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("identity: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("identity: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("identity: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("identity: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// MergedEndpoints flattens all registered packs in name order, later packs
// overriding earlier ones per provider. The result plugs into
// providers.Config.Endpoints.
func (h *ExtensionHooks) MergedEndpoints() map[core.Provider]providers.EndpointConfig {
	if h == nil {
		return map[core.Provider]providers.EndpointConfig{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.endpointPacks))
	for name := range h.endpointPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := map[core.Provider]providers.EndpointConfig{}
	for _, name := range names {
		for provider, endpoint := range h.endpointPacks[name].Endpoints {
			merged[provider] = endpoint
		}
	}
	return merged
}

func (h *ExtensionHooks) EndpointPacks() []EndpointPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.endpointPacks))
	for name := range h.endpointPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EndpointPack, 0, len(names))
	for _, name := range names {
		pack := h.endpointPacks[name]
		endpoints := make(map[core.Provider]providers.EndpointConfig, len(pack.Endpoints))
		for provider, endpoint := range pack.Endpoints {
			endpoints[provider] = endpoint
		}
		out = append(out, EndpointPack{Name: pack.Name, Endpoints: endpoints})
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("identity: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
