package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ProviderConfig contains provider-specific configuration
type ProviderConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Config json.RawMessage `yaml:"config" json:"config"`
}

// PluginConfig provides initialization parameters to store providers
type PluginConfig struct {
	// Config contains provider-specific configuration
	Config json.RawMessage
}

// ProviderFactory creates job stores from configuration
type ProviderFactory func(config PluginConfig) (JobStore, error)

var (
	registry = make(map[string]ProviderFactory)
	mu       sync.RWMutex
)

// RegisterProvider registers a store factory for a provider type
func RegisterProvider(providerType string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[providerType] = factory
}

// NewStore creates a job store from provider configuration
func NewStore(providerConfig ProviderConfig, pluginConfig PluginConfig) (JobStore, error) {
	mu.RLock()
	factory, ok := registry[providerConfig.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store provider type: %s", providerConfig.Type)
	}

	pluginConfig.Config = providerConfig.Config

	return factory(pluginConfig)
}

// ListProviders returns registered provider types
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	return providers
}
