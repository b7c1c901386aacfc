// Package registry maps configured component names onto sink and state
// store factories. Implementations register themselves from init().
package registry

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

// Env carries the process resources a factory may need.
type Env struct {
	// Out is where stream-oriented sinks write, normally os.Stdout
	Out    io.Writer
	Logger *zap.Logger
}

// SinkFactory creates a record sink from its configuration.
type SinkFactory func(cfg config.Component, env Env) (core.RecordSink, error)

// StoreFactory creates a state store from its configuration.
type StoreFactory func(cfg config.Component, env Env) (core.StateStore, error)

// Registry manages component registration and instantiation
type Registry struct {
	sinks  map[string]SinkFactory
	stores map[string]StoreFactory
	mu     sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new component registry
func NewRegistry() *Registry {
	return &Registry{
		sinks:  make(map[string]SinkFactory),
		stores: make(map[string]StoreFactory),
	}
}

// RegisterSink registers a sink factory
func (r *Registry) RegisterSink(name string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("sink %s already registered", name))
	}

	r.sinks[name] = factory
	return nil
}

// RegisterStore registers a state store factory
func (r *Registry) RegisterStore(name string, factory StoreFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("state store %s already registered", name))
	}

	r.stores[name] = factory
	return nil
}

// CreateSink creates a sink instance
func (r *Registry) CreateSink(cfg config.Component, env Env) (core.RecordSink, error) {
	r.mu.RLock()
	factory, exists := r.sinks[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("sink %s not found", cfg.Type))
	}

	sink, err := factory(cfg, env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create sink %s", cfg.Type))
	}

	if env.Logger != nil {
		env.Logger.Debug("sink created", zap.String("type", cfg.Type))
	}
	return sink, nil
}

// CreateStore creates a state store instance
func (r *Registry) CreateStore(cfg config.Component, env Env) (core.StateStore, error) {
	r.mu.RLock()
	factory, exists := r.stores[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("state store %s not found", cfg.Type))
	}

	store, err := factory(cfg, env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create state store %s", cfg.Type))
	}

	if env.Logger != nil {
		env.Logger.Debug("state store created", zap.String("type", cfg.Type))
	}
	return store, nil
}

// ListSinks returns the registered sink names in order
func (r *Registry) ListSinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListStores returns the registered state store names in order
func (r *Registry) ListStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered components (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks = make(map[string]SinkFactory)
	r.stores = make(map[string]StoreFactory)
}

// Global registry functions

// RegisterSink registers a sink in the global registry
func RegisterSink(name string, factory SinkFactory) error {
	return globalRegistry.RegisterSink(name, factory)
}

// RegisterStore registers a state store in the global registry
func RegisterStore(name string, factory StoreFactory) error {
	return globalRegistry.RegisterStore(name, factory)
}

// CreateSink creates a sink from the global registry
func CreateSink(cfg config.Component, env Env) (core.RecordSink, error) {
	return globalRegistry.CreateSink(cfg, env)
}

// CreateStore creates a state store from the global registry
func CreateStore(cfg config.Component, env Env) (core.StateStore, error) {
	return globalRegistry.CreateStore(cfg, env)
}

// ListSinks returns registered sinks from the global registry
func ListSinks() []string {
	return globalRegistry.ListSinks()
}

// ListStores returns registered state stores from the global registry
func ListStores() []string {
	return globalRegistry.ListStores()
}

// ConnectorInfo provides information about a component
type ConnectorInfo struct {
	Name         string             `json:"name"`
	Type         core.ConnectorType `json:"type"`
	Description  string             `json:"description"`
	Capabilities []string           `json:"capabilities"`
	Options      map[string]string  `json:"options"`
}

// ConnectorCatalog manages component metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new component catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

func infoKey(t core.ConnectorType, name string) string {
	return string(t) + "/" + name
}

// Register adds a component to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := infoKey(info.Type, info.Name)
	if _, exists := c.connectors[key]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s %s already in catalog", info.Type, info.Name))
	}

	c.connectors[key] = info
	return nil
}

// Get retrieves component information
func (c *ConnectorCatalog) Get(t core.ConnectorType, name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[infoKey(t, name)]
	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s %s not found in catalog", t, name))
	}

	return info, nil
}

// List returns all components sorted by type and name
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infoKey(infos[i].Type, infos[i].Name) < infoKey(infos[j].Type, infos[j].Name)
	})
	return infos
}

// Global catalog instance
var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers component information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves component information from the global catalog
func GetConnectorInfo(t core.ConnectorType, name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(t, name)
}
