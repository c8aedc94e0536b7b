package rehydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Factory rebuilds a receiver from its JSON state.
type Factory func(state json.RawMessage) (any, error)

// JSONFactory returns a Factory that decodes the state into a new T and
// returns a *T, so pointer methods are callable.
func JSONFactory[T any]() Factory {
	return func(state json.RawMessage) (any, error) {
		v := new(T)
		if len(state) > 0 {
			if err := json.Unmarshal(state, v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

// Module is the replayable surface of one package.
type Module struct {
	Location string // directory of the package
	Name     string // import path

	// Setup and Teardown run around every replayed call of the module.
	Setup    func(ctx context.Context) error
	Teardown func(ctx context.Context) error

	funcs map[string]reflect.Value
	types map[string]Factory
}

func NewModule(location, name string) *Module {
	return &Module{
		Location: location,
		Name:     name,
		funcs:    make(map[string]reflect.Value),
		types:    make(map[string]Factory),
	}
}

// Func registers a package level function. fn must be a func.
func (m *Module) Func(name string, fn any) *Module {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("rehydrate: %s.%s is %T, not a func", m.Name, name, fn))
	}
	m.funcs[name] = v
	return m
}

// Type registers a receiver factory under typeName.
func (m *Module) Type(typeName string, f Factory) *Module {
	m.types[typeName] = f
	return m
}

func (m *Module) label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Location
}

// Registry holds the modules that can be replayed in this process.
type Registry struct {
	mu         sync.RWMutex
	byLocation map[string]*Module
	byName     map[string]*Module
}

func NewRegistry() *Registry {
	return &Registry{
		byLocation: make(map[string]*Module),
		byName:     make(map[string]*Module),
	}
}

// Register adds m, replacing any module with the same location or name.
func (r *Registry) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Location != "" {
		r.byLocation[m.Location] = m
	}
	if m.Name != "" {
		r.byName[m.Name] = m
	}
}

// Lookup finds the module for a descriptor: by location first, by name second.
func (r *Registry) Lookup(location, name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byLocation[location]; ok && location != "" {
		return m, true
	}
	if m, ok := r.byName[name]; ok && name != "" {
		return m, true
	}
	return nil, false
}

// Default is the process wide registry used by Register.
var Default = NewRegistry()

// Register adds m to Default.
func Register(m *Module) {
	Default.Register(m)
}
