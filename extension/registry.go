package extension

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// Handler is a worker entry point: a pure function over its input with no
// access to coordinator state.
type Handler func(ctx context.Context, input interface{}) (interface{}, error)

// ErrKindNotFound reports an unregistered task kind.
func ErrKindNotFound(kind string) error {
	return fmt.Errorf("extension: task kind %q not registered", kind)
}

type entry struct {
	handler Handler
	input   reflect.Type
}

// Registry maps task kinds to handlers.  Kinds with a registered input type
// get their raw payload converted before the handler runs.
type Registry struct {
	types     *Types
	entries   map[string]*entry
	converter *conv.Converter
	mux       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...x.RegistryOption) *Registry {
	converterOptions := conv.DefaultOptions()
	converterOptions.ClonePointerData = true
	converterOptions.IgnoreUnmapped = true
	return &Registry{
		types:     NewTypes(options...),
		entries:   make(map[string]*entry),
		converter: conv.NewConverter(converterOptions),
	}
}

// Register binds a kind to a handler taking the raw payload as-is.
func (r *Registry) Register(kind string, handler Handler) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.entries[kind] = &entry{handler: handler}
}

// RegisterTyped binds a kind to a handler whose input is converted to the
// supplied struct type before invocation.  The type is also published to the
// type registry so RegisterTypedByName can resolve it later.
func (r *Registry) RegisterTyped(kind string, inputType reflect.Type, handler Handler) {
	r.mux.Lock()
	defer r.mux.Unlock()
	published := inputType
	if published.Kind() == reflect.Ptr {
		published = published.Elem()
	}
	r.types.Register(x.NewType(published))
	r.entries[kind] = &entry{handler: handler, input: inputType}
}

// RegisterTypedByName binds a kind to a handler whose input type was
// previously published to the type registry, either by RegisterTyped or
// through Types().Register; used when kinds come from configuration rather
// than code.
func (r *Registry) RegisterTypedByName(kind, typeName string, handler Handler) error {
	aType := r.types.Lookup(typeName)
	if aType == nil {
		return fmt.Errorf("extension: input type %q not registered", typeName)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.entries[kind] = &entry{handler: handler, input: aType.Type}
	return nil
}

// Types exposes the underlying type registry so callers can publish payload
// types or look registered ones up by name.
func (r *Registry) Types() *Types {
	return r.types
}

// Kinds returns the registered kind names.
func (r *Registry) Kinds() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	kinds := make([]string, 0, len(r.entries))
	for kind := range r.entries {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Handler resolves the entry point for a kind, wrapping it with payload
// conversion when an input type was registered.
func (r *Registry) Handler(kind string) (Handler, error) {
	r.mux.RLock()
	registered, ok := r.entries[kind]
	r.mux.RUnlock()
	if !ok {
		return nil, ErrKindNotFound(kind)
	}
	if registered.input == nil {
		return registered.handler, nil
	}
	inputType := registered.input
	handler := registered.handler
	return func(ctx context.Context, payload interface{}) (interface{}, error) {
		input, err := r.typedValue(inputType, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input for kind %q: %w", kind, err)
		}
		return handler(ctx, input)
	}, nil
}

// typedValue converts a raw payload to an instance of the supplied type.
func (r *Registry) typedValue(aType reflect.Type, value interface{}) (interface{}, error) {
	if aType.Kind() == reflect.Ptr {
		aType = aType.Elem()
	}
	instance := reflect.New(aType).Interface()
	if err := r.converter.Convert(value, instance); err != nil {
		return nil, err
	}
	return instance, nil
}
