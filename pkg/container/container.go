// Package container is a small service registry. Factories are registered at
// boot and resolved lazily on first Make, so commands that never touch a
// service never pay for building it.
package container

import (
	"fmt"
	"sync"
)

type binding struct {
	factory  func() any
	once     sync.Once
	instance any
}

var (
	mu       sync.Mutex
	bindings = map[string]*binding{}
)

// Singleton registers a factory that runs once; later Make calls return the
// same instance.
func Singleton[T any](key string, factory func() T) {
	mu.Lock()
	defer mu.Unlock()
	bindings[key] = &binding{factory: func() any { return factory() }}
}

// Instance registers an already built value.
func Instance[T any](key string, v T) {
	mu.Lock()
	defer mu.Unlock()
	b := &binding{instance: v}
	b.once.Do(func() {})
	bindings[key] = b
}

// Make resolves key as T. It panics when key is unbound or bound to another
// type; both are wiring bugs. Factories may Make their own dependencies.
func Make[T any](key string) T {
	mu.Lock()
	b, ok := bindings[key]
	mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("container: unknown binding %q", key))
	}

	b.once.Do(func() { b.instance = b.factory() })
	v := b.instance

	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("container: binding %q is %T, not %T", key, v, *new(T)))
	}
	return t
}

// Reset drops every binding.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	bindings = map[string]*binding{}
}
