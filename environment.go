package calc

import (
	"math"
	"sort"
)

// Environment maps variable names to values. One environment lives for a
// whole run and is mutated in place by assignments.
type Environment struct {
	store map[string]Value
}

func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Value)}
}

// NewGlobalEnvironment returns an environment seeded with the built-in
// constants.
func NewGlobalEnvironment() *Environment {
	env := NewEnvironment()
	env.Set("pi", &Number{Value: math.Pi})
	return env
}

func (e *Environment) Get(name string) (Value, bool) {
	val, ok := e.store[name]
	return val, ok
}

func (e *Environment) Set(name string, val Value) Value {
	e.store[name] = val
	return val
}

func (e *Environment) Delete(name string) {
	delete(e.store, name)
}

func (e *Environment) Len() int {
	return len(e.store)
}

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy. Values are immutable so sharing them is safe.
func (e *Environment) Clone() *Environment {
	c := &Environment{store: make(map[string]Value, len(e.store))}
	for k, v := range e.store {
		c.store[k] = v
	}
	return c
}
