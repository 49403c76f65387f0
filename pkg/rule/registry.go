package rule

import (
	"fmt"
	"sort"
	"sync"
)

// Comparator decides whether an attribute satisfies a rule value.
// Comparators must not panic and must return false on type mismatch.
type Comparator func(attr, target Value) bool

type operatorEntry struct {
	symbol     string
	comparator Comparator
}

// Registry manages the available operators.
// It provides thread-safe registration and lookup of comparators.
type Registry struct {
	operators map[Operator]operatorEntry
	mu        sync.RWMutex
}

// NewRegistry creates a new empty operator registry.
func NewRegistry() *Registry {
	return &Registry{
		operators: make(map[Operator]operatorEntry),
	}
}

// NewBuiltinRegistry creates a registry holding eq, ne, gt, gte, lt, lte and in.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, b := range builtinOperators {
		_ = r.Register(b.op, b.symbol, b.cmp)
	}
	return r
}

// Register adds an operator to the registry.
// Returns an error if the operator is already registered.
func (r *Registry) Register(op Operator, symbol string, cmp Comparator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operators[op]; exists {
		return fmt.Errorf("operator %s already registered", op)
	}
	if cmp == nil {
		return fmt.Errorf("operator %s has no comparator", op)
	}

	r.operators[op] = operatorEntry{symbol: symbol, comparator: cmp}
	return nil
}

// Get returns the comparator for an operator.
func (r *Registry) Get(op Operator) (Comparator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.operators[op]
	return entry.comparator, ok
}

// Symbol returns the label symbol of an operator, or the operator name if unknown.
func (r *Registry) Symbol(op Operator) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.operators[op]; ok {
		return entry.symbol
	}
	return string(op)
}

// Operators returns the registered operators sorted by name.
func (r *Registry) Operators() []Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operator, 0, len(r.operators))
	for op := range r.operators {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Count returns the number of registered operators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.operators)
}

var defaultRegistry = NewBuiltinRegistry()

// RegisterOperator adds an operator to the process-wide registry used by Evaluate.
func RegisterOperator(op Operator, symbol string, cmp Comparator) error {
	return defaultRegistry.Register(op, symbol, cmp)
}

// DefaultRegistry returns the process-wide operator registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
