package ir

import "sync"

// Schema describes one registered overload of an operator: its argument
// names in positional order. Operator resolution dispatches on the node's
// Variant tag, but the planner still consults schemas to learn whether an
// out-writing overload exists at all.
type Schema struct {
	Name     string
	Overload string
	Args     []string
}

// HasOutArg reports whether the overload takes a caller-supplied
// destination buffer.
func (s Schema) HasOutArg() bool {
	for _, a := range s.Args {
		if a == "out" {
			return true
		}
	}
	return false
}

var (
	registryOnce sync.Once
	registry     map[string][]Schema
)

// The table is built once and never mutated afterwards; all lookups read
// the same immutable map.
func buildRegistry() {
	schemas := []Schema{
		{Name: "aten.add", Args: []string{"self", "other"}},
		{Name: "aten.add", Overload: "out", Args: []string{"self", "other", "out"}},
		{Name: "aten.sub", Args: []string{"self", "other"}},
		{Name: "aten.sub", Overload: "out", Args: []string{"self", "other", "out"}},
		{Name: "aten.mul", Args: []string{"self", "other"}},
		{Name: "aten.mul", Overload: "out", Args: []string{"self", "other", "out"}},
		{Name: "aten.matmul", Args: []string{"self", "other"}},
		{Name: "aten.matmul", Overload: "out", Args: []string{"self", "other", "out"}},
		{Name: "aten.relu", Args: []string{"self"}},
		{Name: "aten.relu", Overload: "out", Args: []string{"self", "out"}},
		{Name: "aten.sigmoid", Args: []string{"self"}},
		{Name: "aten.sigmoid", Overload: "out", Args: []string{"self", "out"}},
		{Name: "aten.tanh", Args: []string{"self"}},
		{Name: "aten.tanh", Overload: "out", Args: []string{"self", "out"}},
		{Name: "aten.softmax", Args: []string{"self", "dim"}},
		{Name: "aten.softmax", Overload: "out", Args: []string{"self", "dim", "out"}},
		{Name: "aten.cat", Args: []string{"tensors", "dim"}},
		{Name: "aten.cat", Overload: "out", Args: []string{"tensors", "dim", "out"}},
		// nonzero has an out overload but a data-dependent output shape.
		{Name: "aten.nonzero", Args: []string{"self"}},
		{Name: "aten.nonzero", Overload: "out", Args: []string{"self", "out"}},
		// split produces a bounded tensor list.
		{Name: "aten.split", Args: []string{"self", "split_size", "dim"}},
		{Name: "aten.split", Overload: "out", Args: []string{"self", "split_size", "dim", "out"}},

		// View-like operators alias their input and never write out.
		{Name: "aten.view", Args: []string{"self", "size"}},
		{Name: "aten.reshape", Args: []string{"self", "shape"}},
		{Name: "aten.slice", Args: []string{"self", "dim", "start", "end", "step"}},
		{Name: "aten.transpose", Args: []string{"self", "dim0", "dim1"}},
		{Name: "aten.permute", Args: []string{"self", "dims"}},
		{Name: "aten.expand", Args: []string{"self", "size"}},

		// Container constructors.
		{Name: "prim.ListConstruct", Args: []string{"elements"}},
		{Name: "prim.TupleConstruct", Args: []string{"elements"}},

		// Planner-inserted instructions.
		{Name: OpAllocateStorage, Args: nil},
		{Name: OpAllocateTensor, Args: []string{"storage"}},
	}
	registry = make(map[string][]Schema, len(schemas))
	for _, s := range schemas {
		registry[s.Name] = append(registry[s.Name], s)
	}
}

// OverloadsFor returns all registered overloads of op, in registration
// order. The result is shared; callers must not modify it.
func OverloadsFor(op string) []Schema {
	registryOnce.Do(buildRegistry)
	return registry[op]
}

// HasOutVariant reports whether op has at least one overload that writes
// into a caller-supplied destination.
func HasOutVariant(op string) bool {
	for _, s := range OverloadsFor(op) {
		if s.HasOutArg() {
			return true
		}
	}
	return false
}

var viewOps = map[string]struct{}{
	"aten.view":      {},
	"aten.reshape":   {},
	"aten.slice":     {},
	"aten.transpose": {},
	"aten.permute":   {},
	"aten.expand":    {},
}

// IsViewOp reports whether op produces an aliasing view of its first input.
func IsViewOp(op string) bool {
	_, ok := viewOps[op]
	return ok
}

var containerOps = map[string]struct{}{
	"prim.ListConstruct":  {},
	"prim.TupleConstruct": {},
	"aten.split":          {},
}

// IsContainerOp reports whether op constructs a bounded container value.
// Container outputs have no computable tensor storage size but are safe to
// leave unmanaged without a warning.
func IsContainerOp(op string) bool {
	_, ok := containerOps[op]
	return ok
}
