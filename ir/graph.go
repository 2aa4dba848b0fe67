package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Value is a single datum produced by a node or supplied as a graph input.
// Values are owned by their Graph; passes read them and append consumers
// but never destroy them.
type Value struct {
	id   uint32
	Name string
	// Type is nil for container (non-tensor) values such as lists.
	Type *TensorType

	prod *Node
	uses []*Node
}

// ID returns the value's dense, creation-ordered identifier.
func (v *Value) ID() uint32 { return v.id }

// Producer returns the node that produces v, or nil for graph inputs.
func (v *Value) Producer() *Node { return v.prod }

// Uses returns the nodes that consume v, in the order they were wired.
func (v *Value) Uses() []*Node { return v.uses }

// Variant tags which overload of a node's operator has been selected.
// The rewriter switches a node to VariantOut when it wires a pre-planned
// destination buffer into it; operator resolution reads the tag instead of
// re-matching on the input signature.
type Variant uint8

const (
	VariantDefault Variant = iota
	VariantOut
)

// Attribute names used by allocation instructions.
const (
	AttrTotalSize = "total_size"
	AttrSize      = "size"
	AttrOffset    = "offset"
	AttrSizes     = "sizes"
	AttrStride    = "stride"
	AttrDevice    = "device"
	AttrDtype     = "dtype"
)

// Operator names reserved for the memory planner's inserted instructions.
const (
	OpAllocateStorage = "prim.AllocateStorage"
	OpAllocateTensor  = "prim.AllocateTensor"
)

// Node is one instruction of the graph: an operator applied to input
// values, producing output values.
type Node struct {
	Op      string
	Inputs  []*Value
	Outputs []*Value
	Variant Variant

	device    Device
	hasDevice bool

	iattrs  map[string]int64
	isattrs map[string][]int64
}

// AddInput appends v as a trailing input of n and records n as a consumer.
func (n *Node) AddInput(v *Value) {
	n.Inputs = append(n.Inputs, v)
	v.uses = append(v.uses, n)
}

// SetDevice annotates the node with a target device.
func (n *Node) SetDevice(d Device) {
	n.device = d
	n.hasDevice = true
}

// DeviceHint returns the node's device annotation, if any.
func (n *Node) DeviceHint() (Device, bool) {
	return n.device, n.hasDevice
}

// SetI stores an integer attribute.
func (n *Node) SetI(name string, v int64) {
	if n.iattrs == nil {
		n.iattrs = make(map[string]int64)
	}
	n.iattrs[name] = v
}

// I returns an integer attribute, or zero when absent.
func (n *Node) I(name string) int64 { return n.iattrs[name] }

// SetIs stores an integer-list attribute.
func (n *Node) SetIs(name string, v []int64) {
	if n.isattrs == nil {
		n.isattrs = make(map[string][]int64)
	}
	n.isattrs[name] = v
}

// Is returns an integer-list attribute, or nil when absent.
func (n *Node) Is(name string) []int64 { return n.isattrs[name] }

// HasAttrs reports whether the node carries any attributes.
func (n *Node) HasAttrs() bool { return len(n.iattrs)+len(n.isattrs) > 0 }

// Graph is an ordered list of nodes over a shared value space. The node
// order is the execution order; instruction indices used by liveness are
// positions in this order, computed on demand.
type Graph struct {
	Name    string
	Inputs  []*Value
	Outputs []*Value

	nodes   []*Node
	values  []*Value // dense by ID, creation order
	nextTmp int
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// Nodes returns the graph's nodes in execution order. The slice is shared;
// callers must not modify it.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NumValues returns the number of values ever created in the graph.
func (g *Graph) NumValues() int { return len(g.values) }

// ValueByID returns the value with the given dense ID.
func (g *Graph) ValueByID(id uint32) *Value { return g.values[id] }

// NewValue creates a fresh value owned by the graph. An empty name is
// replaced by a generated temporary name.
func (g *Graph) NewValue(name string, t *TensorType) *Value {
	if name == "" {
		name = fmt.Sprintf("%%tmp.%d", g.nextTmp)
		g.nextTmp++
	}
	v := &Value{id: uint32(len(g.values)), Name: name, Type: t}
	g.values = append(g.values, v)
	return v
}

// AddInput registers a graph-level input value.
func (g *Graph) AddInput(name string, t *TensorType) *Value {
	v := g.NewValue(name, t)
	g.Inputs = append(g.Inputs, v)
	return v
}

// Create builds a node with nOut fresh output values. The node is not yet
// part of the execution order; use Append, Prepend or InsertBefore.
func (g *Graph) Create(op string, nOut int) *Node {
	n := &Node{Op: op}
	for i := 0; i < nOut; i++ {
		v := g.NewValue("", nil)
		v.prod = n
		n.Outputs = append(n.Outputs, v)
	}
	return n
}

// Append places n at the end of the execution order.
func (g *Graph) Append(n *Node) {
	g.nodes = append(g.nodes, n)
}

// Prepend places n at the very start of the execution order.
func (g *Graph) Prepend(n *Node) {
	g.nodes = append([]*Node{n}, g.nodes...)
}

// InsertBefore places n immediately before the node at position of before.
// It panics if before is not in the graph; that is a programming error in
// the calling pass, not a recoverable condition.
func (g *Graph) InsertBefore(n, before *Node) {
	at := g.Index(before)
	if at < 0 {
		panic(fmt.Sprintf("ir: InsertBefore: node %s not in graph", before.Op))
	}
	g.nodes = append(g.nodes, nil)
	copy(g.nodes[at+1:], g.nodes[at:])
	g.nodes[at] = n
}

// Index returns the execution-order position of n, or -1 when absent.
func (g *Graph) Index(n *Node) int {
	for i, m := range g.nodes {
		if m == n {
			return i
		}
	}
	return -1
}

// String renders the graph in the textual format accepted by Parse.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("graph(")
	for i, in := range g.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(in.Name)
		if in.Type != nil {
			b.WriteString(" : ")
			b.WriteString(in.Type.String())
		}
	}
	b.WriteString(") -> (")
	for i, out := range g.Outputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(out.Name)
	}
	b.WriteString(")\n")
	for _, n := range g.nodes {
		b.WriteString(formatNode(n))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatNode(n *Node) string {
	var b strings.Builder
	for i, out := range n.Outputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(out.Name)
	}
	if len(n.Outputs) > 0 {
		b.WriteString(" = ")
	}
	b.WriteString(n.Op)
	if n.HasAttrs() {
		b.WriteString(formatAttrs(n))
	}
	b.WriteByte('(')
	for i, in := range n.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(in.Name)
	}
	b.WriteByte(')')
	typed := len(n.Outputs) > 0
	for _, out := range n.Outputs {
		if out.Type == nil {
			typed = false
		}
	}
	if typed {
		b.WriteString(" : ")
		for i, out := range n.Outputs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(out.Type.String())
		}
	}
	if dev, ok := n.DeviceHint(); ok {
		b.WriteString(" @")
		b.WriteString(dev.String())
	}
	return b.String()
}

func formatAttrs(n *Node) string {
	keys := make([]string, 0, len(n.iattrs)+len(n.isattrs))
	for k := range n.iattrs {
		keys = append(keys, k)
	}
	for k := range n.isattrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		if v, ok := n.iattrs[k]; ok {
			fmt.Fprintf(&b, "%d", v)
		} else {
			b.WriteString(formatDims(n.isattrs[k]))
		}
	}
	b.WriteByte(']')
	return b.String()
}
