// Package alias provides a conservative may-alias analysis over a graph's
// values. It is a read-only service consumed by the memory planner: the
// planner asks which values may share storage and which values must be
// treated as alive for the whole program.
package alias

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/thiremani/memplan/ir"
)

// Rule reports pairs of values that may alias for a given node. Rules are
// consulted for every node during Analyze; returning nil means the node
// introduces no aliasing.
type Rule func(n *ir.Node) [][2]*ir.Value

// ViewRule is the default rule: view-like operators alias their output
// with their first input.
func ViewRule(n *ir.Node) [][2]*ir.Value {
	if !ir.IsViewOp(n.Op) || len(n.Inputs) == 0 || len(n.Outputs) == 0 {
		return nil
	}
	return [][2]*ir.Value{{n.Outputs[0], n.Inputs[0]}}
}

// DB holds the computed may-alias classes for one graph. It is immutable
// after Analyze and safe for concurrent readers.
type DB struct {
	graph  *ir.Graph
	parent []uint32
	// classes maps a class root to the bitmap of member value IDs.
	classes map[uint32]*roaring.Bitmap
}

// Analyze computes alias classes for g. With no rules, ViewRule alone is
// applied.
func Analyze(g *ir.Graph, rules ...Rule) *DB {
	if len(rules) == 0 {
		rules = []Rule{ViewRule}
	}
	db := &DB{
		graph:   g,
		parent:  make([]uint32, g.NumValues()),
		classes: make(map[uint32]*roaring.Bitmap),
	}
	for i := range db.parent {
		db.parent[i] = uint32(i)
	}
	for _, n := range g.Nodes() {
		for _, rule := range rules {
			for _, pair := range rule(n) {
				db.union(pair[0].ID(), pair[1].ID())
			}
		}
	}
	for i := range db.parent {
		root := db.find(uint32(i))
		set, ok := db.classes[root]
		if !ok {
			set = roaring.New()
			db.classes[root] = set
		}
		set.Add(uint32(i))
	}
	return db
}

func (db *DB) find(v uint32) uint32 {
	for db.parent[v] != v {
		db.parent[v] = db.parent[db.parent[v]]
		v = db.parent[v]
	}
	return v
}

func (db *DB) union(a, b uint32) {
	ra, rb := db.find(a), db.find(b)
	if ra != rb {
		db.parent[rb] = ra
	}
}

// Set returns the bitmap of value IDs that may alias v, always including
// v itself. The result is shared; callers must not modify it.
func (db *DB) Set(v *ir.Value) *roaring.Bitmap {
	return db.classes[db.find(v.ID())]
}

// MayAlias reports whether a and b may share underlying storage.
func (db *DB) MayAlias(a, b *ir.Value) bool {
	return db.find(a.ID()) == db.find(b.ID())
}

// AlwaysAlive returns the IDs of values whose storage must outlive the
// whole graph execution: graph inputs, graph outputs, and everything that
// may alias one of them. Values whose aliasing cannot be bounded are
// folded in here rather than reported as an error.
func (db *DB) AlwaysAlive() *roaring.Bitmap {
	seed := roaring.New()
	for _, v := range db.graph.Inputs {
		seed.Add(v.ID())
	}
	for _, v := range db.graph.Outputs {
		seed.Add(v.ID())
	}
	alive := roaring.New()
	for _, set := range db.classes {
		if set.Intersects(seed) {
			alive.Or(set)
		}
	}
	return alive
}
