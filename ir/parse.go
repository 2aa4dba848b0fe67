package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a syntax or resolution error with its position.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// Parse reads a graph from its line-oriented textual form:
//
//	graph(%a : f32[2,3], %b : f32[2,3]) -> (%out)
//	%t1 = aten.add(%a, %b) : f32[2,3]
//	%out = aten.relu(%t1) : f32[2,3] @cuda
//
// Lines starting with # are comments. Attribute blocks in brackets after
// the operator name round-trip the output of (*Graph).String.
func Parse(name, src string) (*Graph, []*ParseError) {
	p := &graphParser{
		file:  name,
		graph: NewGraph(name),
		scope: make(map[string]*Value),
	}
	sawHeader := false
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lp := &lineParser{file: p.file, line: i + 1, s: line}
		if !sawHeader {
			p.parseHeader(lp)
			sawHeader = true
		} else {
			p.parseNode(lp)
		}
		p.errs = append(p.errs, lp.errs...)
	}
	if !sawHeader {
		p.errs = append(p.errs, &ParseError{File: p.file, Line: 1, Col: 1, Msg: "missing graph header"})
	}
	p.resolveOutputs()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return p.graph, nil
}

type graphParser struct {
	file     string
	graph    *Graph
	scope    map[string]*Value
	outNames []string
	outLine  int
	errs     []*ParseError
}

// graph(%a : f32[4], %b) -> (%out)
func (p *graphParser) parseHeader(lp *lineParser) {
	if !lp.literal("graph") || !lp.expect('(') {
		return
	}
	for !lp.at(')') {
		vname, ok := lp.valueName()
		if !ok {
			return
		}
		var t *TensorType
		if lp.at(':') {
			lp.expect(':')
			t = lp.tensorType()
		}
		p.define(lp, vname, t)
		p.graph.Inputs = append(p.graph.Inputs, p.scope[vname])
		if !lp.at(')') && !lp.expect(',') {
			return
		}
	}
	lp.expect(')')
	if !lp.literal("->") || !lp.expect('(') {
		return
	}
	p.outLine = lp.line
	for !lp.at(')') {
		vname, ok := lp.valueName()
		if !ok {
			return
		}
		p.outNames = append(p.outNames, vname)
		if !lp.at(')') && !lp.expect(',') {
			return
		}
	}
	lp.expect(')')
}

// %y, %z = op[attrs](%a, %b) : type, type @device
func (p *graphParser) parseNode(lp *lineParser) {
	var outs []string
	for {
		vname, ok := lp.valueName()
		if !ok {
			return
		}
		outs = append(outs, vname)
		if lp.at('=') {
			break
		}
		if !lp.expect(',') {
			return
		}
	}
	lp.expect('=')
	op, ok := lp.ident()
	if !ok {
		return
	}
	n := &Node{Op: op}
	if lp.at('[') {
		p.parseAttrs(lp, n)
	}
	if !lp.expect('(') {
		return
	}
	for !lp.at(')') {
		aname, ok := lp.valueName()
		if !ok {
			return
		}
		arg, ok := p.scope[aname]
		if !ok {
			lp.errorf("undefined value %s", aname)
			return
		}
		n.AddInput(arg)
		if !lp.at(')') && !lp.expect(',') {
			return
		}
	}
	lp.expect(')')

	var types []*TensorType
	if lp.at(':') {
		lp.expect(':')
		for {
			types = append(types, lp.tensorType())
			if !lp.at(',') {
				break
			}
			lp.expect(',')
		}
	}
	if types != nil && len(types) != len(outs) {
		lp.errorf("%d output types for %d outputs", len(types), len(outs))
		return
	}
	if lp.at('@') {
		lp.expect('@')
		dname, ok := lp.ident()
		if !ok {
			return
		}
		dev, ok := ParseDevice(dname)
		if !ok {
			lp.errorf("unknown device %q", dname)
			return
		}
		n.SetDevice(dev)
	}
	lp.skipSpace()
	if !lp.eof() {
		lp.errorf("trailing input %q", lp.rest())
		return
	}

	for i, out := range outs {
		var t *TensorType
		if types != nil {
			t = types[i]
		}
		p.define(lp, out, t)
		v := p.scope[out]
		v.prod = n
		n.Outputs = append(n.Outputs, v)
	}
	p.graph.Append(n)
}

// [total_size=128, sizes=[2,3]]
func (p *graphParser) parseAttrs(lp *lineParser, n *Node) {
	lp.expect('[')
	for !lp.at(']') {
		key, ok := lp.ident()
		if !ok || !lp.expect('=') {
			return
		}
		if lp.at('[') {
			n.SetIs(key, lp.intList())
		} else {
			v, ok := lp.int64()
			if !ok {
				return
			}
			n.SetI(key, v)
		}
		if !lp.at(']') && !lp.expect(',') {
			return
		}
	}
	lp.expect(']')
}

func (p *graphParser) define(lp *lineParser, name string, t *TensorType) {
	if _, ok := p.scope[name]; ok {
		lp.errorf("value %s redefined", name)
		return
	}
	v := p.graph.NewValue(name, t)
	p.scope[name] = v
}

func (p *graphParser) resolveOutputs() {
	for _, name := range p.outNames {
		v, ok := p.scope[name]
		if !ok {
			p.errs = append(p.errs, &ParseError{
				File: p.file, Line: p.outLine, Col: 1,
				Msg: fmt.Sprintf("graph output %s is never defined", name),
			})
			continue
		}
		p.graph.Outputs = append(p.graph.Outputs, v)
	}
}

// lineParser is a hand-rolled cursor over a single source line.
type lineParser struct {
	file string
	line int
	s    string
	pos  int
	errs []*ParseError
}

func (lp *lineParser) errorf(format string, args ...any) {
	lp.errs = append(lp.errs, &ParseError{
		File: lp.file, Line: lp.line, Col: lp.pos + 1,
		Msg: fmt.Sprintf(format, args...),
	})
}

func (lp *lineParser) skipSpace() {
	for lp.pos < len(lp.s) && (lp.s[lp.pos] == ' ' || lp.s[lp.pos] == '\t') {
		lp.pos++
	}
}

func (lp *lineParser) eof() bool { return lp.pos >= len(lp.s) }

func (lp *lineParser) rest() string { return lp.s[lp.pos:] }

// at reports whether the next significant character is ch, without
// consuming it.
func (lp *lineParser) at(ch byte) bool {
	lp.skipSpace()
	return lp.pos < len(lp.s) && lp.s[lp.pos] == ch
}

func (lp *lineParser) expect(ch byte) bool {
	lp.skipSpace()
	if lp.eof() || lp.s[lp.pos] != ch {
		lp.errorf("expected %q", string(ch))
		return false
	}
	lp.pos++
	return true
}

func (lp *lineParser) literal(lit string) bool {
	lp.skipSpace()
	if !strings.HasPrefix(lp.s[lp.pos:], lit) {
		lp.errorf("expected %q", lit)
		return false
	}
	lp.pos += len(lit)
	return true
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (lp *lineParser) ident() (string, bool) {
	lp.skipSpace()
	start := lp.pos
	for lp.pos < len(lp.s) && isIdentChar(lp.s[lp.pos]) {
		lp.pos++
	}
	if lp.pos == start {
		lp.errorf("expected identifier")
		return "", false
	}
	return lp.s[start:lp.pos], true
}

// valueName reads a %-prefixed name, returning it with the prefix.
func (lp *lineParser) valueName() (string, bool) {
	lp.skipSpace()
	if lp.eof() || lp.s[lp.pos] != '%' {
		lp.errorf("expected value name starting with %%")
		return "", false
	}
	lp.pos++
	id, ok := lp.ident()
	if !ok {
		return "", false
	}
	return "%" + id, true
}

func (lp *lineParser) int64() (int64, bool) {
	lp.skipSpace()
	start := lp.pos
	if lp.pos < len(lp.s) && lp.s[lp.pos] == '-' {
		lp.pos++
	}
	for lp.pos < len(lp.s) && '0' <= lp.s[lp.pos] && lp.s[lp.pos] <= '9' {
		lp.pos++
	}
	v, err := strconv.ParseInt(lp.s[start:lp.pos], 10, 64)
	if err != nil {
		lp.errorf("expected integer")
		return 0, false
	}
	return v, true
}

// [2,3,1]
func (lp *lineParser) intList() []int64 {
	var dims []int64
	if !lp.expect('[') {
		return nil
	}
	for !lp.at(']') {
		v, ok := lp.int64()
		if !ok {
			return nil
		}
		dims = append(dims, v)
		if !lp.at(']') && !lp.expect(',') {
			return nil
		}
	}
	lp.expect(']')
	if dims == nil {
		dims = []int64{}
	}
	return dims
}

// f32[2,3]@[3,1]
func (lp *lineParser) tensorType() *TensorType {
	name, ok := lp.ident()
	if !ok {
		return nil
	}
	elem, ok := ParseElemType(name)
	if !ok {
		lp.errorf("unknown element type %q", name)
		return nil
	}
	t := &TensorType{Elem: elem}
	if lp.at('[') {
		t.Sizes = lp.intList()
	}
	// Strides use @[...]; a bare @ident is the node's device annotation
	// and belongs to the caller.
	if lp.at('@') && lp.pos+1 < len(lp.s) && lp.s[lp.pos+1] == '[' {
		lp.expect('@')
		t.Strides = lp.intList()
	}
	return t
}
