package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// NodeHandle identifies a node within one descriptor.
type NodeHandle int

// InvalidNodeHandle is the zero value for optional stage handles.
const InvalidNodeHandle NodeHandle = -1

type nodeDecl struct {
	node      Node
	upstreams []NodeHandle
}

// Descriptor is the declarative recipe for a pipeline: an ordered list
// of nodes with upstream references. It is consumed exactly once by New.
type Descriptor struct {
	decls []nodeDecl
	g     graph.Graph[string, string]
}

// NewDescriptor creates an empty descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{
		g: graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}
}

// AddNode declares a node fed by the given upstream handles. Upstream
// handles must refer to already-declared nodes; forward references are
// rejected. A node with no upstreams is an entry node and receives
// records from the source.
func (d *Descriptor) AddNode(n Node, upstreams ...NodeHandle) (NodeHandle, error) {
	if n == nil {
		return InvalidNodeHandle, errors.New("pipeline: node must be set")
	}
	for _, up := range upstreams {
		if up < 0 || int(up) >= len(d.decls) {
			return InvalidNodeHandle, errors.Errorf(
				"pipeline: node %s references undeclared upstream handle %d", n.Name(), up)
		}
	}
	if err := d.g.AddVertex(n.Name()); err != nil {
		return InvalidNodeHandle, errors.Wrapf(err, "pipeline: add node %s", n.Name())
	}
	for _, up := range upstreams {
		if err := d.g.AddEdge(d.decls[up].node.Name(), n.Name()); err != nil {
			return InvalidNodeHandle, errors.Wrapf(err, "pipeline: link %s -> %s",
				d.decls[up].node.Name(), n.Name())
		}
	}
	d.decls = append(d.decls, nodeDecl{node: n, upstreams: upstreams})
	return NodeHandle(len(d.decls) - 1), nil
}

// Graph exposes the assembled DAG for drawing.
func (d *Descriptor) Graph() graph.Graph[string, string] { return d.g }

// NumNodes returns the number of declared nodes.
func (d *Descriptor) NumNodes() int { return len(d.decls) }
