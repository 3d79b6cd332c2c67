package elem

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/libmesh/dofobject"
	"github.com/mfkiwl/libmesh/types"
)

type Point = r3.Vec

// Node is a mesh vertex: a location plus its dof indexing.
type Node struct {
	dofobject.DofObject
	Point
}

func NewNode(p Point, id types.DofID) (n *Node) {
	n = &Node{Point: p}
	n.DofObject.Init()
	n.SetID(id)
	return
}

// AbsoluteFuzzyEquals compares positions with an absolute tolerance.
func AbsoluteFuzzyEquals(a, b Point, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}
