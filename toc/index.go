package toc

import (
	"acrf/edc"
)

// Index holds both directions of a binding list.
type Index struct {
	// ParentToChildren is the input keyed by parent. Repeated parents have
	// their children concatenated.
	ParentToChildren map[int][]int
	// ChildToParents lists parents of every child in the order parents were
	// first seen in the input.
	ChildToParents map[int][]int
}

func NewIndex(bindings []edc.Binding) *Index {
	idx := &Index{
		ParentToChildren: make(map[int][]int, len(bindings)),
		ChildToParents:   make(map[int][]int),
	}
	for _, b := range bindings {
		idx.ParentToChildren[b.Parent] = append(idx.ParentToChildren[b.Parent], b.Children...)
		for _, child := range b.Children {
			idx.ChildToParents[child] = append(idx.ChildToParents[child], b.Parent)
		}
	}
	return idx
}

// Children returns children of the parent, nil when there are none.
func (idx *Index) Children(parent int) []int {
	return idx.ParentToChildren[parent]
}

// Parents returns parents of the child, nil when there are none.
func (idx *Index) Parents(child int) []int {
	return idx.ChildToParents[child]
}
