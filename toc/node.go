// Package toc builds ordered render trees (root - group - leaf) out of study
// bindings. The same trees drive front matter rendering and bookmarks.
package toc

import (
	"fmt"
	"strconv"
)

// Kind is tree level of a node.
type Kind string

const (
	KindRoot  Kind = "ROOT"
	KindGroup Kind = "GROUP"
	KindLeaf  Kind = "LEAF"
)

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch v := Kind(text); v {
	case KindRoot, KindGroup, KindLeaf:
		*k = v
		return nil
	}
	return fmt.Errorf("unknown node kind %q", string(text))
}

// Node of render tree. Leaves carry page, other nodes carry children.
type Node struct {
	ID       *int    `json:"id"`
	Kind     Kind    `json:"kind"`
	Name     string  `json:"name"`
	Page     *int    `json:"page"`
	Children []*Node `json:"children"`
}

func Leaf(id int, name string, page int) *Node {
	return &Node{ID: &id, Kind: KindLeaf, Name: name, Page: &page}
}

func Group(name string, children []*Node) *Node {
	return &Node{Kind: KindGroup, Name: name, Children: children}
}

func Root(name string, children []*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	return &Node{Kind: KindRoot, Name: name, Children: children}
}

func (n *Node) IsLeaf() bool {
	return n.Kind == KindLeaf
}

// Walk visits node and its descendants depth first, parents before children.
func (n *Node) Walk(fn func(node *Node, depth int)) {
	var walk func(node *Node, depth int)
	walk = func(node *Node, depth int) {
		fn(node, depth)
		for _, c := range node.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
}

// Leaves returns all leaves in tree order.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.Walk(func(node *Node, _ int) {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	})
	return leaves
}

// Clone makes deep copy of the tree.
func (n *Node) Clone() *Node {
	out := &Node{Kind: n.Kind, Name: n.Name}
	if n.ID != nil {
		id := *n.ID
		out.ID = &id
	}
	if n.Page != nil {
		page := *n.Page
		out.Page = &page
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

func (n *Node) String() string {
	if n.IsLeaf() && n.Page != nil {
		return n.Name + " ... " + strconv.Itoa(*n.Page)
	}
	return n.Name
}
