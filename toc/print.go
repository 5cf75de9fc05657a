package toc

import (
	"github.com/disiqueira/gotree/v3"
)

// Print renders tree for console output.
func (n *Node) Print() string {
	var add func(parent gotree.Tree, node *Node)
	add = func(parent gotree.Tree, node *Node) {
		for _, c := range node.Children {
			add(parent.Add(c.String()), c)
		}
	}
	t := gotree.New(n.String())
	add(t, n)
	return t.Print()
}
