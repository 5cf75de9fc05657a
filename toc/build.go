package toc

import (
	"cmp"
	"slices"
	"sync"

	"acrf/edc"
)

// entity is anything which may become group or leaf of a render tree.
type entity interface {
	Identity() int
	Ordinal() int
	Label() string
}

func byOrdinal[E entity](a, b E) int {
	return cmp.Compare(a.Ordinal(), b.Ordinal())
}

// Build makes three level tree. Groups are sorted by their order, for every
// group ids listed by index are resolved against leaves (unknown ids are
// skipped) and sorted by leaf order. Groups without resolved leaves are left
// out. Sorting is stable so ties keep input order.
func Build[G, L entity](rootName string, groups []G, leaves map[int]L, index map[int][]int, leafOf func(g G, l L) *Node) *Node {
	sorted := slices.Clone(groups)
	slices.SortStableFunc(sorted, byOrdinal[G])

	children := make([]*Node, 0, len(sorted))
	for _, g := range sorted {
		var resolved []L
		for _, id := range index[g.Identity()] {
			if l, ok := leaves[id]; ok {
				resolved = append(resolved, l)
			}
		}
		if len(resolved) == 0 {
			continue
		}
		slices.SortStableFunc(resolved, byOrdinal[L])

		nodes := make([]*Node, 0, len(resolved))
		for _, l := range resolved {
			nodes = append(nodes, leafOf(g, l))
		}
		children = append(children, Group(g.Label(), nodes))
	}
	return Root(rootName, children)
}

func visitTree(study *edc.Study, idx *Index, name string) *Node {
	return Build(name, study.Visits, study.FormMap(), idx.ParentToChildren,
		func(_ edc.Visit, f edc.Form) *Node {
			return Leaf(f.ID, f.Name, f.Page)
		})
}

// Leaves of the by-form tree are named after visits but point at the form
// they were reached from, visits have no pages of their own.
func formTree(study *edc.Study, idx *Index, name string) *Node {
	return Build(name, study.Forms, study.VisitMap(), idx.ChildToParents,
		func(f edc.Form, v edc.Visit) *Node {
			return Leaf(f.ID, v.Name, f.Page)
		})
}

// VisitTree groups forms by visits.
func VisitTree(study *edc.Study, name string) *Node {
	return visitTree(study, NewIndex(study.Bindings), name)
}

// FormTree groups visits by forms.
func FormTree(study *edc.Study, name string) *Node {
	return formTree(study, NewIndex(study.Bindings), name)
}

// Trees builds both trees concurrently, study is only read.
func Trees(study *edc.Study, visitTitle, formTitle string) (byVisit, byForm *Node) {
	idx := NewIndex(study.Bindings)

	var wg sync.WaitGroup
	wg.Go(func() { byVisit = visitTree(study, idx, visitTitle) })
	wg.Go(func() { byForm = formTree(study, idx, formTitle) })
	wg.Wait()
	return byVisit, byForm
}
