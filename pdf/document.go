package pdf

import (
	"errors"
	"slices"
)

// ErrNoCatalog is returned when trailer does not point at a document catalog.
var ErrNoCatalog = errors.New("document catalog not found")

// InheritableKeys lists page attributes which may be specified on page tree
// nodes instead of pages.
var InheritableKeys = []Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// Document is page-object graph: numbered objects plus trailer entries (Root,
// Info and ID only).
type Document struct {
	Version string
	Objects map[ObjectID]Object
	Trailer Dict
}

// New returns empty document.
func New(version string) *Document {
	return &Document{
		Version: version,
		Objects: make(map[ObjectID]Object),
		Trailer: make(Dict),
	}
}

// IDs returns object ids in ascending order.
func (d *Document) IDs() []ObjectID {
	ids := make([]ObjectID, 0, len(d.Objects))
	for id := range d.Objects {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ObjectID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return ids
}

// MaxID returns largest object number in use, 0 for empty graph.
func (d *Document) MaxID() int {
	maxNum := 0
	for id := range d.Objects {
		maxNum = max(maxNum, id.Num)
	}
	return maxNum
}

// Add stores object under next free number and returns its id.
func (d *Document) Add(obj Object) ObjectID {
	id := ObjectID{Num: d.MaxID() + 1}
	d.Objects[id] = obj
	return id
}

// Resolve follows references until a direct object is reached. Dangling
// references resolve to Null.
func (d *Document) Resolve(obj Object) Object {
	for range 32 {
		r, ok := obj.(Reference)
		if !ok {
			return obj
		}
		next, ok := d.Objects[r.ID()]
		if !ok {
			return Null{}
		}
		obj = next
	}
	return Null{}
}

// Catalog returns document catalog.
func (d *Document) Catalog() (ObjectID, Dict, error) {
	id, ok := d.Trailer.Ref("Root")
	if !ok {
		return ObjectID{}, nil, ErrNoCatalog
	}
	cat, ok := d.Objects[id].(Dict)
	if !ok {
		return ObjectID{}, nil, ErrNoCatalog
	}
	return id, cat, nil
}

// Page is a leaf of page tree.
type Page struct {
	ID   ObjectID
	Dict Dict
	// Inherited holds inheritable attributes defined on the page ancestors,
	// nearest ancestor wins.
	Inherited Dict
}

// Pages returns pages in page tree order. When catalog does not lead to page
// tree the first parentless Pages node is walked instead, and as a last resort
// all Page objects are returned in id order.
func (d *Document) Pages() []Page {
	root, ok := d.pagesRoot()
	if !ok {
		var pages []Page
		for _, id := range d.IDs() {
			if dict, ok := d.Objects[id].(Dict); ok && dict.Is("Page") {
				pages = append(pages, Page{ID: id, Dict: dict, Inherited: Dict{}})
			}
		}
		return pages
	}

	var (
		pages []Page
		seen  = make(map[ObjectID]bool)
		walk  func(id ObjectID, inherited Dict)
	)
	walk = func(id ObjectID, inherited Dict) {
		if seen[id] {
			return
		}
		seen[id] = true
		node, ok := DictOf(d.Objects[id])
		if !ok {
			return
		}
		if !node.Is("Pages") {
			if _, hasKids := node["Kids"]; !hasKids {
				pages = append(pages, Page{ID: id, Dict: node, Inherited: inherited})
				return
			}
		}
		next := inherited.Clone()
		for _, key := range InheritableKeys {
			if v, ok := node[key]; ok {
				next[key] = v
			}
		}
		kids, _ := d.Resolve(node.Get("Kids")).(Array)
		for _, kid := range kids {
			if r, ok := kid.(Reference); ok {
				walk(r.ID(), next)
			}
		}
	}
	walk(root, Dict{})
	return pages
}

func (d *Document) pagesRoot() (ObjectID, bool) {
	if _, cat, err := d.Catalog(); err == nil {
		if id, ok := cat.Ref("Pages"); ok {
			if node, ok := d.Objects[id].(Dict); ok && node.Is("Pages") {
				return id, true
			}
		}
	}
	for _, id := range d.IDs() {
		if node, ok := d.Objects[id].(Dict); ok && node.Is("Pages") && node.Get("Parent") == nil {
			return id, true
		}
	}
	return ObjectID{}, false
}

// PageCount returns number of pages reachable through page tree.
func (d *Document) PageCount() int {
	return len(d.Pages())
}

// Renumber assigns dense ids start, start+1, ... (generation 0) to the objects
// in ascending order of their current ids and rewrites every reference,
// including trailer ones. References to missing objects become Null. Returns
// the first number not used.
func (d *Document) Renumber(start int) int {
	ids := d.IDs()
	remap := make(map[ObjectID]ObjectID, len(ids))
	for i, id := range ids {
		remap[id] = ObjectID{Num: start + i}
	}
	rewrite := func(r Reference) Object {
		if id, ok := remap[r.ID()]; ok {
			return Ref(id)
		}
		return Null{}
	}

	objects := make(map[ObjectID]Object, len(ids))
	for _, id := range ids {
		objects[remap[id]] = rewriteRefs(d.Objects[id], rewrite)
	}
	d.Objects = objects
	d.Trailer, _ = rewriteRefs(d.Trailer, rewrite).(Dict)
	return start + len(ids)
}

// Compact drops objects which cannot be reached from the trailer and
// renumbers the rest densely from 1.
func (d *Document) Compact() {
	reachable := make(map[ObjectID]bool)
	queue := []Object{d.Trailer}
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		walkRefs(obj, func(r Reference) {
			id := r.ID()
			if reachable[id] {
				return
			}
			if next, ok := d.Objects[id]; ok {
				reachable[id] = true
				queue = append(queue, next)
			}
		})
	}
	for id := range d.Objects {
		if !reachable[id] {
			delete(d.Objects, id)
		}
	}
	d.Renumber(1)
}
