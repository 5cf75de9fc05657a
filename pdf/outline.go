package pdf

import (
	"fmt"
)

// OutlineItem is a single bookmark read from the document outline.
type OutlineItem struct {
	Title string
	// Page is 1-based page number, 0 when destination does not resolve.
	Page  int
	Depth int
}

// Outline returns document bookmarks flattened in reading order.
func (d *Document) Outline() []OutlineItem {
	_, cat, err := d.Catalog()
	if err != nil {
		return nil
	}
	root, ok := d.Resolve(cat.Get("Outlines")).(Dict)
	if !ok {
		return nil
	}

	pageNums := make(map[ObjectID]int)
	for i, p := range d.Pages() {
		pageNums[p.ID] = i + 1
	}

	var (
		items []OutlineItem
		seen  = make(map[ObjectID]bool)
		walk  func(first Object, depth int)
	)
	walk = func(first Object, depth int) {
		for cur := first; ; {
			r, ok := cur.(Reference)
			if !ok || seen[r.ID()] {
				return
			}
			seen[r.ID()] = true
			node, ok := d.Objects[r.ID()].(Dict)
			if !ok {
				return
			}
			title, _ := d.Resolve(node.Get("Title")).(String)
			items = append(items, OutlineItem{
				Title: DecodeText(title),
				Page:  d.destinationPage(node, cat, pageNums),
				Depth: depth,
			})
			walk(node.Get("First"), depth+1)
			cur = node.Get("Next")
		}
	}
	walk(root.Get("First"), 0)
	return items
}

func (d *Document) destinationPage(node, cat Dict, pageNums map[ObjectID]int) int {
	dest := d.Resolve(node.Get("Dest"))
	if dest == nil || dest == (Null{}) {
		if action, ok := d.Resolve(node.Get("A")).(Dict); ok {
			if s, ok := action.Name("S"); ok && s == "GoTo" {
				dest = d.Resolve(action.Get("D"))
			}
		}
	}
	for range 4 {
		switch v := dest.(type) {
		case Array:
			if len(v) == 0 {
				return 0
			}
			switch target := v[0].(type) {
			case Reference:
				return pageNums[target.ID()]
			case Integer:
				return int(target) + 1
			}
			return 0
		case Dict:
			dest = d.Resolve(v.Get("D"))
		case Name:
			dest = d.namedDestination(string(v), cat)
		case String:
			dest = d.namedDestination(string(v), cat)
		default:
			return 0
		}
	}
	return 0
}

// namedDestination looks name up in catalog /Dests dictionary and in /Names
// /Dests name tree.
func (d *Document) namedDestination(name string, cat Dict) Object {
	if dests, ok := d.Resolve(cat.Get("Dests")).(Dict); ok {
		if v, ok := dests[Name(name)]; ok {
			return d.Resolve(v)
		}
	}
	names, ok := d.Resolve(cat.Get("Names")).(Dict)
	if !ok {
		return nil
	}
	tree, ok := d.Resolve(names.Get("Dests")).(Dict)
	if !ok {
		return nil
	}
	return d.lookupNameTree(tree, name, 0)
}

func (d *Document) lookupNameTree(node Dict, name string, depth int) Object {
	if depth > 32 {
		return nil
	}
	if arr, ok := d.Resolve(node.Get("Names")).(Array); ok {
		for i := 0; i+1 < len(arr); i += 2 {
			if key, ok := d.Resolve(arr[i]).(String); ok && string(key) == name {
				return d.Resolve(arr[i+1])
			}
		}
	}
	kids, _ := d.Resolve(node.Get("Kids")).(Array)
	for _, kid := range kids {
		child, ok := d.Resolve(kid).(Dict)
		if !ok {
			continue
		}
		if limits, ok := d.Resolve(child.Get("Limits")).(Array); ok && len(limits) == 2 {
			lo, _ := d.Resolve(limits[0]).(String)
			hi, _ := d.Resolve(limits[1]).(String)
			if name < string(lo) || name > string(hi) {
				continue
			}
		}
		if v := d.lookupNameTree(child, name, depth+1); v != nil {
			return v
		}
	}
	return nil
}

// OutlineEntry describes bookmark to be written.
type OutlineEntry struct {
	Title string
	// Page is 0-based page index, negative for entries without destination.
	Page     int
	Children []*OutlineEntry
}

// SetOutline replaces document outline with the entries. Existing outline
// objects are left for Compact to collect.
func (d *Document) SetOutline(entries []*OutlineEntry) error {
	catID, cat, err := d.Catalog()
	if err != nil {
		return err
	}
	pages := d.Pages()

	cat = cat.Clone()
	delete(cat, "Outlines")
	if len(entries) == 0 {
		d.Objects[catID] = cat
		return nil
	}

	rootID := d.Add(Dict{"Type": Name("Outlines")})
	count, err := d.addOutlineLevel(rootID, entries, pages)
	if err != nil {
		return err
	}
	root := d.Objects[rootID].(Dict)
	root["Count"] = Integer(count)

	cat["Outlines"] = Ref(rootID)
	if _, ok := cat["PageMode"]; !ok {
		cat["PageMode"] = Name("UseOutlines")
	}
	d.Objects[catID] = cat
	return nil
}

// addOutlineLevel writes siblings under parent and returns number of visible
// descendants (all entries are open).
func (d *Document) addOutlineLevel(parent ObjectID, entries []*OutlineEntry, pages []Page) (int, error) {
	ids := make([]ObjectID, len(entries))
	for i := range entries {
		ids[i] = d.Add(Dict{})
	}
	total := len(entries)
	for i, e := range entries {
		item := Dict{
			"Title":  EncodeText(e.Title),
			"Parent": Ref(parent),
		}
		if e.Page >= 0 {
			if e.Page >= len(pages) {
				return 0, fmt.Errorf("bookmark '%s' points at page %d, document has %d pages", e.Title, e.Page+1, len(pages))
			}
			item["Dest"] = Array{Ref(pages[e.Page].ID), Name("Fit")}
		}
		if i > 0 {
			item["Prev"] = Ref(ids[i-1])
		}
		if i < len(entries)-1 {
			item["Next"] = Ref(ids[i+1])
		}
		d.Objects[ids[i]] = item
		if len(e.Children) > 0 {
			n, err := d.addOutlineLevel(ids[i], e.Children, pages)
			if err != nil {
				return 0, err
			}
			item["Count"] = Integer(n)
			total += n
		}
	}
	parentDict := d.Objects[parent].(Dict)
	parentDict["First"] = Ref(ids[0])
	parentDict["Last"] = Ref(ids[len(ids)-1])
	return total, nil
}
