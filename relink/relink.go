// Package relink shifts page references recorded against the original
// document numbering by the number of prepended front matter pages.
package relink

import (
	"fmt"
	"strconv"
	"strings"

	"acrf/edc"
	"acrf/pdf"
	"acrf/toc"
)

// AbsolutePage returns 0-based index in the merged document of the page
// which was 1-based page in the original document. Offset is number of
// front matter pages.
func AbsolutePage(offset, page int) int {
	return offset + page - 1
}

// Warning describes annotation which could not be relinked.
type Warning struct {
	Annotation  pdf.ObjectID
	Destination string
	Reason      string
}

func (w Warning) String() string {
	return fmt.Sprintf("annotation %s with destination '%s': %s", w.Annotation, w.Destination, w.Reason)
}

// Result of annotation relinking.
type Result struct {
	// Relinked maps form id to absolute page index of annotations rewritten.
	Relinked map[int]int
	Warnings []Warning
	// Count is number of annotations rewritten.
	Count int
}

// Annotations rewrites destinations of link annotations which hold form ids
// (as a name or a string, directly in /Dest or in GoTo action /D) into
// explicit page destinations "[page /Fit]". Annotations which cannot be
// resolved are left untouched and reported.
func Annotations(doc *pdf.Document, forms map[int]edc.Form, offset int) *Result {
	res := &Result{Relinked: make(map[int]int)}
	pages := doc.Pages()

	for _, id := range doc.IDs() {
		annot, ok := doc.Objects[id].(pdf.Dict)
		if !ok || !isLink(annot) {
			continue
		}

		holder, key := annot, pdf.Name("Dest")
		var action pdf.Dict
		if annot.Get("Dest") == nil {
			a, ok := doc.Resolve(annot.Get("A")).(pdf.Dict)
			if !ok {
				continue
			}
			if s, _ := a.Name("S"); s != "GoTo" {
				continue
			}
			action, holder, key = a, a, "D"
		}

		name, ok := formReference(doc.Resolve(holder.Get(key)))
		if !ok {
			// explicit destinations are already absolute
			continue
		}

		formID, err := strconv.Atoi(strings.TrimSpace(name))
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Annotation: id, Destination: name, Reason: "destination is not a form id"})
			continue
		}
		form, ok := forms[formID]
		if !ok {
			res.Warnings = append(res.Warnings, Warning{Annotation: id, Destination: name, Reason: "unknown form"})
			continue
		}
		index := AbsolutePage(offset, form.Page)
		if index < 0 || index >= len(pages) {
			res.Warnings = append(res.Warnings, Warning{
				Annotation:  id,
				Destination: name,
				Reason:      fmt.Sprintf("page %d is out of range, document has %d pages", index+1, len(pages)),
			})
			continue
		}

		dest := pdf.Array{pdf.Ref(pages[index].ID), pdf.Name("Fit")}
		if action != nil {
			a := action.Clone()
			a["D"] = dest
			annot = annot.Clone()
			annot["A"] = a
		} else {
			annot = annot.Clone()
			annot["Dest"] = dest
		}
		doc.Objects[id] = annot
		res.Relinked[formID] = index
		res.Count++
	}
	return res
}

// isLink accepts annotations, /Type is optional for them so /Subtype /Link
// alone is enough.
func isLink(d pdf.Dict) bool {
	if d.Is("Annot") {
		return true
	}
	if _, typed := d.Name("Type"); typed {
		return false
	}
	subtype, _ := d.Name("Subtype")
	return subtype == "Link"
}

func formReference(obj pdf.Object) (string, bool) {
	switch v := obj.(type) {
	case pdf.Name:
		return string(v), true
	case pdf.String:
		return pdf.DecodeText(v), true
	}
	return "", false
}

// Tree shifts pages of all leaves in place.
func Tree(node *toc.Node, offset int) {
	node.Walk(func(n *toc.Node, _ int) {
		if n.IsLeaf() && n.Page != nil {
			*n.Page = AbsolutePage(offset, *n.Page)
		}
	})
}

// Trees returns relinked deep copies, originals are left intact.
func Trees(nodes []*toc.Node, offset int) []*toc.Node {
	out := make([]*toc.Node, 0, len(nodes))
	for _, n := range nodes {
		c := n.Clone()
		Tree(c, offset)
		out = append(out, c)
	}
	return out
}
