package relink

import (
	"testing"

	"acrf/edc"
	"acrf/pdf"
	"acrf/toc"
)

func TestAbsolutePage(t *testing.T) {
	tests := []struct {
		offset, page, want int
	}{
		{5, 1, 5},
		{5, 10, 14},
		{3, 1, 3},
		{0, 1, 0},
	}
	for _, tt := range tests {
		if got := AbsolutePage(tt.offset, tt.page); got != tt.want {
			t.Errorf("AbsolutePage(%d, %d) = %d, want %d", tt.offset, tt.page, got, tt.want)
		}
	}
}

// merged builds document of n pages, first page carries annotations with
// given destinations.
func merged(n int, dests ...pdf.Object) *pdf.Document {
	doc := pdf.New("1.7")
	pagesID := doc.Add(pdf.Dict{"Type": pdf.Name("Pages")})
	var kids, annots pdf.Array
	for _, dest := range dests {
		annot := pdf.Dict{"Type": pdf.Name("Annot"), "Subtype": pdf.Name("Link")}
		if action, ok := dest.(pdf.Dict); ok {
			annot["A"] = action
		} else {
			annot["Dest"] = dest
		}
		annots = append(annots, pdf.Ref(doc.Add(annot)))
	}
	for i := range n {
		page := pdf.Dict{"Type": pdf.Name("Page"), "Parent": pdf.Ref(pagesID)}
		if i == 0 {
			page["Annots"] = annots
		}
		kids = append(kids, pdf.Ref(doc.Add(page)))
	}
	doc.Objects[pagesID] = pdf.Dict{"Type": pdf.Name("Pages"), "Kids": kids, "Count": pdf.Integer(n)}
	doc.Trailer["Root"] = pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(pagesID)}))
	return doc
}

func destination(t *testing.T, doc *pdf.Document, annot pdf.ObjectID) pdf.Object {
	t.Helper()
	d := doc.Objects[annot].(pdf.Dict)
	if dest := d.Get("Dest"); dest != nil {
		return dest
	}
	return doc.Resolve(d.Get("A")).(pdf.Dict).Get("D")
}

func pointsAt(t *testing.T, doc *pdf.Document, annot pdf.ObjectID, index int) {
	t.Helper()
	arr, ok := destination(t, doc, annot).(pdf.Array)
	if !ok || len(arr) != 2 {
		t.Fatalf("annotation %v destination = %v, want [page /Fit]", annot, destination(t, doc, annot))
	}
	if ref, _ := arr[0].(pdf.Reference); ref.ID() != doc.Pages()[index].ID {
		t.Errorf("annotation %v points at %v, want page index %d", annot, ref, index)
	}
	if arr[1] != pdf.Name("Fit") {
		t.Errorf("annotation %v view = %v, want /Fit", annot, arr[1])
	}
}

var forms = map[int]edc.Form{
	0: {ID: 0, Name: "Demographics", Page: 1},
	1: {ID: 1, Name: "Vital Signs", Page: 2},
	7: {ID: 7, Name: "Far away", Page: 40},
}

func TestAnnotations(t *testing.T) {
	doc := merged(5,
		pdf.Name("0"),
		pdf.String("1"),
		pdf.Dict{"S": pdf.Name("GoTo"), "D": pdf.Name("1")},
	)
	res := Annotations(doc, forms, 3)

	if res.Count != 3 || len(res.Warnings) != 0 {
		t.Fatalf("Annotations() = %+v, want 3 relinked without warnings", res)
	}
	if res.Relinked[0] != 3 || res.Relinked[1] != 4 {
		t.Errorf("Relinked = %v, want map[0:3 1:4]", res.Relinked)
	}
	pointsAt(t, doc, pdf.ObjectID{Num: 2}, 3)
	pointsAt(t, doc, pdf.ObjectID{Num: 3}, 4)
	pointsAt(t, doc, pdf.ObjectID{Num: 4}, 4)
}

func TestAnnotationsWarnings(t *testing.T) {
	explicit := pdf.Array{pdf.Integer(0), pdf.Name("Fit")}
	doc := merged(5,
		pdf.Name("abc"),
		pdf.Name("42"),
		pdf.Name("7"),
		explicit,
		pdf.Dict{"S": pdf.Name("URI"), "URI": pdf.String("https://example.com")},
	)
	res := Annotations(doc, forms, 3)

	if res.Count != 0 {
		t.Errorf("Count = %d, want 0", res.Count)
	}
	want := []string{"abc", "42", "7"}
	if len(res.Warnings) != len(want) {
		t.Fatalf("Warnings = %v, want %d entries", res.Warnings, len(want))
	}
	for i, w := range res.Warnings {
		if w.Destination != want[i] {
			t.Errorf("Warnings[%d].Destination = %q, want %q", i, w.Destination, want[i])
		}
	}
	// untouched
	if got := destination(t, doc, pdf.ObjectID{Num: 2}); got != pdf.Name("abc") {
		t.Errorf("unresolved destination rewritten to %v", got)
	}
	if got := destination(t, doc, pdf.ObjectID{Num: 5}).(pdf.Array); got[0] != pdf.Integer(0) {
		t.Errorf("explicit destination rewritten to %v", got)
	}
}

func TestAnnotationsUntyped(t *testing.T) {
	doc := merged(5, pdf.Name("0"), pdf.Name("1"))
	untyped := doc.Objects[pdf.ObjectID{Num: 2}].(pdf.Dict)
	delete(untyped, "Type")
	// same shape as a link, but not an annotation
	doc.Objects[pdf.ObjectID{Num: 3}].(pdf.Dict)["Type"] = pdf.Name("Outline")

	res := Annotations(doc, forms, 3)
	if res.Count != 1 {
		t.Fatalf("Count = %d, want 1", res.Count)
	}
	pointsAt(t, doc, pdf.ObjectID{Num: 2}, 3)
	if got := destination(t, doc, pdf.ObjectID{Num: 3}); got != pdf.Name("1") {
		t.Errorf("non annotation destination rewritten to %v", got)
	}
}

func TestTree(t *testing.T) {
	study := &edc.Study{
		Visits:   []edc.Visit{{ID: 0, Name: "v0", Order: 0}, {ID: 1, Name: "v1", Order: 1}},
		Forms:    []edc.Form{{ID: 0, Name: "f0", Page: 1, Order: 0}, {ID: 1, Name: "f1", Page: 10, Order: 1}},
		Bindings: []edc.Binding{{Parent: 0, Children: []int{0}}, {Parent: 1, Children: []int{1}}},
	}
	tree := toc.VisitTree(study, "Visits")
	Tree(tree, 5)

	leaves := tree.Leaves()
	if *leaves[0].Page != 5 || *leaves[1].Page != 14 {
		t.Errorf("leaf pages = %d, %d, want 5, 14", *leaves[0].Page, *leaves[1].Page)
	}
}

func TestTreesKeepOriginals(t *testing.T) {
	study := &edc.Study{
		Visits:   []edc.Visit{{ID: 0, Name: "v0"}},
		Forms:    []edc.Form{{ID: 0, Name: "f0", Page: 1}, {ID: 1, Name: "f1", Page: 2, Order: 1}},
		Bindings: []edc.Binding{{Parent: 0, Children: []int{0, 1}}},
	}
	byVisit, byForm := toc.Trees(study, "Visits", "Forms")
	relinked := Trees([]*toc.Node{byVisit, byForm}, 3)

	if *byVisit.Leaves()[0].Page != 1 {
		t.Error("Trees() modified original tree")
	}

	doc := merged(5, pdf.Name("0"), pdf.Name("1"))
	res := Annotations(doc, study.FormMap(), 3)
	for _, tree := range relinked {
		for _, leaf := range tree.Leaves() {
			if got, want := *leaf.Page, res.Relinked[*leaf.ID]; got != want {
				t.Errorf("tree %s leaf %q page = %d, annotation page = %d", tree.Name, leaf.Name, got, want)
			}
		}
	}
}
